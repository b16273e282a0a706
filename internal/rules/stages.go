package rules

// Stage is a digimon evolutionary stage.
type Stage string

const (
	StageFresh      Stage = "fresh"
	StageInTraining Stage = "in-training"
	StageRookie     Stage = "rookie"
	StageChampion   Stage = "champion"
	StageUltimate   Stage = "ultimate"
	StageMega       Stage = "mega"
	StageUltra      Stage = "ultra"
)

// StageConfig carries the per-stage tuning numbers from the core rules.
type StageConfig struct {
	DP          int
	Movement    int
	WoundBonus  int
	BrainsBonus int
	Attacks     int
	StageBonus  int
}

var stageConfigs = map[Stage]StageConfig{
	StageFresh:      {DP: 5, Movement: 2, WoundBonus: 0, BrainsBonus: 0, Attacks: 1, StageBonus: 0},
	StageInTraining: {DP: 15, Movement: 4, WoundBonus: 1, BrainsBonus: 1, Attacks: 2, StageBonus: 0},
	StageRookie:     {DP: 25, Movement: 6, WoundBonus: 2, BrainsBonus: 3, Attacks: 2, StageBonus: 1},
	StageChampion:   {DP: 40, Movement: 8, WoundBonus: 5, BrainsBonus: 5, Attacks: 3, StageBonus: 2},
	StageUltimate:   {DP: 55, Movement: 10, WoundBonus: 7, BrainsBonus: 7, Attacks: 4, StageBonus: 3},
	StageMega:       {DP: 70, Movement: 12, WoundBonus: 10, BrainsBonus: 10, Attacks: 5, StageBonus: 4},
	StageUltra:      {DP: 85, Movement: 14, WoundBonus: 12, BrainsBonus: 12, Attacks: 6, StageBonus: 5},
}

// ConfigFor returns the tuning for a stage. Unknown stages fall back to
// rookie so malformed data degrades instead of crashing a battle.
func ConfigFor(stage Stage) StageConfig {
	if config, ok := stageConfigs[stage]; ok {
		return config
	}
	return stageConfigs[StageRookie]
}

// MaxWounds is a digimon's wound box total: health stat plus stage bonus.
func MaxWounds(healthStat int, stage Stage) int {
	return healthStat + ConfigFor(stage).WoundBonus
}
