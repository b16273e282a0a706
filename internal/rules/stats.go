package rules

// TamerAttributes are the five core attributes.
type TamerAttributes struct {
	Agility      int `json:"agility"`
	Body         int `json:"body"`
	Charisma     int `json:"charisma"`
	Intelligence int `json:"intelligence"`
	Willpower    int `json:"willpower"`
}

// Get returns an attribute by its lowercase name, 0 when unknown.
func (a TamerAttributes) Get(name string) int {
	switch name {
	case "agility":
		return a.Agility
	case "body":
		return a.Body
	case "charisma":
		return a.Charisma
	case "intelligence":
		return a.Intelligence
	case "willpower":
		return a.Willpower
	}
	return 0
}

// TamerSkills are the fifteen trained skills, three per attribute.
type TamerSkills struct {
	Dodge           int `json:"dodge"`
	Fight           int `json:"fight"`
	Stealth         int `json:"stealth"`
	Athletics       int `json:"athletics"`
	Endurance       int `json:"endurance"`
	FeatsOfStrength int `json:"featsOfStrength"`
	Manipulate      int `json:"manipulate"`
	Perform         int `json:"perform"`
	Persuasion      int `json:"persuasion"`
	Computer        int `json:"computer"`
	Survival        int `json:"survival"`
	Knowledge       int `json:"knowledge"`
	Perception      int `json:"perception"`
	DecipherIntent  int `json:"decipherIntent"`
	Bravery         int `json:"bravery"`
}

// TamerDerivedStats are the combat-facing numbers computed from a tamer's
// attributes and skills.
type TamerDerivedStats struct {
	WoundBoxes   int `json:"woundBoxes"`
	Speed        int `json:"speed"`
	AccuracyPool int `json:"accuracyPool"`
	DodgePool    int `json:"dodgePool"`
	Armor        int `json:"armor"`
	Damage       int `json:"damage"`
}

// DeriveTamerStats applies the core derivation rules. Attributes and skills
// should already include any XP bonuses.
func DeriveTamerStats(attributes TamerAttributes, skills TamerSkills) TamerDerivedStats {
	woundBoxes := attributes.Body + skills.Endurance
	if woundBoxes < 2 {
		woundBoxes = 2
	}
	return TamerDerivedStats{
		WoundBoxes:   woundBoxes,
		Speed:        attributes.Agility + skills.Survival,
		AccuracyPool: attributes.Agility + skills.Fight,
		DodgePool:    attributes.Agility + skills.Dodge,
		Armor:        attributes.Body + skills.Endurance,
		Damage:       attributes.Body + skills.Fight,
	}
}

// DigimonStats are the five spendable combat stats.
type DigimonStats struct {
	Accuracy int `json:"accuracy"`
	Damage   int `json:"damage"`
	Dodge    int `json:"dodge"`
	Armor    int `json:"armor"`
	Health   int `json:"health"`
}

// Add folds bonus stats into a base allotment.
func (s DigimonStats) Add(bonus DigimonStats) DigimonStats {
	return DigimonStats{
		Accuracy: s.Accuracy + bonus.Accuracy,
		Damage:   s.Damage + bonus.Damage,
		Dodge:    s.Dodge + bonus.Dodge,
		Armor:    s.Armor + bonus.Armor,
		Health:   s.Health + bonus.Health,
	}
}

// Quality is one purchased digimon quality, with an optional rank and
// choice (for qualities that branch, like Data Optimization).
type Quality struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Ranks    int    `json:"ranks,omitempty"`
	ChoiceID string `json:"choiceId,omitempty"`
}

// HasQuality reports whether a quality with the given id is present.
func HasQuality(qualities []Quality, id string) bool {
	for _, quality := range qualities {
		if quality.ID == id {
			return true
		}
	}
	return false
}

// QualityChoice returns the choice id picked for a quality, or "".
func QualityChoice(qualities []Quality, id string) string {
	for _, quality := range qualities {
		if quality.ID == id {
			return quality.ChoiceID
		}
	}
	return ""
}

// CombatStats are the fully resolved numbers a combatant brings into an
// encounter: base stats plus bonuses plus quality modifiers.
type CombatStats struct {
	Accuracy         int
	Damage           int
	Dodge            int
	Armor            int
	Health           int
	MaxWounds        int
	HasCombatMonster bool
}

// ResolveCombatStats computes a digimon's effective encounter stats. The
// Guardian data optimization adds two armor. Combat Monster is flagged so
// the engine can track its accumulating damage bonus.
func ResolveCombatStats(base, bonus DigimonStats, stage Stage, qualities []Quality) CombatStats {
	total := base.Add(bonus)
	armor := total.Armor
	if QualityChoice(qualities, "data-optimization") == "guardian" {
		armor += 2
	}
	return CombatStats{
		Accuracy:         total.Accuracy,
		Damage:           total.Damage,
		Dodge:            total.Dodge,
		Armor:            armor,
		Health:           total.Health,
		MaxWounds:        MaxWounds(total.Health, stage),
		HasCombatMonster: HasQuality(qualities, "combat-monster"),
	}
}
