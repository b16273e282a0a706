package domain

import "github.com/louisbranch/digivice/internal/rules"

// TamerXPBonuses are earned increases layered on top of creation values.
type TamerXPBonuses struct {
	Attributes rules.TamerAttributes `json:"attributes"`
	Skills     rules.TamerSkills     `json:"skills"`
}

// Tamer is a player character record from the external stat store.
type Tamer struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	CampaignLevel rules.CampaignLevel   `json:"campaignLevel"`
	Attributes    rules.TamerAttributes `json:"attributes"`
	Skills        rules.TamerSkills     `json:"skills"`
	XPBonuses     TamerXPBonuses        `json:"xpBonuses"`
}

// UnlockedOrders returns the special orders this tamer has earned.
func (t Tamer) UnlockedOrders() []rules.SpecialOrder {
	return rules.UnlockedOrders(t.Attributes, t.XPBonuses.Attributes, t.CampaignLevel)
}

// Attack is one attack definition on a digimon sheet. Tags are stored as
// the raw rulebook strings and normalized via rules.ParseTags when the
// engine resolves them.
type Attack struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Range       string           `json:"range"`
	Type        rules.AttackType `json:"type"`
	Tags        []string         `json:"tags,omitempty"`
	Effect      string           `json:"effect,omitempty"`
	Description string           `json:"description,omitempty"`
}

// Digimon is a creature record from the external stat store.
type Digimon struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Species    string             `json:"species"`
	Stage      rules.Stage        `json:"stage"`
	BaseStats  rules.DigimonStats `json:"baseStats"`
	BonusStats rules.DigimonStats `json:"bonusStats"`
	Qualities  []rules.Quality    `json:"qualities,omitempty"`
	Attacks    []Attack           `json:"attacks,omitempty"`
	PartnerID  string             `json:"partnerId,omitempty"`
}

// CombatStats resolves the digimon's effective encounter numbers.
func (d Digimon) CombatStats() rules.CombatStats {
	return rules.ResolveCombatStats(d.BaseStats, d.BonusStats, d.Stage, d.Qualities)
}

// Attack finds an attack definition by id.
func (d Digimon) Attack(id string) (Attack, bool) {
	for _, attack := range d.Attacks {
		if attack.ID == id {
			return attack, true
		}
	}
	return Attack{}, false
}

// ChainEntry is one node in an evolution line. EvolvesFromIndex is the
// chain index of the parent form, or -1 for the root.
type ChainEntry struct {
	DigimonID        string      `json:"digimonId"`
	Species          string      `json:"species"`
	Stage            rules.Stage `json:"stage"`
	EvolvesFromIndex int         `json:"evolvesFromIndex"`
	IsUnlocked       bool        `json:"isUnlocked"`
}

// EvolutionLine links a partner digimon's forms into a tree flattened to
// an indexed chain.
type EvolutionLine struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Chain             []ChainEntry `json:"chain"`
	CurrentStageIndex int          `json:"currentStageIndex"`
}

// Library is the in-memory slice of the external stat store an engine
// command needs: every entity is preloaded by the caller so command
// execution itself never does I/O. Lookups on a nil or partial library
// simply miss.
type Library struct {
	Tamers         map[string]Tamer
	Digimon        map[string]Digimon
	EvolutionLines map[string]EvolutionLine
}

// PartnerDigimonOf returns the participant whose digimon record names the
// given tamer entity as its partner.
func (l Library) PartnerDigimonOf(enc *Encounter, tamerEntityID string) *CombatParticipant {
	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type != ParticipantDigimon {
			continue
		}
		if dig, ok := l.Digimon[p.EntityID]; ok && dig.PartnerID == tamerEntityID {
			return p
		}
	}
	return nil
}
