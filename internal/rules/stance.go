package rules

// Stance shifts a combatant's dice pools between offense and defense.
type Stance string

const (
	StanceNeutral   Stance = "neutral"
	StanceOffensive Stance = "offensive"
	StanceDefensive Stance = "defensive"
)

// ApplyStanceToAccuracy scales an accuracy pool for the given stance.
// Defensive halves rounding up; offensive multiplies by 1.5 rounding down.
func ApplyStanceToAccuracy(pool int, stance Stance) int {
	switch stance {
	case StanceDefensive:
		return (pool + 1) / 2
	case StanceOffensive:
		return pool * 3 / 2
	default:
		return pool
	}
}

// ApplyStanceToDodge scales a dodge pool for the given stance. Defensive
// multiplies by 1.5 rounding down; offensive halves rounding up.
func ApplyStanceToDodge(pool int, stance Stance) int {
	switch stance {
	case StanceDefensive:
		return pool * 3 / 2
	case StanceOffensive:
		return (pool + 1) / 2
	default:
		return pool
	}
}
