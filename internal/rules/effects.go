package rules

// EffectAlignment drives how an effect's duration is resolved: positive
// effects land on allies, negative effects on enemies, and non-aligned
// effects follow the attack they ride on.
type EffectAlignment string

const (
	AlignmentPositive   EffectAlignment = "P"
	AlignmentNegative   EffectAlignment = "N"
	AlignmentNonAligned EffectAlignment = "NA"
)

// EffectKind categorizes an active effect for display and purge mechanics.
type EffectKind string

const (
	EffectBuff   EffectKind = "buff"
	EffectDebuff EffectKind = "debuff"
	EffectStatus EffectKind = "status"
)

// AttackType distinguishes the two attack resolutions.
type AttackType string

const (
	AttackDamage  AttackType = "damage"
	AttackSupport AttackType = "support"
)

var effectAlignments = map[string]EffectAlignment{
	"Vigor":      AlignmentPositive,
	"Fury":       AlignmentPositive,
	"Cleanse":    AlignmentNonAligned,
	"Haste":      AlignmentPositive,
	"Revitalize": AlignmentPositive,
	"Shield":     AlignmentPositive,
	"Poison":     AlignmentNegative,
	"Confuse":    AlignmentNegative,
	"Stun":       AlignmentNegative,
	"Fear":       AlignmentNegative,
	"Immobilize": AlignmentNegative,
	"Lifesteal":  AlignmentNonAligned,
	"Knockback":  AlignmentNonAligned,
	"Pull":       AlignmentNonAligned,
	"Taunt":      AlignmentNonAligned,
}

type effectRestriction string

const (
	restrictDamage  effectRestriction = "damage"
	restrictSupport effectRestriction = "support"
	restrictBoth    effectRestriction = "both"
)

var effectAttackTypeRestrictions = map[string]effectRestriction{
	"Vigor":      restrictSupport,
	"Fury":       restrictSupport,
	"Cleanse":    restrictBoth,
	"Haste":      restrictSupport,
	"Revitalize": restrictSupport,
	"Shield":     restrictSupport,
	"Strengthen": restrictSupport,
	"Vigilance":  restrictSupport,
	"Swiftness":  restrictSupport,

	"Lifesteal": restrictDamage,
	"DOT":       restrictDamage,
	"Burn":      restrictDamage,

	"Poison":     restrictBoth,
	"Confuse":    restrictBoth,
	"Stun":       restrictBoth,
	"Fear":       restrictBoth,
	"Immobilize": restrictBoth,
	"Taunt":      restrictBoth,
	"Knockback":  restrictBoth,
	"Pull":       restrictBoth,
	"Weaken":     restrictBoth,
	"Distract":   restrictBoth,
	"Exploit":    restrictBoth,
	"Pacify":     restrictBoth,
	"Blind":      restrictBoth,
	"Paralysis":  restrictBoth,
	"Lag":        restrictBoth,
}

// AlignmentOf looks up an effect's alignment. Unknown effects are
// non-aligned.
func AlignmentOf(effect string) EffectAlignment {
	if alignment, ok := effectAlignments[effect]; ok {
		return alignment
	}
	return AlignmentNonAligned
}

// KindOf maps an effect to the bucket it occupies on a participant:
// positive effects are buffs, negative effects are debuffs, and
// non-aligned effects are statuses.
func KindOf(effect string) EffectKind {
	switch AlignmentOf(effect) {
	case AlignmentPositive:
		return EffectBuff
	case AlignmentNegative:
		return EffectDebuff
	default:
		return EffectStatus
	}
}

// EffectAllowedFor reports whether an effect may ride on the given attack
// type. Unknown effects are permitted.
func EffectAllowedFor(effect string, attackType AttackType) bool {
	restriction, ok := effectAttackTypeRestrictions[effect]
	if !ok || restriction == restrictBoth {
		return true
	}
	return string(restriction) == string(attackType)
}
