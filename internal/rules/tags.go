package rules

import (
	"strconv"
	"strings"
)

// TagKind identifies a structured attack tag.
type TagKind string

const (
	TagWeapon        TagKind = "weapon"
	TagArmorPiercing TagKind = "armor-piercing"
	TagAmmo          TagKind = "ammo"
	TagSignatureMove TagKind = "signature-move"
	TagCertainStrike TagKind = "certain-strike"
	TagChargeAttack  TagKind = "charge-attack"
	TagMightyBlow    TagKind = "mighty-blow"
	TagAreaAttack    TagKind = "area-attack"
)

// Tag is the normalized form of an attack tag string such as "Weapon II" or
// "Armor Piercing 3". Rank is 0 for tags that carry no rank.
type Tag struct {
	Kind TagKind
	Rank int
}

var tagKindsByPrefix = []struct {
	prefix string
	kind   TagKind
}{
	{"armor piercing", TagArmorPiercing},
	{"weapon", TagWeapon},
	{"ammo", TagAmmo},
	{"signature move", TagSignatureMove},
	{"certain strike", TagCertainStrike},
	{"charge attack", TagChargeAttack},
	{"mighty blow", TagMightyBlow},
	{"area attack", TagAreaAttack},
}

var romanNumerals = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5,
	"VI": 6, "VII": 7, "VIII": 8, "IX": 9, "X": 10,
}

// ParseTag normalizes a raw tag string into its structured form. It accepts
// arabic and roman numeral ranks ("Weapon 2", "Weapon II"). The second return
// is false when the tag is not one the engine recognizes.
func ParseTag(raw string) (Tag, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range tagKindsByPrefix {
		if !strings.HasPrefix(normalized, candidate.prefix) {
			continue
		}
		rest := strings.TrimSpace(normalized[len(candidate.prefix):])
		// Area attacks carry a shape suffix ("Area Attack: Burst 3").
		rest = strings.TrimPrefix(rest, ":")
		return Tag{Kind: candidate.kind, Rank: parseRank(rest)}, true
	}
	return Tag{}, false
}

// ParseTags normalizes every recognized tag in raw, silently skipping
// unrecognized entries.
func ParseTags(raw []string) []Tag {
	var tags []Tag
	for _, entry := range raw {
		if tag, ok := ParseTag(entry); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseRank(rest string) int {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0
	}
	last := strings.ToUpper(fields[len(fields)-1])
	if rank, ok := romanNumerals[last]; ok {
		return rank
	}
	if rank, err := strconv.Atoi(last); err == nil && rank > 0 {
		return rank
	}
	return 0
}

// WeaponBonus returns the flat damage bonus contributed by weapon tags.
func WeaponBonus(tags []Tag) int {
	bonus := 0
	for _, tag := range tags {
		if tag.Kind == TagWeapon {
			bonus += tag.Rank
		}
	}
	return bonus
}

// ArmorPiercing returns the armor reduction contributed by armor-piercing
// tags: two points per rank.
func ArmorPiercing(tags []Tag) int {
	total := 0
	for _, tag := range tags {
		if tag.Kind == TagArmorPiercing {
			total += tag.Rank * 2
		}
	}
	return total
}

// HasTag reports whether any tag of the given kind is present.
func HasTag(tags []Tag, kind TagKind) bool {
	for _, tag := range tags {
		if tag.Kind == kind {
			return true
		}
	}
	return false
}
