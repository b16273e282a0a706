package rules

import "strings"

// CampaignLevel scales the attribute thresholds that unlock special orders.
type CampaignLevel string

const (
	CampaignStandard CampaignLevel = "standard"
	CampaignEnhanced CampaignLevel = "enhanced"
	CampaignExtreme  CampaignLevel = "extreme"
)

// OrderUsage is how often a special order may be invoked.
type OrderUsage string

const (
	UsagePerDay    OrderUsage = "per-day"
	UsagePerBattle OrderUsage = "per-battle"
	UsagePassive   OrderUsage = "passive"
)

// SpecialOrder is one entry in a tamer attribute's order ladder.
type SpecialOrder struct {
	Attribute string
	Name      string
	Type      string
	Effect    string
	Tier      int
}

var orderThresholds = map[CampaignLevel][3]int{
	CampaignStandard: {3, 4, 5},
	CampaignEnhanced: {5, 6, 7},
	CampaignExtreme:  {6, 8, 10},
}

type orderEntry struct {
	name   string
	kind   string
	effect string
}

var orderLadders = map[string][3]orderEntry{
	"agility": {
		{"Strike First!", "Passive", "+1 Initiative and 2 Base Movement"},
		{"Strike Fast!", "Once Per Day / Complex", "Target's Dodge Pools halved for one attack (no Huge Power/Overkill)"},
		{"Strike Last!", "Once Per Day / Intercede", "Counter Blow on any attack, hit or miss (no Huge Power/Overkill)"},
	},
	"body": {
		{"Energy Burst", "Once Per Day / Complex", "Digimon recovers 5 wound boxes"},
		{"Enduring Soul", "Passive", "Survive one fatal blow with 1 Wound Box (once per battle)"},
		{"Finishing Touch", "Once Per Day / Simple", "4s count as successes on Accuracy Roll (no Huge Power/Overkill)"},
	},
	"charisma": {
		{"Swagger", "Once Per Battle / Simple", "Taunt for 3 rounds, auto-aggro at CPUx2"},
		{"Peak Performance", "Once Per Day / Complex", "Bastion buff: +2 to all stats except health for 1 round"},
		{"Guiding Light", "Passive", "+2 Accuracy to allies in burst radius, +1 Dodge per ally in radius"},
	},
	"intelligence": {
		{"Quick Reaction", "Once Per Day / Intercede", "Gain Stage Bonus+2 Dodge Dice for the round (diminishing)"},
		{"Enemy Scan", "Once Per Battle / Complex", "Debilitate: -2 to all stats except health for 1 round"},
		{"Decimation", "Once Per Day / Complex", "Use Signature Move on Round 2 instead of Round 3"},
	},
	"willpower": {
		{"Tough it Out!", "Once Per Battle / Complex", "Purify: cure one negative effect"},
		{"Challenger", "Passive", "Gain 2 + (enemy stage difference) temporary Wound Boxes (max 5)"},
		{"Fateful Intervention", "Free Action", "See Inspiration / Fateful Intervention mechanic"},
	},
}

// UnlockedOrders returns the special orders a tamer has earned, comparing
// each attribute (base plus XP bonus) against the campaign level ladder.
func UnlockedOrders(attributes, xpBonuses TamerAttributes, level CampaignLevel) []SpecialOrder {
	thresholds, ok := orderThresholds[level]
	if !ok {
		thresholds = orderThresholds[CampaignStandard]
	}
	var unlocked []SpecialOrder
	for _, attr := range []string{"agility", "body", "charisma", "intelligence", "willpower"} {
		total := attributes.Get(attr) + xpBonuses.Get(attr)
		ladder := orderLadders[attr]
		for i, entry := range ladder {
			if total < thresholds[i] {
				continue
			}
			unlocked = append(unlocked, SpecialOrder{
				Attribute: attr,
				Name:      entry.name,
				Type:      entry.kind,
				Effect:    entry.effect,
				Tier:      i + 1,
			})
		}
	}
	return unlocked
}

// FindOrder resolves an order by name within a tamer's unlocked set.
func FindOrder(unlocked []SpecialOrder, name string) (SpecialOrder, bool) {
	for _, order := range unlocked {
		if order.Name == name {
			return order, true
		}
	}
	return SpecialOrder{}, false
}

// OrderActionCost parses the number of simple actions an order consumes
// from its type string.
func OrderActionCost(orderType string) int {
	switch {
	case strings.Contains(orderType, "Complex"):
		return 2
	case strings.Contains(orderType, "Simple"):
		return 1
	case strings.Contains(orderType, "Free"),
		strings.Contains(orderType, "Passive"),
		strings.Contains(orderType, "Intercede"):
		return 0
	}
	return 1
}

// OrderUsageLimit classifies how often an order may be used.
func OrderUsageLimit(orderType string) OrderUsage {
	switch {
	case strings.Contains(orderType, "Once Per Day"):
		return UsagePerDay
	case strings.Contains(orderType, "Once Per Battle"):
		return UsagePerBattle
	}
	return UsagePassive
}
