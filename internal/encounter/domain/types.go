package domain

import (
	"time"

	"github.com/louisbranch/digivice/internal/rules"
)

// Phase is the encounter lifecycle state. Transitions are one-way:
// setup -> initiative -> combat -> ended.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseInitiative Phase = "initiative"
	PhaseCombat     Phase = "combat"
	PhaseEnded      Phase = "ended"
)

// ParticipantType distinguishes the combatant kinds. The GM pseudo
// participant only holds intercede opt-outs and never appears in the
// turn order.
type ParticipantType string

const (
	ParticipantTamer   ParticipantType = "tamer"
	ParticipantDigimon ParticipantType = "digimon"
	ParticipantGM      ParticipantType = "gm"
)

// GMParticipantID is the fixed id of the GM pseudo participant.
const GMParticipantID = "gm"

// GMControllerID is the responder id used on requests addressed to the GM.
const GMControllerID = "GM"

// ActionsRemaining tracks a participant's unspent simple actions this round.
type ActionsRemaining struct {
	Simple int `json:"simple"`
}

// ActiveEffect is a named effect riding on a participant. Duration is
// decremented at each round boundary and the effect removed at zero or
// below. Value carries the pool bonus for one-shot effects like Directed.
type ActiveEffect struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        rules.EffectKind `json:"kind"`
	Duration    int              `json:"duration"`
	Source      string           `json:"source"`
	Description string           `json:"description,omitempty"`
	Value       int              `json:"value,omitempty"`
}

// WoundSnapshot preserves the state replaced by an evolution so a devolve
// (voluntary or knockout) can restore it exactly.
type WoundSnapshot struct {
	EntityID   string `json:"entityId"`
	MaxWounds  int    `json:"maxWounds"`
	Wounds     int    `json:"wounds"`
	StageIndex int    `json:"stageIndex"`
}

// CombatParticipant is one combatant's encounter-scoped state. EntityID
// points into the tamer or digimon store and changes on evolve/devolve.
type CombatParticipant struct {
	ID               string           `json:"id"`
	Type             ParticipantType  `json:"type"`
	EntityID         string           `json:"entityId"`
	Initiative       int              `json:"initiative"`
	InitiativeRoll   int              `json:"initiativeRoll"`
	ActionsRemaining ActionsRemaining `json:"actionsRemaining"`
	CurrentStance    rules.Stance     `json:"currentStance"`
	ActiveEffects    []ActiveEffect   `json:"activeEffects,omitempty"`
	CurrentWounds    int              `json:"currentWounds"`
	MaxWounds        int              `json:"maxWounds"`
	IsEnemy          bool             `json:"isEnemy,omitempty"`

	// Dodging the same attacker over and over gets harder.
	DodgePenalty int `json:"dodgePenalty,omitempty"`

	UsedAttackIDs     []string `json:"usedAttackIds,omitempty"`
	UsedSpecialOrders []string `json:"usedSpecialOrders,omitempty"`

	EvolutionLineID string          `json:"evolutionLineId,omitempty"`
	NPCStageIndex   int             `json:"npcStageIndex,omitempty"`
	WoundsHistory   []WoundSnapshot `json:"woundsHistory,omitempty"`

	HasAttemptedDigivolve bool `json:"hasAttemptedDigivolve,omitempty"`
	HasDirectedThisTurn   bool `json:"hasDirectedThisTurn,omitempty"`

	// Deferred intercede cost for participants whose turn already passed.
	InterceptPenalty int `json:"interceptPenalty,omitempty"`

	DigimonBolsterCount   int `json:"digimonBolsterCount,omitempty"`
	LastBitCPUBolsterRound int `json:"lastBitCpuBolsterRound,omitempty"`

	// Combat Monster quality: damage taken accumulates here, capped at the
	// health stat, and is spent on the bearer's next hit.
	CombatMonsterBonus int `json:"combatMonsterBonus,omitempty"`

	IntercedeOptOuts []string `json:"intercedeOptOuts,omitempty"`
	// GM only: per-target list of interceptor ids the GM will never offer.
	GMCharacterOptOuts map[string][]string `json:"gmCharacterOptOuts,omitempty"`
}

// RequestType tags a pending request.
type RequestType string

const (
	RequestDigimonSelection RequestType = "digimon-selection"
	RequestInitiativeRoll   RequestType = "initiative-roll"
	RequestDodgeRoll        RequestType = "dodge-roll"
	RequestIntercedeOffer   RequestType = "intercede-offer"
)

// AttackContext is the suspended attack carried by dodge-roll and
// intercede-offer requests so the resolution step can finish without
// re-reading the declaration.
type AttackContext struct {
	IntercedeGroupID      string `json:"intercedeGroupId,omitempty"`
	AttackerParticipantID string `json:"attackerParticipantId"`
	TargetParticipantID   string `json:"targetParticipantId"`
	AttackerName          string `json:"attackerName"`
	TargetName            string `json:"targetName"`
	AttackID              string `json:"attackId"`
	AccuracySuccesses     int    `json:"accuracySuccesses"`
	AccuracyDice          []int  `json:"accuracyDice,omitempty"`
	DodgePenalty          int    `json:"dodgePenalty,omitempty"`
	Bolstered             bool   `json:"bolstered,omitempty"`
	BolsterType           string `json:"bolsterType,omitempty"`
	BolsterDamageBonus    int    `json:"bolsterDamageBonus,omitempty"`
	BolsterBitCPUBonus    int    `json:"bolsterBitCpuBonus,omitempty"`
}

// PendingRequest is an open question addressed to a human controller.
// Attack is populated for dodge-roll and intercede-offer requests.
type PendingRequest struct {
	ID                  string         `json:"id"`
	Type                RequestType    `json:"type"`
	TargetTamerID       string         `json:"targetTamerId"`
	TargetParticipantID string         `json:"targetParticipantId,omitempty"`
	Timestamp           time.Time      `json:"timestamp"`
	Attack              *AttackContext `json:"attack,omitempty"`
}

// ResponseType tags a request response.
type ResponseType string

const (
	ResponseDigimonSelected  ResponseType = "digimon-selected"
	ResponseInitiativeRolled ResponseType = "initiative-rolled"
	ResponseDodgeRolled      ResponseType = "dodge-rolled"
)

// ResponsePayload is the responder's answer to a pending request.
type ResponsePayload struct {
	Type             ResponseType `json:"type"`
	DigimonID        string       `json:"digimonId,omitempty"`
	Initiative       int          `json:"initiative,omitempty"`
	InitiativeRoll   int          `json:"initiativeRoll,omitempty"`
	DodgeDicePool    int          `json:"dodgeDicePool,omitempty"`
	DodgeSuccesses   int          `json:"dodgeSuccesses,omitempty"`
	DodgeDiceResults []int        `json:"dodgeDiceResults,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// RequestResponse records a closed request's answer. Responses outlive
// their requests so clients can show outcomes after the fact.
type RequestResponse struct {
	ID            string          `json:"id"`
	RequestID     string          `json:"requestId"`
	TamerID       string          `json:"tamerId"`
	ParticipantID string          `json:"participantId,omitempty"`
	Response      ResponsePayload `json:"response"`
}

// BattleLogEntry is one append-only line of battle history. The damage
// breakdown fields are populated on resolution entries.
type BattleLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Round     int       `json:"round"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Result    string    `json:"result"`
	Damage    *int      `json:"damage,omitempty"`
	Effects   []string  `json:"effects,omitempty"`

	BaseDamage     int  `json:"baseDamage,omitempty"`
	NetSuccesses   int  `json:"netSuccesses,omitempty"`
	TargetArmor    int  `json:"targetArmor,omitempty"`
	ArmorPiercing  int  `json:"armorPiercing,omitempty"`
	EffectiveArmor int  `json:"effectiveArmor,omitempty"`
	FinalDamage    int  `json:"finalDamage,omitempty"`
	Hit            bool `json:"hit,omitempty"`
}

// EnvironmentHazard is a GM-placed battlefield condition that decays at
// round boundaries like an effect.
type EnvironmentHazard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"`
}

// Encounter is the aggregate root. All mutation flows through engine
// commands; nothing outside this package should write its fields.
type Encounter struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Round            int                 `json:"round"`
	Phase            Phase               `json:"phase"`
	Participants     []CombatParticipant `json:"participants"`
	TurnOrder        []string            `json:"turnOrder"`
	CurrentTurnIndex int                 `json:"currentTurnIndex"`
	BattleLog        []BattleLogEntry    `json:"battleLog"`
	PendingRequests  []PendingRequest    `json:"pendingRequests"`
	RequestResponses []RequestResponse   `json:"requestResponses"`
	Hazards          []EnvironmentHazard `json:"hazards"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Participant returns a pointer into the aggregate's participant slice.
func (e *Encounter) Participant(id string) *CombatParticipant {
	for i := range e.Participants {
		if e.Participants[i].ID == id {
			return &e.Participants[i]
		}
	}
	return nil
}

// CurrentTurnParticipantID returns the id whose turn it is, or "".
func (e *Encounter) CurrentTurnParticipantID() string {
	if len(e.TurnOrder) == 0 || e.CurrentTurnIndex < 0 || e.CurrentTurnIndex >= len(e.TurnOrder) {
		return ""
	}
	return e.TurnOrder[e.CurrentTurnIndex]
}

// Request returns the pending request with the given id, or nil.
func (e *Encounter) Request(id string) *PendingRequest {
	for i := range e.PendingRequests {
		if e.PendingRequests[i].ID == id {
			return &e.PendingRequests[i]
		}
	}
	return nil
}

// GroupRequests returns all pending intercede offers sharing a group id.
func (e *Encounter) GroupRequests(groupID string) []PendingRequest {
	var group []PendingRequest
	for _, req := range e.PendingRequests {
		if req.Attack != nil && req.Attack.IntercedeGroupID == groupID {
			group = append(group, req)
		}
	}
	return group
}

// removeGroupRequests drops every pending request in an intercede group.
func (e *Encounter) removeGroupRequests(groupID string) {
	kept := e.PendingRequests[:0]
	for _, req := range e.PendingRequests {
		if req.Attack != nil && req.Attack.IntercedeGroupID == groupID {
			continue
		}
		kept = append(kept, req)
	}
	e.PendingRequests = kept
}

// removeRequest drops a single pending request by id.
func (e *Encounter) removeRequest(id string) {
	kept := e.PendingRequests[:0]
	for _, req := range e.PendingRequests {
		if req.ID == id {
			continue
		}
		kept = append(kept, req)
	}
	e.PendingRequests = kept
}

// hasEffect reports whether a participant carries a named effect.
func (p *CombatParticipant) hasEffect(name string) bool {
	for _, effect := range p.ActiveEffects {
		if effect.Name == name {
			return true
		}
	}
	return false
}

// effectValue returns the value of the first effect with the given name.
func (p *CombatParticipant) effectValue(name string) (int, bool) {
	for _, effect := range p.ActiveEffects {
		if effect.Name == name {
			return effect.Value, true
		}
	}
	return 0, false
}

// removeEffectByName drops every effect with the given name.
func (p *CombatParticipant) removeEffectByName(name string) {
	kept := p.ActiveEffects[:0]
	for _, effect := range p.ActiveEffects {
		if effect.Name == name {
			continue
		}
		kept = append(kept, effect)
	}
	p.ActiveEffects = kept
}

// applyDamage clamp-adds wounds.
func (p *CombatParticipant) applyDamage(amount int) {
	p.CurrentWounds += amount
	if p.CurrentWounds > p.MaxWounds {
		p.CurrentWounds = p.MaxWounds
	}
}

// heal clamp-subtracts wounds.
func (p *CombatParticipant) heal(amount int) {
	p.CurrentWounds -= amount
	if p.CurrentWounds < 0 {
		p.CurrentWounds = 0
	}
}

func (p *CombatParticipant) usedAttack(attackID string) bool {
	for _, id := range p.UsedAttackIDs {
		if id == attackID {
			return true
		}
	}
	return false
}

func (p *CombatParticipant) usedOrder(name string) bool {
	for _, used := range p.UsedSpecialOrders {
		if used == name {
			return true
		}
	}
	return false
}

func (p *CombatParticipant) optedOutOf(targetID string) bool {
	for _, id := range p.IntercedeOptOuts {
		if id == targetID {
			return true
		}
	}
	return false
}
