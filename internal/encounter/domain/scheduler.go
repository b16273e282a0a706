package domain

import (
	"sort"

	"github.com/louisbranch/digivice/internal/platform/errors"
)

// simpleActionsPerRound is each participant's action refresh at a round
// boundary.
const simpleActionsPerRound = 2

// BeginInitiative moves a setup encounter into the initiative phase and
// opens an initiative-roll request for every player-controlled
// participant. NPC initiative is rolled server-side immediately.
func (g *Engine) BeginInitiative(enc *Encounter) error {
	if enc.Phase != PhaseSetup {
		return errors.New(errors.CodeEncounterPhaseDisallow, "initiative can only begin from setup")
	}
	enc.Phase = PhaseInitiative

	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type == ParticipantGM {
			continue
		}
		if g.isPlayerControlled(p) {
			id, err := g.newID()
			if err != nil {
				return errors.Wrap(errors.CodeStorage, "generate request id", err)
			}
			enc.PendingRequests = append(enc.PendingRequests, PendingRequest{
				ID:                  id,
				Type:                RequestInitiativeRoll,
				TargetTamerID:       g.controllerOf(p),
				TargetParticipantID: p.ID,
				Timestamp:           g.now(),
			})
			continue
		}
		agility := g.npcAgility(p)
		total, roll := g.roller.RollInitiative(agility)
		p.Initiative = total
		p.InitiativeRoll = roll
	}
	enc.UpdatedAt = g.now()
	return nil
}

// npcAgility derives the initiative modifier for a server-rolled
// participant.
func (g *Engine) npcAgility(p *CombatParticipant) int {
	if p.Type != ParticipantDigimon {
		return 0
	}
	dig, ok := g.library.Digimon[p.EntityID]
	if !ok {
		return 0
	}
	total := dig.BaseStats.Add(dig.BonusStats)
	return (total.Accuracy + total.Dodge) / 2
}

// StartCombat locks the turn order by descending initiative and enters the
// combat phase at round 1.
func (g *Engine) StartCombat(enc *Encounter) error {
	if enc.Phase != PhaseSetup && enc.Phase != PhaseInitiative {
		return errors.New(errors.CodeEncounterPhaseDisallow, "combat can only start from setup or initiative")
	}

	order := make([]string, 0, len(enc.Participants))
	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type == ParticipantGM {
			continue
		}
		p.ActionsRemaining = ActionsRemaining{Simple: simpleActionsPerRound}
		order = append(order, p.ID)
	}
	if len(order) == 0 {
		return errors.New(errors.CodeParticipantNotFound, "encounter has no participants")
	}

	sort.SliceStable(order, func(a, b int) bool {
		return enc.Participant(order[a]).Initiative > enc.Participant(order[b]).Initiative
	})

	enc.Phase = PhaseCombat
	enc.Round = 1
	enc.TurnOrder = order
	enc.CurrentTurnIndex = 0
	enc.UpdatedAt = g.now()

	first := enc.Participant(order[0])
	entry, err := g.logEntry(enc, first.ID, g.displayName(enc, first), "Combat started")
	if err != nil {
		return err
	}
	entry.Result = "Round 1 begins"
	enc.BattleLog = append(enc.BattleLog, entry)
	return nil
}

// AdvanceTurn moves to the next participant in the turn order. Wrapping
// back to index zero starts a new round: actions refresh (minus any
// deferred intercede penalty), per-turn flags clear, and effect and hazard
// durations decay.
func (g *Engine) AdvanceTurn(enc *Encounter) error {
	if enc.Phase != PhaseCombat {
		return errors.New(errors.CodeEncounterPhaseDisallow, "turns only advance during combat")
	}
	if len(enc.TurnOrder) == 0 {
		return errors.New(errors.CodeParticipantNotFound, "turn order is empty")
	}

	enc.CurrentTurnIndex = (enc.CurrentTurnIndex + 1) % len(enc.TurnOrder)
	if enc.CurrentTurnIndex == 0 {
		g.beginRound(enc)
	}

	current := enc.Participant(enc.CurrentTurnParticipantID())
	if current != nil {
		entry, err := g.logEntry(enc, current.ID, g.displayName(enc, current), "Turn started")
		if err != nil {
			return err
		}
		entry.Result = g.displayName(enc, current) + " is up"
		enc.BattleLog = append(enc.BattleLog, entry)
	}
	enc.UpdatedAt = g.now()
	return nil
}

// beginRound performs round-boundary housekeeping.
func (g *Engine) beginRound(enc *Encounter) {
	enc.Round++
	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type == ParticipantGM {
			continue
		}

		refreshed := simpleActionsPerRound - p.InterceptPenalty
		if refreshed < 0 {
			refreshed = 0
		}
		p.ActionsRemaining = ActionsRemaining{Simple: refreshed}
		p.InterceptPenalty = 0
		p.HasAttemptedDigivolve = false
		p.HasDirectedThisTurn = false

		kept := p.ActiveEffects[:0]
		for _, effect := range p.ActiveEffects {
			effect.Duration--
			if effect.Duration > 0 {
				kept = append(kept, effect)
			}
		}
		p.ActiveEffects = kept
	}

	hazards := enc.Hazards[:0]
	for _, hazard := range enc.Hazards {
		hazard.Duration--
		if hazard.Duration > 0 {
			hazards = append(hazards, hazard)
		}
	}
	enc.Hazards = hazards
}

// EndEncounter closes out a combat encounter.
func (g *Engine) EndEncounter(enc *Encounter) error {
	if enc.Phase == PhaseEnded {
		return errors.New(errors.CodeEncounterPhaseDisallow, "encounter already ended")
	}
	enc.Phase = PhaseEnded
	enc.PendingRequests = nil
	enc.UpdatedAt = g.now()
	return nil
}
