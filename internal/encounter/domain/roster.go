package domain

import (
	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// AddParticipantInput joins an entity to the encounter roster.
type AddParticipantInput struct {
	Type            ParticipantType
	EntityID        string
	IsEnemy         bool
	EvolutionLineID string
	NPCStageIndex   int
}

// AddParticipant adds a combatant. During setup the participant waits for
// initiative; a mid-combat reinforcement joins the end of the turn order
// with a fresh action pool.
func (g *Engine) AddParticipant(enc *Encounter, in AddParticipantInput) (*CombatParticipant, error) {
	if enc.Phase == PhaseEnded {
		return nil, errors.New(errors.CodeEncounterPhaseDisallow, "encounter has ended")
	}
	switch in.Type {
	case ParticipantTamer:
		if _, ok := g.library.Tamers[in.EntityID]; !ok {
			return nil, errors.New(errors.CodeTamerNotFound, "tamer not found")
		}
	case ParticipantDigimon:
		if _, ok := g.library.Digimon[in.EntityID]; !ok {
			return nil, errors.New(errors.CodeDigimonNotFound, "digimon not found")
		}
	default:
		return nil, errors.New(errors.CodeResponseInvalid, "unsupported participant type")
	}
	for _, p := range enc.Participants {
		if p.Type == in.Type && p.EntityID == in.EntityID {
			return nil, errors.WithMetadata(errors.CodeEncounterConflict, "entity already participates",
				map[string]string{"entity_id": in.EntityID})
		}
	}

	id, err := g.newID()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "generate participant id", err)
	}
	participant := CombatParticipant{
		ID:              id,
		Type:            in.Type,
		EntityID:        in.EntityID,
		IsEnemy:         in.IsEnemy,
		CurrentStance:   rules.StanceNeutral,
		EvolutionLineID: in.EvolutionLineID,
		NPCStageIndex:   in.NPCStageIndex,
	}
	participant.MaxWounds = g.combatStats(&participant).MaxWounds

	if enc.Phase == PhaseCombat {
		participant.ActionsRemaining = ActionsRemaining{Simple: simpleActionsPerRound}
		enc.TurnOrder = append(enc.TurnOrder, participant.ID)
	}
	enc.Participants = append(enc.Participants, participant)
	enc.UpdatedAt = g.now()
	return enc.Participant(participant.ID), nil
}

// RemoveParticipant drops a combatant from the roster and the turn order.
func (g *Engine) RemoveParticipant(enc *Encounter, participantID string) error {
	if enc.Participant(participantID) == nil {
		return errors.New(errors.CodeParticipantNotFound, "participant not found")
	}

	kept := enc.Participants[:0]
	for _, p := range enc.Participants {
		if p.ID == participantID {
			continue
		}
		kept = append(kept, p)
	}
	enc.Participants = kept

	order := enc.TurnOrder[:0]
	for i, id := range enc.TurnOrder {
		if id == participantID {
			if i <= enc.CurrentTurnIndex && enc.CurrentTurnIndex > 0 {
				enc.CurrentTurnIndex--
			}
			continue
		}
		order = append(order, id)
	}
	enc.TurnOrder = order
	if len(enc.TurnOrder) > 0 && enc.CurrentTurnIndex >= len(enc.TurnOrder) {
		enc.CurrentTurnIndex = 0
	}
	enc.UpdatedAt = g.now()
	return nil
}

// SetStance switches a combatant's stance. Free, but only on a turn where
// the participant could act.
func (g *Engine) SetStance(enc *Encounter, participantID string, stance rules.Stance) error {
	if enc.Phase != PhaseCombat {
		return errors.New(errors.CodeEncounterPhaseDisallow, "stances change during combat")
	}
	switch stance {
	case rules.StanceNeutral, rules.StanceOffensive, rules.StanceDefensive:
	default:
		return errors.New(errors.CodeResponseInvalid, "unknown stance")
	}
	participant := enc.Participant(participantID)
	if participant == nil {
		return errors.New(errors.CodeParticipantNotFound, "participant not found")
	}
	if !g.canAct(enc, participant) {
		return errors.New(errors.CodeNotYourTurn, "participant cannot act right now")
	}
	participant.CurrentStance = stance
	enc.UpdatedAt = g.now()
	return nil
}
