package domain

import (
	"fmt"

	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// DigivolveInput moves a digimon along its evolution chain by one step in
// either direction.
type DigivolveInput struct {
	ParticipantID    string
	TargetChainIndex int
}

// EvolutionLineUpdate tells the caller to persist a partnered line's new
// position. NPCs track their stage on the participant instead, so the
// update is nil for them.
type EvolutionLineUpdate struct {
	LineID        string
	NewStageIndex int
}

// Digivolve swaps the participant to an adjacent chain form. Evolving
// pushes the current wounds onto the history and fully heals; devolving
// pops and restores the saved state. One evolve attempt per turn;
// devolving is always allowed.
func (g *Engine) Digivolve(enc *Encounter, in DigivolveInput) (*EvolutionLineUpdate, error) {
	if enc.Phase != PhaseCombat {
		return nil, errors.New(errors.CodeEncounterPhaseDisallow, "digivolving requires the combat phase")
	}
	participant := enc.Participant(in.ParticipantID)
	if participant == nil {
		return nil, errors.New(errors.CodeParticipantNotFound, "participant not found")
	}
	if participant.Type != ParticipantDigimon {
		return nil, errors.New(errors.CodeParticipantNotDigimon, "only digimon can digivolve")
	}
	if participant.EvolutionLineID == "" {
		return nil, errors.New(errors.CodeNoEvolutionLine, "participant has no evolution line")
	}
	if !g.canAct(enc, participant) {
		return nil, errors.New(errors.CodeNotYourTurn, "participant cannot act right now")
	}

	// The tamer pays for a partner digimon; an unpartnered NPC pays for
	// itself.
	acting := participant
	isNPC := true
	if dig, ok := g.library.Digimon[participant.EntityID]; ok && dig.PartnerID != "" {
		for i := range enc.Participants {
			p := &enc.Participants[i]
			if p.Type == ParticipantTamer && p.EntityID == dig.PartnerID {
				acting = p
				isNPC = false
				break
			}
		}
	}

	line, ok := g.library.EvolutionLines[participant.EvolutionLineID]
	if !ok {
		return nil, errors.New(errors.CodeEvolutionLineNotFound, "evolution line not found")
	}
	if in.TargetChainIndex < 0 || in.TargetChainIndex >= len(line.Chain) {
		return nil, errors.New(errors.CodeChainIndexInvalid, "target chain index out of range")
	}

	currentIndex := line.CurrentStageIndex
	if isNPC {
		currentIndex = participant.NPCStageIndex
	}
	if currentIndex < 0 || currentIndex >= len(line.Chain) {
		return nil, errors.WithMetadata(errors.CodeChainIndexInvalid, "evolution line has an invalid current stage",
			map[string]string{"line_id": line.ID})
	}

	targetEntry := line.Chain[in.TargetChainIndex]
	currentEntry := line.Chain[currentIndex]

	isEvolve := targetEntry.EvolvesFromIndex == currentIndex
	isDevolve := currentEntry.EvolvesFromIndex == in.TargetChainIndex
	if !isEvolve && !isDevolve {
		return nil, errors.New(errors.CodeStageNotAdjacent, "target must be a direct child (evolve) or parent (devolve) of the current form")
	}
	if isEvolve && !targetEntry.IsUnlocked {
		return nil, errors.New(errors.CodeStageLocked, "target evolution stage is locked")
	}
	if isEvolve && acting.HasAttemptedDigivolve {
		return nil, errors.New(errors.CodeDigivolveAttempted, "already attempted digivolution this turn")
	}

	newForm, ok := g.library.Digimon[targetEntry.DigimonID]
	if !ok {
		return nil, errors.New(errors.CodeDigimonNotFound, "target digimon not found in library")
	}

	if err := spendActions(acting, 1); err != nil {
		return nil, err
	}
	if isEvolve {
		acting.HasAttemptedDigivolve = true
	}

	totalHealth := newForm.BaseStats.Add(newForm.BonusStats).Health
	newMaxWounds := rules.MaxWounds(totalHealth, newForm.Stage)

	oldName := currentEntry.Species
	newName := targetEntry.Species
	var result string

	if isEvolve {
		participant.WoundsHistory = append(participant.WoundsHistory, WoundSnapshot{
			StageIndex: currentIndex,
			Wounds:     participant.CurrentWounds,
			EntityID:   participant.EntityID,
			MaxWounds:  participant.MaxWounds,
		})
		participant.EntityID = newForm.ID
		participant.MaxWounds = newMaxWounds
		participant.CurrentWounds = 0
		if isNPC {
			participant.NPCStageIndex = in.TargetChainIndex
		}
		result = "Full heal"
	} else {
		restoredIndex := in.TargetChainIndex
		if n := len(participant.WoundsHistory); n > 0 {
			previous := participant.WoundsHistory[n-1]
			participant.WoundsHistory = participant.WoundsHistory[:n-1]
			participant.EntityID = previous.EntityID
			participant.MaxWounds = previous.MaxWounds
			participant.CurrentWounds = previous.Wounds
			restoredIndex = previous.StageIndex
		} else {
			participant.EntityID = newForm.ID
			participant.MaxWounds = newMaxWounds
			participant.CurrentWounds = 0
		}
		if isNPC {
			participant.NPCStageIndex = restoredIndex
		}
		result = fmt.Sprintf("Wounds restored to %d", participant.CurrentWounds)
	}

	action := fmt.Sprintf("devolved to %s!", newName)
	if isEvolve {
		action = fmt.Sprintf("digivolved to %s!", newName)
	}
	entry, err := g.logEntry(enc, participant.ID, oldName, action)
	if err != nil {
		return nil, err
	}
	entry.Result = result
	enc.BattleLog = append(enc.BattleLog, entry)
	enc.UpdatedAt = g.now()

	if isNPC {
		return nil, nil
	}
	return &EvolutionLineUpdate{LineID: line.ID, NewStageIndex: in.TargetChainIndex}, nil
}

// FailDigivolveInput records a failed evolution attempt: the action and
// the once-per-turn attempt are still spent.
type FailDigivolveInput struct {
	ParticipantID string
	TargetSpecies string
	RollTotal     int
	DC            int
}

// FailDigivolve burns the tamer's action and attempt on a failed
// willpower check without changing the digimon.
func (g *Engine) FailDigivolve(enc *Encounter, in FailDigivolveInput) error {
	participant := enc.Participant(in.ParticipantID)
	if participant == nil {
		return errors.New(errors.CodeParticipantNotFound, "participant not found")
	}
	if participant.Type != ParticipantDigimon {
		return errors.New(errors.CodeParticipantNotDigimon, "only digimon can digivolve")
	}

	dig, ok := g.library.Digimon[participant.EntityID]
	if !ok || dig.PartnerID == "" {
		return errors.New(errors.CodeNoPartner, "digimon has no partner tamer")
	}
	var tamerParticipant *CombatParticipant
	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type == ParticipantTamer && p.EntityID == dig.PartnerID {
			tamerParticipant = p
			break
		}
	}
	if tamerParticipant == nil {
		return errors.New(errors.CodeNoPartner, "no partner tamer found in encounter")
	}

	currentID := enc.CurrentTurnParticipantID()
	if tamerParticipant.ID != currentID && participant.ID != currentID {
		return errors.New(errors.CodeNotYourTurn, "participant cannot act right now")
	}
	if tamerParticipant.HasAttemptedDigivolve {
		return errors.New(errors.CodeDigivolveAttempted, "already attempted digivolution this turn")
	}
	if err := spendActions(tamerParticipant, 1); err != nil {
		return err
	}
	tamerParticipant.HasAttemptedDigivolve = true

	entry, err := g.logEntry(enc, participant.ID, dig.Name, fmt.Sprintf("failed to digivolve to %s", in.TargetSpecies))
	if err != nil {
		return err
	}
	entry.Result = fmt.Sprintf("Willpower check failed (rolled %d vs DC %d)", in.RollTotal, in.DC)
	enc.BattleLog = append(enc.BattleLog, entry)
	enc.UpdatedAt = g.now()
	return nil
}
