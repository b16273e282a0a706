package domain

import (
	"fmt"
	"time"

	"github.com/louisbranch/digivice/internal/dice"
	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// Engine executes encounter commands. Dice, clock, and id generation are
// injected so every resolution path is reproducible in tests.
type Engine struct {
	library Library
	roller  *dice.Roller
	now     func() time.Time
	newID   func() (string, error)
}

// NewEngine builds an engine over a preloaded entity library.
func NewEngine(library Library, roller *dice.Roller, now func() time.Time, newID func() (string, error)) *Engine {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = NewID
	}
	return &Engine{library: library, roller: roller, now: now, newID: newID}
}

// participantName resolves a display name from the stat store, falling
// back to the participant type when the entity is unknown.
func (g *Engine) participantName(p *CombatParticipant) string {
	switch p.Type {
	case ParticipantDigimon:
		if dig, ok := g.library.Digimon[p.EntityID]; ok {
			return dig.Name
		}
		return "Digimon"
	case ParticipantTamer:
		if tamer, ok := g.library.Tamers[p.EntityID]; ok {
			return tamer.Name
		}
		return "Tamer"
	}
	return "GM"
}

// displayName disambiguates duplicate enemies in the battle log: the
// second Virusmon on the field reads "Virusmon 2".
func (g *Engine) displayName(enc *Encounter, p *CombatParticipant) string {
	name := g.participantName(p)
	if p.Type != ParticipantDigimon || !p.IsEnemy {
		return name
	}
	ordinal := 0
	for i := range enc.Participants {
		other := &enc.Participants[i]
		if other.Type != ParticipantDigimon || !other.IsEnemy {
			continue
		}
		if g.participantName(other) != name {
			continue
		}
		ordinal++
		if other.ID == p.ID {
			break
		}
	}
	if ordinal > 1 {
		return fmt.Sprintf("%s %d", name, ordinal)
	}
	return name
}

// canAct implements the action economy turn check: the participant whose
// turn it is may act, and a partner digimon may act on its tamer's turn.
func (g *Engine) canAct(enc *Encounter, p *CombatParticipant) bool {
	currentID := enc.CurrentTurnParticipantID()
	if p.ID == currentID {
		return true
	}
	if p.Type != ParticipantDigimon {
		return false
	}
	dig, ok := g.library.Digimon[p.EntityID]
	if !ok || dig.PartnerID == "" {
		return false
	}
	current := enc.Participant(currentID)
	return current != nil && current.Type == ParticipantTamer && current.EntityID == dig.PartnerID
}

// spendActions validates and deducts simple actions in one step.
func spendActions(p *CombatParticipant, cost int) error {
	if p.ActionsRemaining.Simple < cost {
		return errors.WithMetadata(errors.CodeInsufficientActions, "not enough actions remaining",
			map[string]string{"participant_id": p.ID})
	}
	p.ActionsRemaining.Simple -= cost
	return nil
}

// isPlayerControlled reports whether a participant answers to a human:
// tamers always, digimon only when partnered.
func (g *Engine) isPlayerControlled(p *CombatParticipant) bool {
	if p.Type == ParticipantTamer {
		return true
	}
	if p.Type != ParticipantDigimon {
		return false
	}
	dig, ok := g.library.Digimon[p.EntityID]
	return ok && dig.PartnerID != ""
}

// controllerOf returns the tamer entity id that answers requests for a
// participant. Unpartnered participants fall to the GM.
func (g *Engine) controllerOf(p *CombatParticipant) string {
	switch p.Type {
	case ParticipantTamer:
		return p.EntityID
	case ParticipantDigimon:
		if dig, ok := g.library.Digimon[p.EntityID]; ok && dig.PartnerID != "" {
			return dig.PartnerID
		}
	}
	return GMControllerID
}

// combatStats resolves a participant's effective numbers from the stat
// store: digimon use their sheet stats and qualities, tamers their derived
// attribute math. NPC digimon missing from the library get zeroes.
func (g *Engine) combatStats(p *CombatParticipant) rules.CombatStats {
	switch p.Type {
	case ParticipantDigimon:
		if dig, ok := g.library.Digimon[p.EntityID]; ok {
			return dig.CombatStats()
		}
	case ParticipantTamer:
		if tamer, ok := g.library.Tamers[p.EntityID]; ok {
			derived := rules.DeriveTamerStats(tamer.Attributes, tamer.Skills)
			return rules.CombatStats{
				Accuracy:  derived.AccuracyPool,
				Damage:    derived.Damage,
				Dodge:     derived.DodgePool,
				Armor:     derived.Armor,
				MaxWounds: derived.WoundBoxes,
			}
		}
	}
	return rules.CombatStats{}
}

// logEntry allocates a battle log entry stamped with the current round.
func (g *Engine) logEntry(enc *Encounter, actorID, actorName, action string) (BattleLogEntry, error) {
	id, err := g.newID()
	if err != nil {
		return BattleLogEntry{}, errors.Wrap(errors.CodeStorage, "generate log id", err)
	}
	return BattleLogEntry{
		ID:        id,
		Timestamp: g.now(),
		Round:     enc.Round,
		ActorID:   actorID,
		ActorName: actorName,
		Action:    action,
	}, nil
}
