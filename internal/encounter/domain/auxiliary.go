package domain

import (
	"fmt"

	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// directedDuration keeps the one-shot Directed buff alive until consumed;
// it is removed on use, not by round decay.
const directedDuration = 99

// DirectInput is a tamer granting a digimon a one-shot pool bonus.
type DirectInput struct {
	ParticipantID  string
	TargetDigimonID string
	Bolstered      bool
}

// Direct grants the target digimon a Directed effect worth the tamer's
// charisma (-2 for a digimon that is not their partner, +2 when
// bolstered). Once per own turn.
func (g *Engine) Direct(enc *Encounter, in DirectInput) error {
	if enc.Phase != PhaseCombat {
		return errors.New(errors.CodeEncounterPhaseDisallow, "direct requires the combat phase")
	}
	actor := enc.Participant(in.ParticipantID)
	if actor == nil {
		return errors.New(errors.CodeParticipantNotFound, "participant not found")
	}
	if actor.Type != ParticipantTamer {
		return errors.New(errors.CodeParticipantNotTamer, "only tamers can use Direct")
	}
	if actor.ID != enc.CurrentTurnParticipantID() {
		return errors.New(errors.CodeNotYourTurn, "it is not this participant's turn")
	}
	if actor.HasDirectedThisTurn {
		return errors.New(errors.CodeDirectTwice, "cannot Direct twice in the same turn")
	}

	target := enc.Participant(in.TargetDigimonID)
	if target == nil || target.Type != ParticipantDigimon {
		return errors.New(errors.CodeParticipantNotDigimon, "target digimon not found")
	}

	tamer, ok := g.library.Tamers[actor.EntityID]
	if !ok {
		return errors.New(errors.CodeTamerNotFound, "tamer entity not found")
	}

	cost := 1
	if in.Bolstered {
		cost = 2
	}
	if err := spendActions(actor, cost); err != nil {
		return err
	}
	actor.HasDirectedThisTurn = true

	isPartner := false
	if dig, ok := g.library.Digimon[target.EntityID]; ok {
		isPartner = dig.PartnerID == actor.EntityID
	}
	bonus := tamer.Attributes.Charisma
	if !isPartner {
		bonus -= 2
		if bonus < 0 {
			bonus = 0
		}
	}
	if in.Bolstered {
		bonus += 2
	}

	effectID, err := g.newID()
	if err != nil {
		return errors.Wrap(errors.CodeStorage, "generate effect id", err)
	}
	target.ActiveEffects = append(target.ActiveEffects, ActiveEffect{
		ID:          effectID,
		Name:        "Directed",
		Kind:        rules.EffectBuff,
		Duration:    directedDuration,
		Source:      tamer.Name,
		Description: fmt.Sprintf("+%d to next Accuracy or Dodge", bonus),
		Value:       bonus,
	})

	targetName := g.displayName(enc, target)
	action := "Direct"
	if in.Bolstered {
		action = "Bolster Direct"
	}
	entry, err := g.logEntry(enc, actor.ID, tamer.Name, action)
	if err != nil {
		return err
	}
	entry.Target = targetName
	result := fmt.Sprintf("%s directed %s (+%d to next Accuracy or Dodge)", tamer.Name, targetName, bonus)
	if !isPartner {
		result += " (non-partner: -2 penalty)"
	}
	if in.Bolstered {
		result += " (bolstered)"
	}
	entry.Result = result
	entry.Effects = []string{action}
	enc.BattleLog = append(enc.BattleLog, entry)
	enc.UpdatedAt = g.now()
	return nil
}

// SpecialOrderInput invokes one of a tamer's unlocked special orders.
type SpecialOrderInput struct {
	ParticipantID string
	OrderName     string
	TargetID      string
}

// UseSpecialOrder validates the order against the tamer's unlock table and
// per-battle usage, applies the mechanical orders directly, and logs the
// rest for the GM to adjudicate.
func (g *Engine) UseSpecialOrder(enc *Encounter, in SpecialOrderInput) error {
	if enc.Phase != PhaseCombat {
		return errors.New(errors.CodeEncounterPhaseDisallow, "special orders require the combat phase")
	}
	actor := enc.Participant(in.ParticipantID)
	if actor == nil {
		return errors.New(errors.CodeParticipantNotFound, "participant not found")
	}
	if actor.Type != ParticipantTamer {
		return errors.New(errors.CodeParticipantNotTamer, "only tamers can use special orders")
	}
	if actor.ID != enc.CurrentTurnParticipantID() {
		return errors.New(errors.CodeNotYourTurn, "it is not this participant's turn")
	}

	tamer, ok := g.library.Tamers[actor.EntityID]
	if !ok {
		return errors.New(errors.CodeTamerNotFound, "tamer entity not found")
	}
	order, unlocked := rules.FindOrder(tamer.UnlockedOrders(), in.OrderName)
	if !unlocked {
		return errors.WithMetadata(errors.CodeOrderLocked, "special order is not unlocked",
			map[string]string{"order": in.OrderName})
	}
	if actor.usedOrder(in.OrderName) {
		return errors.WithMetadata(errors.CodeOrderAlreadyUsed, "special order already used",
			map[string]string{"order": in.OrderName})
	}

	cost := rules.OrderActionCost(order.Type)
	if actor.ActionsRemaining.Simple < cost {
		return errors.New(errors.CodeInsufficientActions, "not enough actions for this order")
	}

	partner := g.library.PartnerDigimonOf(enc, actor.EntityID)

	var result string
	switch in.OrderName {
	case "Energy Burst":
		if partner == nil {
			return errors.New(errors.CodeNoPartner, "no partner digimon found")
		}
		healed := partner.CurrentWounds
		if healed > 5 {
			healed = 5
		}
		partner.heal(5)
		result = fmt.Sprintf("Partner healed %d wound(s)", healed)

	case "Swagger":
		if partner == nil {
			return errors.New(errors.CodeNoPartner, "no partner digimon found")
		}
		effectID, err := g.newID()
		if err != nil {
			return errors.Wrap(errors.CodeStorage, "generate effect id", err)
		}
		partner.ActiveEffects = append(partner.ActiveEffects, ActiveEffect{
			ID:          effectID,
			Name:        "Taunt",
			Kind:        rules.EffectBuff,
			Duration:    3,
			Source:      tamer.Name,
			Description: "Auto-aggro at CPUx2",
		})
		result = "Partner gains Taunt for 3 rounds"

	case "Enemy Scan":
		if in.TargetID == "" {
			return errors.New(errors.CodeOrderNeedsTarget, "Enemy Scan requires a target")
		}
		target := enc.Participant(in.TargetID)
		if target == nil {
			return errors.New(errors.CodeTargetNotFound, "target not found")
		}
		effectID, err := g.newID()
		if err != nil {
			return errors.Wrap(errors.CodeStorage, "generate effect id", err)
		}
		target.ActiveEffects = append(target.ActiveEffects, ActiveEffect{
			ID:          effectID,
			Name:        "Debilitate",
			Kind:        rules.EffectDebuff,
			Duration:    1,
			Source:      tamer.Name,
			Description: "-2 to all stats except health for 1 round",
		})
		result = "Target debilitated (-2 all stats for 1 round)"

	case "Tough it Out!":
		if partner == nil {
			return errors.New(errors.CodeNoPartner, "no partner digimon found")
		}
		result = "No negative effects to purify"
		for _, effect := range partner.ActiveEffects {
			if effect.Kind == rules.EffectDebuff || effect.Kind == rules.EffectStatus {
				removed := effect
				kept := partner.ActiveEffects[:0]
				skipped := false
				for _, e := range partner.ActiveEffects {
					if !skipped && e.ID == removed.ID {
						skipped = true
						continue
					}
					kept = append(kept, e)
				}
				partner.ActiveEffects = kept
				result = fmt.Sprintf("Purified: removed %s", removed.Name)
				break
			}
		}

	default:
		// Non-mechanical orders are log-only; the GM resolves them at the
		// table.
		result = order.Effect
	}

	actor.ActionsRemaining.Simple -= cost
	actor.UsedSpecialOrders = append(actor.UsedSpecialOrders, in.OrderName)

	entry, err := g.logEntry(enc, actor.ID, tamer.Name, "Special Order: "+in.OrderName)
	if err != nil {
		return err
	}
	if in.TargetID != "" {
		if target := enc.Participant(in.TargetID); target != nil {
			entry.Target = g.displayName(enc, target)
		}
	}
	entry.Result = result
	entry.Effects = []string{in.OrderName}
	enc.BattleLog = append(enc.BattleLog, entry)
	enc.UpdatedAt = g.now()
	return nil
}
