package domain

import (
	"fmt"
	"strings"

	"github.com/louisbranch/digivice/internal/dice"
	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// Bolster types. Damage-accuracy trades actions for +2 damage; bit-cpu
// overclocks the effect for +1 duration but needs a round to cool down.
const (
	BolsterDamageAccuracy = "damage-accuracy"
	BolsterBitCPU         = "bit-cpu"
)

const maxDigimonBolstersPerBattle = 2

// DeclareAttackInput carries a client attack declaration. The accuracy
// roll is client-supplied and trusted; dice results are optional detail
// for the log.
type DeclareAttackInput struct {
	AttackerID        string
	TargetID          string
	AttackID          string
	AccuracyDicePool  int
	AccuracyDice      []int
	AccuracySuccesses int
	Bolstered         bool
	BolsterType       string
}

// AttackOutcome reports how far a declaration progressed: fully resolved,
// or suspended awaiting the named pending requests.
type AttackOutcome struct {
	Resolved bool
	Pending  []PendingRequest
}

// DeclareAttack runs the attack pipeline up to the point where a human
// response is required: validation, action spend, auto-miss, intercede
// fan-out, and either a dodge request or immediate NPC resolution.
func (g *Engine) DeclareAttack(enc *Encounter, in DeclareAttackInput) (*AttackOutcome, error) {
	if enc.Phase != PhaseCombat {
		return nil, errors.New(errors.CodeEncounterPhaseDisallow, "attacks require the combat phase")
	}

	attacker := enc.Participant(in.AttackerID)
	if attacker == nil {
		return nil, errors.New(errors.CodeParticipantNotFound, "attacker not found")
	}
	if !g.canAct(enc, attacker) {
		return nil, errors.New(errors.CodeNotYourTurn, "participant cannot act right now")
	}
	target := enc.Participant(in.TargetID)
	if target == nil {
		return nil, errors.New(errors.CodeTargetNotFound, "target not found")
	}

	_, tags, err := g.attackDefinition(attacker, in.AttackID)
	if err != nil {
		return nil, err
	}

	if len(in.AccuracyDice) > 0 && dice.CountSuccesses(in.AccuracyDice) != in.AccuracySuccesses {
		return nil, errors.New(errors.CodeAccuracyDiceInvalid, "accuracy successes do not match dice results")
	}
	if in.AccuracySuccesses < 0 {
		return nil, errors.New(errors.CodeAccuracyDiceInvalid, "accuracy successes cannot be negative")
	}

	if rules.HasTag(tags, rules.TagAmmo) && attacker.usedAttack(in.AttackID) {
		return nil, errors.WithMetadata(errors.CodeAttackOutOfAmmo, "attack has no ammo left",
			map[string]string{"attack_id": in.AttackID})
	}

	if in.Bolstered {
		if err := g.validateBolster(enc, attacker, tags, in.BolsterType); err != nil {
			return nil, err
		}
	}

	cost := 1
	if in.Bolstered {
		cost = 2
	}
	if err := spendActions(attacker, cost); err != nil {
		return nil, err
	}
	attacker.UsedAttackIDs = append(attacker.UsedAttackIDs, in.AttackID)
	// The Directed bonus was already folded into the accuracy pool.
	attacker.removeEffectByName("Directed")
	if in.Bolstered && attacker.Type == ParticipantDigimon {
		attacker.DigimonBolsterCount++
		if in.BolsterType == BolsterBitCPU {
			attacker.LastBitCPUBolsterRound = enc.Round
		}
	}

	attackerName := g.displayName(enc, attacker)
	targetName := g.displayName(enc, target)

	// Auto-miss: zero accuracy successes ends the attack here. Being
	// targeted still wears the defender down.
	if in.AccuracySuccesses == 0 {
		target.DodgePenalty++
		entry, err := g.logEntry(enc, attacker.ID, attackerName, "Attack Result")
		if err != nil {
			return nil, err
		}
		zero := 0
		entry.Target = targetName
		entry.Result = "AUTO MISS - 0 accuracy successes"
		entry.Damage = &zero
		entry.Effects = []string{"Miss"}
		enc.BattleLog = append(enc.BattleLog, entry)
		enc.UpdatedAt = g.now()
		return &AttackOutcome{Resolved: true}, nil
	}

	ctx := AttackContext{
		AttackerParticipantID: attacker.ID,
		TargetParticipantID:   target.ID,
		AttackerName:          attackerName,
		TargetName:            targetName,
		AttackID:              in.AttackID,
		AccuracySuccesses:     in.AccuracySuccesses,
		AccuracyDice:          in.AccuracyDice,
		DodgePenalty:          target.DodgePenalty,
		Bolstered:             in.Bolstered,
		BolsterType:           in.BolsterType,
	}
	if in.Bolstered && in.BolsterType == BolsterDamageAccuracy {
		ctx.BolsterDamageBonus = 2
	}
	if in.Bolstered && in.BolsterType == BolsterBitCPU {
		ctx.BolsterBitCPUBonus = 1
	}

	// Intercede fan-out: every controller able to protect the target gets
	// an offer sharing one group id.
	offers, err := g.openIntercedeGroup(enc, target, ctx)
	if err != nil {
		return nil, err
	}
	if len(offers) > 0 {
		enc.PendingRequests = append(enc.PendingRequests, offers...)
		enc.UpdatedAt = g.now()
		return &AttackOutcome{Pending: offers}, nil
	}

	return g.requestDodgeOrAutoResolve(enc, ctx)
}

// attackDefinition finds the attack on the attacker's sheet. Tamer
// attackers improvise and carry no sheet definition.
func (g *Engine) attackDefinition(attacker *CombatParticipant, attackID string) (*Attack, []rules.Tag, error) {
	if attacker.Type != ParticipantDigimon {
		return nil, nil, nil
	}
	dig, ok := g.library.Digimon[attacker.EntityID]
	if !ok {
		return nil, nil, nil
	}
	attack, ok := dig.Attack(attackID)
	if !ok {
		return nil, nil, errors.WithMetadata(errors.CodeAttackNotFound, "attack not found on sheet",
			map[string]string{"attack_id": attackID})
	}
	return &attack, rules.ParseTags(attack.Tags), nil
}

func (g *Engine) validateBolster(enc *Encounter, attacker *CombatParticipant, tags []rules.Tag, bolsterType string) error {
	if rules.HasTag(tags, rules.TagSignatureMove) {
		return errors.New(errors.CodeBolsterSignature, "signature moves cannot be bolstered")
	}
	if attacker.Type == ParticipantDigimon {
		if attacker.DigimonBolsterCount >= maxDigimonBolstersPerBattle {
			return errors.New(errors.CodeBolsterLimit, "bolster limit reached for this battle")
		}
		if bolsterType == BolsterBitCPU && attacker.LastBitCPUBolsterRound == enc.Round && enc.Round > 0 {
			return errors.New(errors.CodeBolsterCooldown, "bit/cpu bolster already used this round")
		}
	}
	return nil
}

// openIntercedeGroup emits one intercede offer per eligible controller.
// Eligible tamers have a partner digimon present and no standing opt-out
// for this target; the GM is eligible unless opted out.
func (g *Engine) openIntercedeGroup(enc *Encounter, target *CombatParticipant, ctx AttackContext) ([]PendingRequest, error) {
	var controllers []string
	for i := range enc.Participants {
		p := &enc.Participants[i]
		if p.Type != ParticipantTamer {
			continue
		}
		if p.optedOutOf(target.ID) {
			continue
		}
		if g.library.PartnerDigimonOf(enc, p.EntityID) != nil {
			controllers = append(controllers, p.EntityID)
		}
	}

	gmEligible := true
	if gm := enc.Participant(GMParticipantID); gm != nil && gm.optedOutOf(target.ID) {
		gmEligible = false
	}
	if gmEligible {
		controllers = append(controllers, GMControllerID)
	}
	if len(controllers) == 0 {
		return nil, nil
	}

	groupID, err := g.newID()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "generate intercede group id", err)
	}
	ctx.IntercedeGroupID = groupID

	offers := make([]PendingRequest, 0, len(controllers))
	for _, controller := range controllers {
		id, err := g.newID()
		if err != nil {
			return nil, errors.Wrap(errors.CodeStorage, "generate request id", err)
		}
		attack := ctx
		offers = append(offers, PendingRequest{
			ID:                  id,
			Type:                RequestIntercedeOffer,
			TargetTamerID:       controller,
			TargetParticipantID: target.ID,
			Timestamp:           g.now(),
			Attack:              &attack,
		})
	}
	return offers, nil
}

// requestDodgeOrAutoResolve is the no-protectors path: player targets get
// a dodge request, NPC targets resolve immediately with a server roll.
func (g *Engine) requestDodgeOrAutoResolve(enc *Encounter, ctx AttackContext) (*AttackOutcome, error) {
	target := enc.Participant(ctx.TargetParticipantID)
	if target == nil {
		return nil, errors.New(errors.CodeTargetNotFound, "target not found")
	}

	if g.isPlayerControlled(target) {
		id, err := g.newID()
		if err != nil {
			return nil, errors.Wrap(errors.CodeStorage, "generate request id", err)
		}
		ctx.IntercedeGroupID = ""
		ctx.DodgePenalty = target.DodgePenalty
		attack := ctx
		request := PendingRequest{
			ID:                  id,
			Type:                RequestDodgeRoll,
			TargetTamerID:       g.controllerOf(target),
			TargetParticipantID: target.ID,
			Timestamp:           g.now(),
			Attack:              &attack,
		}
		enc.PendingRequests = append(enc.PendingRequests, request)
		enc.UpdatedAt = g.now()
		return &AttackOutcome{Pending: []PendingRequest{request}}, nil
	}

	if err := g.autoResolveDodge(enc, ctx); err != nil {
		return nil, err
	}
	enc.UpdatedAt = g.now()
	return &AttackOutcome{Resolved: true}, nil
}

// autoResolveDodge rolls the defender's dodge server-side and feeds the
// result into the shared resolution step.
func (g *Engine) autoResolveDodge(enc *Encounter, ctx AttackContext) error {
	target := enc.Participant(ctx.TargetParticipantID)
	if target == nil {
		return errors.New(errors.CodeTargetNotFound, "target not found")
	}

	pool := g.dodgePool(target)
	results, err := g.roller.RollPool(pool)
	if err != nil {
		return errors.Wrap(errors.CodeStorage, "roll dodge pool", err)
	}
	successes := dice.CountSuccesses(results)

	return g.resolveAttack(enc, resolution{
		ctx:            ctx,
		dodgeSuccesses: successes,
		dodgeDetail:    fmt.Sprintf("%dd6 => [%s] = %d successes", pool, joinInts(results), successes),
		penalizeID:     target.ID,
	})
}

// dodgePool computes a server-rolled defender's dice: dodge stat (floor 3
// when the sheet has none), stance, dodge penalty with a floor of one die,
// plus any one-shot Directed bonus.
func (g *Engine) dodgePool(target *CombatParticipant) int {
	pool := g.combatStats(target).Dodge
	if pool == 0 {
		pool = 3
	}
	pool = rules.ApplyStanceToDodge(pool, target.CurrentStance)
	pool -= target.DodgePenalty
	if pool < 1 {
		pool = 1
	}
	if bonus, ok := target.effectValue("Directed"); ok {
		pool += bonus
	}
	return pool
}

// resolution is the input to the shared damage step: one formula serves
// human dodges, server rolls, and forced intercede hits.
type resolution struct {
	ctx            AttackContext
	dodgeSuccesses int
	dodgeDetail    string
	forcedHit      bool
	// overrideTargetID redirects the hit (intercede); empty means the
	// context target.
	overrideTargetID string
	overrideName     string
	// penalizeID names whose dodgePenalty increments. On an intercede the
	// original target pays it, not the interceptor.
	penalizeID string
	logAction  string
}

// resolveAttack implements the resolution algorithm: net successes, damage
// math, effect application, combat monster bookkeeping, and knockout
// handling, appending the log entries as it goes.
func (g *Engine) resolveAttack(enc *Encounter, res resolution) error {
	attacker := enc.Participant(res.ctx.AttackerParticipantID)
	targetID := res.ctx.TargetParticipantID
	targetName := res.ctx.TargetName
	if res.overrideTargetID != "" {
		targetID = res.overrideTargetID
		targetName = res.overrideName
	}
	target := enc.Participant(targetID)
	if target == nil {
		return errors.New(errors.CodeTargetNotFound, "defender not found")
	}

	netSuccesses := res.ctx.AccuracySuccesses - res.dodgeSuccesses
	hit := res.forcedHit || netSuccesses >= 0

	var attackDef *Attack
	var tags []rules.Tag
	baseDamage := 0
	attackerHasCombatMonster := false
	if attacker != nil {
		stats := g.combatStats(attacker)
		baseDamage = stats.Damage
		attackerHasCombatMonster = stats.HasCombatMonster
		var err error
		attackDef, tags, err = g.attackDefinition(attacker, res.ctx.AttackID)
		if err != nil {
			return err
		}
		baseDamage += rules.WeaponBonus(tags)
	}
	baseDamage += res.ctx.BolsterDamageBonus
	if hit && attackerHasCombatMonster && attacker.CombatMonsterBonus > 0 {
		baseDamage += attacker.CombatMonsterBonus
	}

	armorPiercing := rules.ArmorPiercing(tags)
	targetStats := g.combatStats(target)
	targetArmor := targetStats.Armor

	effectiveArmor := targetArmor - armorPiercing
	if effectiveArmor < 0 {
		effectiveArmor = 0
	}
	damage := 0
	if hit {
		damage = baseDamage + netSuccesses - effectiveArmor
		if damage < 1 {
			damage = 1
		}
	}

	// Attacker spends its accumulated combat monster bonus on a landed hit.
	if hit && attackerHasCombatMonster {
		attacker.CombatMonsterBonus = 0
	}

	if res.penalizeID != "" {
		if penalized := enc.Participant(res.penalizeID); penalized != nil {
			penalized.DodgePenalty++
		}
	}
	// A consumed Directed bonus never carries to the next roll.
	target.removeEffectByName("Directed")

	var appliedEffect string
	if hit {
		target.applyDamage(damage)

		if targetStats.HasCombatMonster {
			target.CombatMonsterBonus += damage
			if target.CombatMonsterBonus > targetStats.Health {
				target.CombatMonsterBonus = targetStats.Health
			}
		}

		if attackDef != nil && attackDef.Effect != "" && rules.EffectAllowedFor(attackDef.Effect, attackDef.Type) {
			applies := attackDef.Type != rules.AttackDamage || damage >= 2
			if applies {
				duration := netSuccesses
				if duration < 1 {
					duration = 1
				}
				duration += res.ctx.BolsterBitCPUBonus
				effectID, err := g.newID()
				if err != nil {
					return errors.Wrap(errors.CodeStorage, "generate effect id", err)
				}
				target.ActiveEffects = append(target.ActiveEffects, ActiveEffect{
					ID:       effectID,
					Name:     attackDef.Effect,
					Kind:     rules.KindOf(attackDef.Effect),
					Duration: duration,
					Source:   "Attack",
				})
				appliedEffect = attackDef.Effect
			}
		}
	}

	action := res.logAction
	if action == "" {
		action = "Dodge"
	}
	entry, err := g.logEntry(enc, target.ID, targetName, action)
	if err != nil {
		return err
	}
	outcome := "MISS!"
	if hit {
		outcome = "HIT!"
	}
	detail := res.dodgeDetail
	if detail == "" {
		detail = fmt.Sprintf("%d dodge successes", res.dodgeSuccesses)
	}
	entry.Result = fmt.Sprintf("%s - Net: %d - %s", detail, netSuccesses, outcome)
	logDamage := damage
	entry.Damage = &logDamage
	entry.Effects = []string{action}
	if appliedEffect != "" {
		entry.Effects = append(entry.Effects, "Applied: "+appliedEffect)
	}
	entry.BaseDamage = baseDamage
	entry.NetSuccesses = netSuccesses
	entry.TargetArmor = targetArmor
	entry.ArmorPiercing = armorPiercing
	entry.EffectiveArmor = effectiveArmor
	entry.FinalDamage = damage
	entry.Hit = hit
	enc.BattleLog = append(enc.BattleLog, entry)

	if hit && target.CurrentWounds >= target.MaxWounds {
		if err := g.handleKnockout(enc, target, targetName); err != nil {
			return err
		}
	}
	enc.UpdatedAt = g.now()
	return nil
}

// handleKnockout reverts an evolved form from its wound history, removes
// defeated enemies, and leaves player-controlled participants maxed out.
func (g *Engine) handleKnockout(enc *Encounter, target *CombatParticipant, targetName string) error {
	if len(target.WoundsHistory) > 0 {
		top := target.WoundsHistory[len(target.WoundsHistory)-1]
		target.WoundsHistory = target.WoundsHistory[:len(target.WoundsHistory)-1]

		previousName := targetName
		if dig, ok := g.library.Digimon[top.EntityID]; ok {
			previousName = dig.Name
		}
		target.EntityID = top.EntityID
		target.MaxWounds = top.MaxWounds
		target.CurrentWounds = top.Wounds
		target.NPCStageIndex = top.StageIndex

		entry, err := g.logEntry(enc, target.ID, targetName, fmt.Sprintf("was knocked out and devolved to %s!", previousName))
		if err != nil {
			return err
		}
		entry.Result = fmt.Sprintf("Wounds restored to %d", top.Wounds)
		entry.Effects = []string{"Auto-Devolve"}
		enc.BattleLog = append(enc.BattleLog, entry)
		return nil
	}

	if !target.IsEnemy {
		return nil
	}

	removedID := target.ID
	kept := enc.Participants[:0]
	for _, p := range enc.Participants {
		if p.ID == removedID {
			continue
		}
		kept = append(kept, p)
	}
	enc.Participants = kept

	order := enc.TurnOrder[:0]
	for i, id := range enc.TurnOrder {
		if id == removedID {
			if i <= enc.CurrentTurnIndex && enc.CurrentTurnIndex > 0 {
				enc.CurrentTurnIndex--
			}
			continue
		}
		order = append(order, id)
	}
	enc.TurnOrder = order

	entry, err := g.logEntry(enc, removedID, targetName, "was defeated and removed from the encounter!")
	if err != nil {
		return err
	}
	entry.Result = "Defeated"
	entry.Effects = []string{"Defeated"}
	enc.BattleLog = append(enc.BattleLog, entry)
	return nil
}

// ResolveNPCAttackInput is the GM path where both rolls arrive together.
type ResolveNPCAttackInput struct {
	AttackerID        string
	TargetID          string
	AttackID          string
	AccuracySuccesses int
	AccuracyDice      []int
	DodgeSuccesses    int
	DodgeDice         []int
}

// ResolveNPCAttack applies a full attack in one call: the GM supplies both
// the accuracy and dodge rolls and the shared resolution runs immediately.
// A two-action cost models the NPC's full attack routine.
func (g *Engine) ResolveNPCAttack(enc *Encounter, in ResolveNPCAttackInput) error {
	if enc.Phase != PhaseCombat {
		return errors.New(errors.CodeEncounterPhaseDisallow, "attacks require the combat phase")
	}
	attacker := enc.Participant(in.AttackerID)
	if attacker == nil {
		return errors.New(errors.CodeParticipantNotFound, "attacker not found")
	}
	if !g.canAct(enc, attacker) {
		return errors.New(errors.CodeNotYourTurn, "participant cannot act right now")
	}
	target := enc.Participant(in.TargetID)
	if target == nil {
		return errors.New(errors.CodeTargetNotFound, "target not found")
	}
	if err := spendActions(attacker, 2); err != nil {
		return err
	}
	attacker.UsedAttackIDs = append(attacker.UsedAttackIDs, in.AttackID)

	return g.resolveAttack(enc, resolution{
		ctx: AttackContext{
			AttackerParticipantID: attacker.ID,
			TargetParticipantID:   target.ID,
			AttackerName:          g.displayName(enc, attacker),
			TargetName:            g.displayName(enc, target),
			AttackID:              in.AttackID,
			AccuracySuccesses:     in.AccuracySuccesses,
			AccuracyDice:          in.AccuracyDice,
		},
		dodgeSuccesses: in.DodgeSuccesses,
		dodgeDetail:    fmt.Sprintf("[%s] = %d successes", joinInts(in.DodgeDice), in.DodgeSuccesses),
		penalizeID:     target.ID,
	})
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}
