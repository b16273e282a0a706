package domain

import (
	"fmt"

	"github.com/louisbranch/digivice/internal/platform/errors"
)

// maxInterceptPenalty caps how many actions a participant can borrow from
// next round by interceding after their turn.
const maxInterceptPenalty = 2

// ClaimIntercedeInput names the offer being claimed and who steps in.
type ClaimIntercedeInput struct {
	RequestID     string
	InterceptorID string
}

// ClaimIntercede redirects the suspended attack onto the interceptor as a
// forced hit (dodge successes 0) and closes the whole offer group. A claim
// against a request that no longer exists lost the race and observes a
// conflict.
func (g *Engine) ClaimIntercede(enc *Encounter, in ClaimIntercedeInput) error {
	request := enc.Request(in.RequestID)
	if request == nil {
		return errors.New(errors.CodeIntercedeResolved, "another player already interceded")
	}
	if request.Type != RequestIntercedeOffer || request.Attack == nil {
		return errors.New(errors.CodeRequestNotFound, "intercede offer not found")
	}
	ctx := *request.Attack

	interceptor := enc.Participant(in.InterceptorID)
	if interceptor == nil {
		return errors.New(errors.CodeParticipantNotFound, "interceptor not found")
	}
	if in.InterceptorID == ctx.TargetParticipantID {
		return errors.New(errors.CodeIntercedeSelfTarget, "interceptor cannot be the target")
	}

	// The cost lands this round if the interceptor's turn is still coming,
	// otherwise it defers against next round's refresh.
	turnHasGone := g.turnHasPassed(enc, interceptor)
	if turnHasGone {
		if interceptor.InterceptPenalty >= maxInterceptPenalty {
			return errors.New(errors.CodeIntercedeCapReached, "no more intercede actions available for next round")
		}
		interceptor.InterceptPenalty++
	} else {
		if err := spendActions(interceptor, 1); err != nil {
			return err
		}
	}

	enc.removeGroupRequests(ctx.IntercedeGroupID)

	interceptorName := g.displayName(enc, interceptor)
	return g.resolveAttack(enc, resolution{
		ctx:              ctx,
		dodgeSuccesses:   0,
		forcedHit:        true,
		overrideTargetID: interceptor.ID,
		overrideName:     interceptorName,
		penalizeID:       ctx.TargetParticipantID,
		logAction:        fmt.Sprintf("Interceded for %s!", ctx.TargetName),
		dodgeDetail:      "Takes hit with 0 dodge",
	})
}

// turnHasPassed reports whether the participant's slot in the current
// round is behind the live index. A partner digimon acts on its tamer's
// turn, so the tamer's slot decides.
func (g *Engine) turnHasPassed(enc *Encounter, p *CombatParticipant) bool {
	slotID := p.ID
	if p.Type == ParticipantDigimon {
		if dig, ok := g.library.Digimon[p.EntityID]; ok && dig.PartnerID != "" {
			for i := range enc.Participants {
				tamer := &enc.Participants[i]
				if tamer.Type == ParticipantTamer && tamer.EntityID == dig.PartnerID {
					slotID = tamer.ID
					break
				}
			}
		}
	}
	for i, id := range enc.TurnOrder {
		if id == slotID {
			return i < enc.CurrentTurnIndex
		}
	}
	return false
}

// SkipIntercedeInput declines one controller's offer. OptOut records a
// standing refusal for this target; CharacterOptOuts is the GM variant
// scoped to specific interceptors and leaves the offer open.
type SkipIntercedeInput struct {
	RequestID        string
	OptOut           bool
	CharacterOptOuts []string
}

// SkipIntercede removes the responder's offer. When the last sibling in
// the group is gone the suspended attack falls back to a dodge request or
// server-side resolution against the original target.
func (g *Engine) SkipIntercede(enc *Encounter, in SkipIntercedeInput) error {
	request := enc.Request(in.RequestID)
	if request == nil || request.Type != RequestIntercedeOffer || request.Attack == nil {
		return errors.New(errors.CodeRequestNotFound, "intercede offer not found")
	}
	ctx := *request.Attack

	// GM-only per-character opt-outs persist without answering the offer.
	if len(in.CharacterOptOuts) > 0 && request.TargetTamerID == GMControllerID {
		gm := g.ensureGMParticipant(enc)
		if gm.GMCharacterOptOuts == nil {
			gm.GMCharacterOptOuts = make(map[string][]string)
		}
		gm.GMCharacterOptOuts[ctx.TargetParticipantID] = in.CharacterOptOuts
		enc.UpdatedAt = g.now()
		return nil
	}

	if in.OptOut {
		if request.TargetTamerID == GMControllerID {
			gm := g.ensureGMParticipant(enc)
			gm.IntercedeOptOuts = append(gm.IntercedeOptOuts, ctx.TargetParticipantID)
		} else {
			for i := range enc.Participants {
				p := &enc.Participants[i]
				if p.Type == ParticipantTamer && p.EntityID == request.TargetTamerID {
					p.IntercedeOptOuts = append(p.IntercedeOptOuts, ctx.TargetParticipantID)
					break
				}
			}
		}
	}

	enc.removeRequest(in.RequestID)

	if len(enc.GroupRequests(ctx.IntercedeGroupID)) > 0 {
		enc.UpdatedAt = g.now()
		return nil
	}

	// Group collapsed with no claim: resume the attack against the
	// original target.
	ctx.IntercedeGroupID = ""
	_, err := g.requestDodgeOrAutoResolve(enc, ctx)
	return err
}

// ensureGMParticipant returns the GM pseudo participant, creating it on
// first use.
func (g *Engine) ensureGMParticipant(enc *Encounter) *CombatParticipant {
	if gm := enc.Participant(GMParticipantID); gm != nil {
		return gm
	}
	enc.Participants = append(enc.Participants, CombatParticipant{
		ID:   GMParticipantID,
		Type: ParticipantGM,
	})
	return &enc.Participants[len(enc.Participants)-1]
}
