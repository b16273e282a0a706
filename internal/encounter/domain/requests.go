package domain

import (
	"fmt"

	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// CreateRequestInput opens a GM-issued request (digimon selection,
// initiative roll, or a manual dodge roll).
type CreateRequestInput struct {
	Type                RequestType
	TargetTamerID       string
	TargetParticipantID string
	Attack              *AttackContext
}

// CreateRequest appends a pending request addressed to a controller.
func (g *Engine) CreateRequest(enc *Encounter, in CreateRequestInput) (*PendingRequest, error) {
	switch in.Type {
	case RequestDigimonSelection, RequestInitiativeRoll, RequestDodgeRoll:
	default:
		return nil, errors.New(errors.CodeResponseInvalid, "unsupported request type")
	}
	if in.TargetTamerID == "" {
		return nil, errors.New(errors.CodeResponseInvalid, "targetTamerId is required")
	}
	id, err := g.newID()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "generate request id", err)
	}
	request := PendingRequest{
		ID:                  id,
		Type:                in.Type,
		TargetTamerID:       in.TargetTamerID,
		TargetParticipantID: in.TargetParticipantID,
		Timestamp:           g.now(),
		Attack:              in.Attack,
	}
	enc.PendingRequests = append(enc.PendingRequests, request)
	enc.UpdatedAt = g.now()
	return &request, nil
}

// SubmitResponseInput answers a pending request.
type SubmitResponseInput struct {
	RequestID string
	TamerID   string
	Response  ResponsePayload
}

// SubmitResponse validates the answer against its request, records it, and
// applies the side effects: initiative rolls set the participant's
// initiative, digimon selections add the chosen partner to the roster, and
// dodge rolls run the suspended attack to completion.
func (g *Engine) SubmitResponse(enc *Encounter, in SubmitResponseInput) error {
	request := enc.Request(in.RequestID)
	if request == nil {
		return errors.New(errors.CodeRequestNotFound, "request not found")
	}
	if request.TargetTamerID != in.TamerID {
		return errors.New(errors.CodeRequestNotYours, "this request is not for you")
	}

	switch in.Response.Type {
	case ResponseDigimonSelected:
		if request.Type != RequestDigimonSelection {
			return errors.New(errors.CodeResponseMismatch, "response type does not match request type")
		}
	case ResponseInitiativeRolled:
		if request.Type != RequestInitiativeRoll {
			return errors.New(errors.CodeResponseMismatch, "response type does not match request type")
		}
		if in.Response.InitiativeRoll < 3 || in.Response.InitiativeRoll > 18 {
			return errors.New(errors.CodeResponseInvalid, "initiative roll must be between 3 and 18 (3d6)")
		}
	case ResponseDodgeRolled:
		if request.Type != RequestDodgeRoll {
			return errors.New(errors.CodeResponseMismatch, "response type does not match request type")
		}
		if in.Response.DodgeDicePool <= 0 || in.Response.DodgeDiceResults == nil {
			return errors.New(errors.CodeResponseInvalid, "dodgeDicePool and dodgeDiceResults are required")
		}
	default:
		return errors.New(errors.CodeResponseInvalid, "unsupported response type")
	}

	responseID, err := g.newID()
	if err != nil {
		return errors.Wrap(errors.CodeStorage, "generate response id", err)
	}
	record := RequestResponse{
		ID:        responseID,
		RequestID: in.RequestID,
		TamerID:   in.TamerID,
		Response:  in.Response,
	}
	record.Response.Timestamp = g.now()
	if in.Response.Type == ResponseDodgeRolled {
		record.ParticipantID = request.TargetParticipantID
	}
	enc.RequestResponses = append(enc.RequestResponses, record)

	switch in.Response.Type {
	case ResponseInitiativeRolled:
		if p := enc.Participant(request.TargetParticipantID); p != nil {
			p.Initiative = in.Response.Initiative
			p.InitiativeRoll = in.Response.InitiativeRoll
		}
		enc.removeRequest(in.RequestID)

	case ResponseDigimonSelected:
		if in.Response.DigimonID != "" {
			if err := g.addSelectedDigimon(enc, in.Response.DigimonID); err != nil {
				return err
			}
		}
		enc.removeRequest(in.RequestID)

	case ResponseDodgeRolled:
		ctx := request.Attack
		enc.removeRequest(in.RequestID)
		if ctx != nil {
			return g.resolveAttack(enc, resolution{
				ctx:            *ctx,
				dodgeSuccesses: in.Response.DodgeSuccesses,
				dodgeDetail:    formatDodgeRoll(in.Response),
				penalizeID:     ctx.TargetParticipantID,
			})
		}
	}

	enc.UpdatedAt = g.now()
	return nil
}

func formatDodgeRoll(resp ResponsePayload) string {
	return fmt.Sprintf("%dd6 => [%s] = %d successes",
		resp.DodgeDicePool, joinInts(resp.DodgeDiceResults), resp.DodgeSuccesses)
}

// addSelectedDigimon joins a tamer's chosen partner to the roster.
func (g *Engine) addSelectedDigimon(enc *Encounter, digimonID string) error {
	dig, ok := g.library.Digimon[digimonID]
	if !ok {
		return errors.New(errors.CodeDigimonNotFound, "selected digimon not found")
	}
	for _, p := range enc.Participants {
		if p.Type == ParticipantDigimon && p.EntityID == digimonID {
			return nil
		}
	}
	id, err := g.newID()
	if err != nil {
		return errors.Wrap(errors.CodeStorage, "generate participant id", err)
	}
	stats := dig.CombatStats()
	enc.Participants = append(enc.Participants, CombatParticipant{
		ID:            id,
		Type:          ParticipantDigimon,
		EntityID:      digimonID,
		CurrentStance: rules.StanceNeutral,
		MaxWounds:     stats.MaxWounds,
	})
	return nil
}

// DeleteRequest removes a pending request without resolving it. This is
// the GM's relief valve for a response that will never arrive; recorded
// responses are kept so clients can still show past outcomes.
func (g *Engine) DeleteRequest(enc *Encounter, requestID string) error {
	if enc.Request(requestID) == nil {
		return errors.New(errors.CodeRequestNotFound, "request not found")
	}
	enc.removeRequest(requestID)
	enc.UpdatedAt = g.now()
	return nil
}

// DeleteResponse removes a recorded response once clients no longer need
// it.
func (g *Engine) DeleteResponse(enc *Encounter, responseID string) error {
	kept := enc.RequestResponses[:0]
	found := false
	for _, resp := range enc.RequestResponses {
		if resp.ID == responseID {
			found = true
			continue
		}
		kept = append(kept, resp)
	}
	if !found {
		return errors.New(errors.CodeResponseNotFound, "response not found")
	}
	enc.RequestResponses = kept
	enc.UpdatedAt = g.now()
	return nil
}
