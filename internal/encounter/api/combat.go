package api

import (
	"net/http"

	"github.com/louisbranch/digivice/internal/encounter/domain"
)

type declareAttackRequest struct {
	AttackerID        string `json:"attackerId"`
	TargetID          string `json:"targetId"`
	AttackID          string `json:"attackId"`
	AccuracyDicePool  int    `json:"accuracyDicePool,omitempty"`
	AccuracyDice      []int  `json:"accuracyDice,omitempty"`
	AccuracySuccesses int    `json:"accuracySuccesses"`
	Bolstered         bool   `json:"bolstered,omitempty"`
	BolsterType       string `json:"bolsterType,omitempty"`
}

type attackResponse struct {
	Encounter *domain.Encounter       `json:"encounter"`
	Resolved  bool                    `json:"resolved"`
	Pending   []domain.PendingRequest `json:"pending,omitempty"`
}

func (h *Handler) declareAttack(w http.ResponseWriter, r *http.Request) {
	var req declareAttackRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, outcome, err := h.svc.DeclareAttack(r.Context(), r.PathValue("id"), domain.DeclareAttackInput{
		AttackerID:        req.AttackerID,
		TargetID:          req.TargetID,
		AttackID:          req.AttackID,
		AccuracyDicePool:  req.AccuracyDicePool,
		AccuracyDice:      req.AccuracyDice,
		AccuracySuccesses: req.AccuracySuccesses,
		Bolstered:         req.Bolstered,
		BolsterType:       req.BolsterType,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, attackResponse{
		Encounter: enc,
		Resolved:  outcome.Resolved,
		Pending:   outcome.Pending,
	})
}

type npcAttackRequest struct {
	AttackerID        string `json:"attackerId"`
	TargetID          string `json:"targetId"`
	AttackID          string `json:"attackId"`
	AccuracySuccesses int    `json:"accuracySuccesses"`
	AccuracyDice      []int  `json:"accuracyDice,omitempty"`
	DodgeSuccesses    int    `json:"dodgeSuccesses"`
	DodgeDice         []int  `json:"dodgeDice,omitempty"`
}

func (h *Handler) resolveNPCAttack(w http.ResponseWriter, r *http.Request) {
	var req npcAttackRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.ResolveNPCAttack(r.Context(), r.PathValue("id"), domain.ResolveNPCAttackInput{
		AttackerID:        req.AttackerID,
		TargetID:          req.TargetID,
		AttackID:          req.AttackID,
		AccuracySuccesses: req.AccuracySuccesses,
		AccuracyDice:      req.AccuracyDice,
		DodgeSuccesses:    req.DodgeSuccesses,
		DodgeDice:         req.DodgeDice,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type claimIntercedeRequest struct {
	RequestID     string `json:"requestId"`
	InterceptorID string `json:"interceptorId"`
}

func (h *Handler) claimIntercede(w http.ResponseWriter, r *http.Request) {
	var req claimIntercedeRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.ClaimIntercede(r.Context(), r.PathValue("id"), domain.ClaimIntercedeInput{
		RequestID:     req.RequestID,
		InterceptorID: req.InterceptorID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type skipIntercedeRequest struct {
	RequestID        string   `json:"requestId"`
	OptOut           bool     `json:"optOut,omitempty"`
	CharacterOptOuts []string `json:"characterOptOuts,omitempty"`
}

func (h *Handler) skipIntercede(w http.ResponseWriter, r *http.Request) {
	var req skipIntercedeRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.SkipIntercede(r.Context(), r.PathValue("id"), domain.SkipIntercedeInput{
		RequestID:        req.RequestID,
		OptOut:           req.OptOut,
		CharacterOptOuts: req.CharacterOptOuts,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type createRequestRequest struct {
	Type                string `json:"type"`
	TargetTamerID       string `json:"targetTamerId"`
	TargetParticipantID string `json:"targetParticipantId,omitempty"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.CreateRequest(r.Context(), r.PathValue("id"), domain.CreateRequestInput{
		Type:                domain.RequestType(req.Type),
		TargetTamerID:       req.TargetTamerID,
		TargetParticipantID: req.TargetParticipantID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, encounterResponse{Encounter: enc})
}

func (h *Handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.DeleteRequest(r.Context(), r.PathValue("id"), r.PathValue("requestID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type submitResponseRequest struct {
	RequestID string                 `json:"requestId"`
	TamerID   string                 `json:"tamerId"`
	Response  domain.ResponsePayload `json:"response"`
}

func (h *Handler) submitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitResponseRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.SubmitResponse(r.Context(), r.PathValue("id"), domain.SubmitResponseInput{
		RequestID: req.RequestID,
		TamerID:   req.TamerID,
		Response:  req.Response,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) deleteResponse(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.DeleteResponse(r.Context(), r.PathValue("id"), r.PathValue("responseID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type directRequest struct {
	ParticipantID   string `json:"participantId"`
	TargetDigimonID string `json:"targetDigimonId"`
	Bolstered       bool   `json:"bolstered,omitempty"`
}

func (h *Handler) direct(w http.ResponseWriter, r *http.Request) {
	var req directRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.Direct(r.Context(), r.PathValue("id"), domain.DirectInput{
		ParticipantID:   req.ParticipantID,
		TargetDigimonID: req.TargetDigimonID,
		Bolstered:       req.Bolstered,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type specialOrderRequest struct {
	ParticipantID string `json:"participantId"`
	OrderName     string `json:"orderName"`
	TargetID      string `json:"targetId,omitempty"`
}

func (h *Handler) useSpecialOrder(w http.ResponseWriter, r *http.Request) {
	var req specialOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.UseSpecialOrder(r.Context(), r.PathValue("id"), domain.SpecialOrderInput{
		ParticipantID: req.ParticipantID,
		OrderName:     req.OrderName,
		TargetID:      req.TargetID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type digivolveRequest struct {
	ParticipantID    string `json:"participantId"`
	TargetChainIndex int    `json:"targetChainIndex"`
}

func (h *Handler) digivolve(w http.ResponseWriter, r *http.Request) {
	var req digivolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.Digivolve(r.Context(), r.PathValue("id"), domain.DigivolveInput{
		ParticipantID:    req.ParticipantID,
		TargetChainIndex: req.TargetChainIndex,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type failDigivolveRequest struct {
	ParticipantID string `json:"participantId"`
	TargetSpecies string `json:"targetSpecies,omitempty"`
	RollTotal     int    `json:"rollTotal"`
	DC            int    `json:"dc"`
}

func (h *Handler) failDigivolve(w http.ResponseWriter, r *http.Request) {
	var req failDigivolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.FailDigivolve(r.Context(), r.PathValue("id"), domain.FailDigivolveInput{
		ParticipantID: req.ParticipantID,
		TargetSpecies: req.TargetSpecies,
		RollTotal:     req.RollTotal,
		DC:            req.DC,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}
