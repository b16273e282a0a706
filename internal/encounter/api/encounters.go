package api

import (
	"net/http"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
)

type encounterResponse struct {
	Encounter *domain.Encounter `json:"encounter"`
}

type createEncounterRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createEncounter(w http.ResponseWriter, r *http.Request) {
	var req createEncounterRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.CreateEncounter(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, encounterResponse{Encounter: enc})
}

type listEncountersResponse struct {
	Encounters []storage.EncounterSummary `json:"encounters"`
}

func (h *Handler) listEncounters(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.ListEncounters(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listEncountersResponse{Encounters: summaries})
}

func (h *Handler) getEncounter(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.GetEncounter(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) deleteEncounter(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEncounter(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

type addParticipantRequest struct {
	Type            string `json:"type"`
	EntityID        string `json:"entityId"`
	IsEnemy         bool   `json:"isEnemy,omitempty"`
	EvolutionLineID string `json:"evolutionLineId,omitempty"`
	NPCStageIndex   int    `json:"npcStageIndex,omitempty"`
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.AddParticipant(r.Context(), r.PathValue("id"), domain.AddParticipantInput{
		Type:            domain.ParticipantType(req.Type),
		EntityID:        req.EntityID,
		IsEnemy:         req.IsEnemy,
		EvolutionLineID: req.EvolutionLineID,
		NPCStageIndex:   req.NPCStageIndex,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, encounterResponse{Encounter: enc})
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.RemoveParticipant(r.Context(), r.PathValue("id"), r.PathValue("participantID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

type setStanceRequest struct {
	Stance string `json:"stance"`
}

func (h *Handler) setStance(w http.ResponseWriter, r *http.Request) {
	var req setStanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	enc, err := h.svc.SetStance(r.Context(), r.PathValue("id"), r.PathValue("participantID"), req.Stance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) beginInitiative(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.BeginInitiative(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) startCombat(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.StartCombat(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) advanceTurn(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.AdvanceTurn(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}

func (h *Handler) endEncounter(w http.ResponseWriter, r *http.Request) {
	enc, err := h.svc.EndEncounter(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encounterResponse{Encounter: enc})
}
