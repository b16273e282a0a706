package api

import (
	"net/http"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/platform/errors"
)

// Entity routes upsert by path id. A body id that disagrees with the path
// is rejected rather than silently overridden.

func (h *Handler) putTamer(w http.ResponseWriter, r *http.Request) {
	var tamer domain.Tamer
	if !h.decode(w, r, &tamer) {
		return
	}
	id := r.PathValue("id")
	if tamer.ID == "" {
		tamer.ID = id
	}
	if tamer.ID != id {
		h.writeError(w, errors.New(errors.CodeResponseInvalid, "body id does not match path"))
		return
	}
	if err := h.svc.PutTamer(r.Context(), tamer); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tamer)
}

func (h *Handler) getTamer(w http.ResponseWriter, r *http.Request) {
	tamer, err := h.svc.GetTamer(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tamer)
}

type listTamersResponse struct {
	Tamers []domain.Tamer `json:"tamers"`
}

func (h *Handler) listTamers(w http.ResponseWriter, r *http.Request) {
	tamers, err := h.svc.ListTamers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listTamersResponse{Tamers: tamers})
}

func (h *Handler) putDigimon(w http.ResponseWriter, r *http.Request) {
	var dig domain.Digimon
	if !h.decode(w, r, &dig) {
		return
	}
	id := r.PathValue("id")
	if dig.ID == "" {
		dig.ID = id
	}
	if dig.ID != id {
		h.writeError(w, errors.New(errors.CodeResponseInvalid, "body id does not match path"))
		return
	}
	if err := h.svc.PutDigimon(r.Context(), dig); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dig)
}

func (h *Handler) getDigimon(w http.ResponseWriter, r *http.Request) {
	dig, err := h.svc.GetDigimon(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dig)
}

type listDigimonResponse struct {
	Digimon []domain.Digimon `json:"digimon"`
}

func (h *Handler) listDigimon(w http.ResponseWriter, r *http.Request) {
	digimon, err := h.svc.ListDigimon(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listDigimonResponse{Digimon: digimon})
}

func (h *Handler) putEvolutionLine(w http.ResponseWriter, r *http.Request) {
	var line domain.EvolutionLine
	if !h.decode(w, r, &line) {
		return
	}
	id := r.PathValue("id")
	if line.ID == "" {
		line.ID = id
	}
	if line.ID != id {
		h.writeError(w, errors.New(errors.CodeResponseInvalid, "body id does not match path"))
		return
	}
	if err := h.svc.PutEvolutionLine(r.Context(), line); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, line)
}

func (h *Handler) getEvolutionLine(w http.ResponseWriter, r *http.Request) {
	line, err := h.svc.GetEvolutionLine(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, line)
}

type listEvolutionLinesResponse struct {
	EvolutionLines []domain.EvolutionLine `json:"evolutionLines"`
}

func (h *Handler) listEvolutionLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.ListEvolutionLines(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listEvolutionLinesResponse{EvolutionLines: lines})
}
