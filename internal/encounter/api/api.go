// Package api exposes the encounter service over HTTP/JSON. Command
// responses return the full aggregate so clients and the websocket stream
// observe identical state.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/louisbranch/digivice/internal/encounter/service"
	"github.com/louisbranch/digivice/internal/platform/errors"
)

// Handler serves the encounter HTTP API.
type Handler struct {
	svc    *service.Service
	logger *log.Logger
}

// New builds an API handler around the service.
func New(svc *service.Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts every route on the mux. The stream handler upgrades to
// a websocket and is supplied by the caller; pass nil to serve without
// live updates.
func (h *Handler) Register(mux *http.ServeMux, stream http.HandlerFunc) {
	mux.HandleFunc("POST /api/encounters", h.createEncounter)
	mux.HandleFunc("GET /api/encounters", h.listEncounters)
	mux.HandleFunc("GET /api/encounters/{id}", h.getEncounter)
	mux.HandleFunc("DELETE /api/encounters/{id}", h.deleteEncounter)

	mux.HandleFunc("POST /api/encounters/{id}/participants", h.addParticipant)
	mux.HandleFunc("DELETE /api/encounters/{id}/participants/{participantID}", h.removeParticipant)
	mux.HandleFunc("PUT /api/encounters/{id}/participants/{participantID}/stance", h.setStance)

	mux.HandleFunc("POST /api/encounters/{id}/initiative", h.beginInitiative)
	mux.HandleFunc("POST /api/encounters/{id}/combat", h.startCombat)
	mux.HandleFunc("POST /api/encounters/{id}/turn", h.advanceTurn)
	mux.HandleFunc("POST /api/encounters/{id}/end", h.endEncounter)

	mux.HandleFunc("POST /api/encounters/{id}/attacks", h.declareAttack)
	mux.HandleFunc("POST /api/encounters/{id}/npc-attacks", h.resolveNPCAttack)
	mux.HandleFunc("POST /api/encounters/{id}/intercede/claim", h.claimIntercede)
	mux.HandleFunc("POST /api/encounters/{id}/intercede/skip", h.skipIntercede)

	mux.HandleFunc("POST /api/encounters/{id}/requests", h.createRequest)
	mux.HandleFunc("DELETE /api/encounters/{id}/requests/{requestID}", h.deleteRequest)
	mux.HandleFunc("POST /api/encounters/{id}/responses", h.submitResponse)
	mux.HandleFunc("DELETE /api/encounters/{id}/responses/{responseID}", h.deleteResponse)

	mux.HandleFunc("POST /api/encounters/{id}/direct", h.direct)
	mux.HandleFunc("POST /api/encounters/{id}/orders", h.useSpecialOrder)
	mux.HandleFunc("POST /api/encounters/{id}/digivolve", h.digivolve)
	mux.HandleFunc("POST /api/encounters/{id}/digivolve/fail", h.failDigivolve)

	mux.HandleFunc("PUT /api/tamers/{id}", h.putTamer)
	mux.HandleFunc("GET /api/tamers/{id}", h.getTamer)
	mux.HandleFunc("GET /api/tamers", h.listTamers)
	mux.HandleFunc("PUT /api/digimon/{id}", h.putDigimon)
	mux.HandleFunc("GET /api/digimon/{id}", h.getDigimon)
	mux.HandleFunc("GET /api/digimon", h.listDigimon)
	mux.HandleFunc("PUT /api/evolution-lines/{id}", h.putEvolutionLine)
	mux.HandleFunc("GET /api/evolution-lines/{id}", h.getEvolutionLine)
	mux.HandleFunc("GET /api/evolution-lines", h.listEvolutionLines)

	if stream != nil {
		mux.HandleFunc("GET /api/encounters/{id}/stream", stream)
		mux.HandleFunc("GET /api/stream", stream)
	}
}

type errorBody struct {
	Code     errors.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Printf("encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var domainErr *errors.Error
	if !errors.As(err, &domainErr) {
		h.logger.Printf("unhandled error: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorBody{Code: errors.CodeUnknown, Message: "internal error"},
		})
		return
	}
	h.writeJSON(w, domainErr.HTTPStatus(), errorResponse{
		Error: errorBody{
			Code:     domainErr.Code,
			Message:  domainErr.Message,
			Metadata: domainErr.Metadata,
		},
	})
}

// decode parses the request body, rejecting unknown fields so client
// typos surface as 400s instead of silently defaulted inputs.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		h.writeError(w, errors.Wrap(errors.CodeResponseInvalid, "invalid request body", err))
		return false
	}
	return true
}
