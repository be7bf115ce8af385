package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/service"
)

type SignalHandler struct {
	svc *service.SignalService
}

func NewSignalHandler(svc *service.SignalService) *SignalHandler {
	return &SignalHandler{svc: svc}
}

type emitSignalRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (h *SignalHandler) Emit(w http.ResponseWriter, r *http.Request) {
	var req emitSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sig := &domain.Signal{Type: req.Type, Payload: req.Payload}
	if err := h.svc.Emit(r.Context(), sig); err != nil {
		if errors.Is(err, service.ErrUnknownSignalType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to emit signal")
		return
	}

	writeJSON(w, http.StatusCreated, sig)
}

type listSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Count   int             `json:"count"`
}

func (h *SignalHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePage(r, 100)

	var types []string
	if s := r.URL.Query().Get("type"); s != "" {
		types = []string{s}
	}

	signals, err := h.svc.Pending(r.Context(), types, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{Signals: signals, Count: len(signals)})
}

func (h *SignalHandler) DeadLettered(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePage(r, 100)

	signals, err := h.svc.DeadLettered(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead-lettered signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{Signals: signals, Count: len(signals)})
}
