package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/service"
)

type BeliefHandler struct {
	svc     *service.BeliefService
	signals *service.SignalService
}

func NewBeliefHandler(svc *service.BeliefService, signals *service.SignalService) *BeliefHandler {
	return &BeliefHandler{svc: svc, signals: signals}
}

type proposeBeliefRequest struct {
	ClaimText  string         `json:"claim_text"`
	DecayModel string         `json:"decay_model,omitempty"`
	Scope      map[string]any `json:"scope,omitempty"`
}

func (h *BeliefHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	belief := &domain.Belief{
		ClaimText:        req.ClaimText,
		DecayModel:       domain.DecayModel(req.DecayModel),
		Scope:            req.Scope,
		DerivedFromAgent: domain.AgentUser,
	}

	if err := h.svc.Propose(r.Context(), belief); err != nil {
		switch {
		case errors.Is(err, service.ErrClaimEmpty), errors.Is(err, service.ErrInvalidDecay):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to propose belief")
		}
		return
	}

	writeJSON(w, http.StatusCreated, belief)
}

type beliefResponse struct {
	*domain.Belief
	Supports int `json:"supports"`
	Counters int `json:"counters"`
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	belief, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get belief")
		return
	}

	ev, err := h.svc.Evidence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count evidence")
		return
	}

	writeJSON(w, http.StatusOK, beliefResponse{
		Belief:   belief,
		Supports: ev.Supports,
		Counters: ev.Counters,
	})
}

type listBeliefsResponse struct {
	Beliefs []domain.Belief `json:"beliefs"`
	Count   int             `json:"count"`
}

func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 50)
	f := domain.BeliefFilter{Limit: limit, Offset: offset}

	if s := r.URL.Query().Get("status"); s != "" {
		if !domain.ValidBeliefStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status parameter")
			return
		}
		status := domain.BeliefStatus(s)
		f.Status = &status
	}

	beliefs, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}

	writeJSON(w, http.StatusOK, listBeliefsResponse{Beliefs: beliefs, Count: len(beliefs)})
}

// Confirm records user agreement with a belief. The adjustment itself happens
// when the queued signal is drained on the next tick.
func (h *BeliefHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.verdict(w, r, domain.SignalBeliefConfirmed)
}

// Refute records user disagreement. Active beliefs are driven to challenged
// when the signal is handled.
func (h *BeliefHandler) Refute(w http.ResponseWriter, r *http.Request) {
	h.verdict(w, r, domain.SignalBeliefRefuted)
}

func (h *BeliefHandler) verdict(w http.ResponseWriter, r *http.Request, signalType string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	if _, err := h.svc.Get(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get belief")
		return
	}

	sig := &domain.Signal{
		Type:    signalType,
		Payload: map[string]any{"belief_id": id.String()},
	}
	if err := h.signals.Emit(r.Context(), sig); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue feedback")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "queued",
		"signal_id": sig.ID.String(),
	})
}

type transitionRequest struct {
	To string `json:"to"`
}

// Transition walks a belief to the requested status through the guarded
// lifecycle graph.
func (h *BeliefHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidBeliefStatus(req.To) {
		writeError(w, http.StatusBadRequest, "invalid target status")
		return
	}

	belief, err := h.svc.TransitionTo(r.Context(), id, domain.BeliefStatus(req.To), domain.AgentUser)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBeliefNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNoTransitionPath):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to transition belief")
		}
		return
	}

	writeJSON(w, http.StatusOK, belief)
}
