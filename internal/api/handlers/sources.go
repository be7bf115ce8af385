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

type SourceHandler struct {
	svc *service.NoteService
}

func NewSourceHandler(svc *service.NoteService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type createSourceRequest struct {
	Kind       string `json:"kind"`
	Locator    string `json:"locator,omitempty"`
	TrustLabel string `json:"trust_label,omitempty"`
}

func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src := &domain.Source{
		Kind:       domain.SourceKind(req.Kind),
		Locator:    req.Locator,
		TrustLabel: domain.TrustLabel(req.TrustLabel),
	}
	if src.Kind == "" {
		src.Kind = domain.SourceKindUser
	}
	if src.TrustLabel == "" {
		src.TrustLabel = domain.TrustUnknown
	}

	if err := h.svc.CreateSource(r.Context(), src); err != nil {
		if errors.Is(err, service.ErrInvalidTrustLabel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create source")
		return
	}

	writeJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	src, err := h.svc.GetSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, src)
}

type updateTrustRequest struct {
	TrustLabel string `json:"trust_label"`
}

// UpdateTrust changes a source's trust label. The confidence ripple across
// beliefs supported by the source's notes happens when the emitted signal is
// drained.
func (h *SourceHandler) UpdateTrust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var req updateTrustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateSourceTrust(r.Context(), id, domain.TrustLabel(req.TrustLabel)); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTrustLabel):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update trust")
		}
		return
	}

	src, err := h.svc.GetSource(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, src)
}
