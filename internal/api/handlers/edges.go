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

type EdgeHandler struct {
	svc *service.EdgeService
}

func NewEdgeHandler(svc *service.EdgeService) *EdgeHandler {
	return &EdgeHandler{svc: svc}
}

type createEdgeRequest struct {
	FromType string `json:"from_type"`
	FromID   string `json:"from_id"`
	RelType  string `json:"rel_type"`
	ToType   string `json:"to_type"`
	ToID     string `json:"to_id"`
}

func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_id")
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_id")
		return
	}

	edge := &domain.Edge{
		FromType: domain.EntityType(req.FromType),
		FromID:   fromID,
		RelType:  domain.RelType(req.RelType),
		ToType:   domain.EntityType(req.ToType),
		ToID:     toID,
	}

	if err := h.svc.Link(r.Context(), edge); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEntityType),
			errors.Is(err, service.ErrInvalidRelType),
			errors.Is(err, service.ErrSelfEdge):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create edge")
		}
		return
	}

	writeJSON(w, http.StatusCreated, edge)
}

type listEdgesResponse struct {
	Edges []domain.Edge `json:"edges"`
	Count int           `json:"count"`
}

func (h *EdgeHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "type")
	if !domain.ValidEntityType(entityType) {
		writeError(w, http.StatusBadRequest, "invalid entity type")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	dir := domain.EdgeBoth
	switch d := r.URL.Query().Get("direction"); d {
	case "", "both":
	case "incoming":
		dir = domain.EdgeIncoming
	case "outgoing":
		dir = domain.EdgeOutgoing
	default:
		writeError(w, http.StatusBadRequest, "invalid direction parameter")
		return
	}

	var rel *domain.RelType
	if s := r.URL.Query().Get("rel_type"); s != "" {
		if !domain.ValidRelType(s) {
			writeError(w, http.StatusBadRequest, "invalid rel_type parameter")
			return
		}
		rt := domain.RelType(s)
		rel = &rt
	}

	edges, err := h.svc.ListByEntity(r.Context(), domain.EntityType(entityType), id, dir, rel)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list edges")
		return
	}

	writeJSON(w, http.StatusOK, listEdgesResponse{Edges: edges, Count: len(edges)})
}

func (h *EdgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrEdgeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete edge")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
