package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/service"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
	Count   int                 `json:"count"`
}

func (h *AuditHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	limit, offset := parsePage(r, 100)
	entries, err := h.svc.History(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, auditResponse{Entries: entries, Count: len(entries)})
}
