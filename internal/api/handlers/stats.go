package handlers

import (
	"net/http"

	"github.com/tenetdb/tenet/internal/domain"
)

type StatsHandler struct {
	notes   domain.NoteStore
	beliefs domain.BeliefStore
}

func NewStatsHandler(notes domain.NoteStore, beliefs domain.BeliefStore) *StatsHandler {
	return &StatsHandler{notes: notes, beliefs: beliefs}
}

type statsResponse struct {
	Notes   int            `json:"notes"`
	Beliefs map[string]int `json:"beliefs"`
}

// Get reports population counts for notes and beliefs grouped by status.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.CountNotes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count notes")
		return
	}

	resp := statsResponse{Notes: notes, Beliefs: map[string]int{}}
	for _, status := range []domain.BeliefStatus{
		domain.BeliefProposed,
		domain.BeliefActive,
		domain.BeliefChallenged,
		domain.BeliefDeprecated,
		domain.BeliefArchived,
	} {
		n, err := h.beliefs.CountByStatus(r.Context(), status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count beliefs")
			return
		}
		resp.Beliefs[string(status)] = n
	}

	writeJSON(w, http.StatusOK, resp)
}
