package handlers

import (
	"net/http"

	"github.com/tenetdb/tenet/internal/runtime"
)

type TickHandler struct {
	scheduler *runtime.Scheduler
}

func NewTickHandler(scheduler *runtime.Scheduler) *TickHandler {
	return &TickHandler{scheduler: scheduler}
}

// Run executes one full maintenance tick on demand. Ticks are serialized, so
// a concurrent background tick finishes before this one starts.
func (h *TickHandler) Run(w http.ResponseWriter, r *http.Request) {
	res := h.scheduler.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, res)
}
