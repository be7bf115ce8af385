package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/ingest"
	"github.com/tenetdb/tenet/internal/service"
)

type NoteHandler struct {
	ingestor *ingest.Ingestor
	svc      *service.NoteService
}

func NewNoteHandler(ingestor *ingest.Ingestor, svc *service.NoteService) *NoteHandler {
	return &NoteHandler{ingestor: ingestor, svc: svc}
}

type createNoteRequest struct {
	Content       string `json:"content"`
	ContentType   string `json:"content_type,omitempty"`
	SourceID      string `json:"source_id,omitempty"`
	SourceKind    string `json:"source_kind,omitempty"`
	SourceLocator string `json:"source_locator,omitempty"`
	TrustLabel    string `json:"trust_label,omitempty"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := ingest.Input{
		Content:       req.Content,
		ContentType:   domain.ContentType(req.ContentType),
		SourceKind:    domain.SourceKind(req.SourceKind),
		SourceLocator: req.SourceLocator,
		TrustLabel:    domain.TrustLabel(req.TrustLabel),
	}
	if req.ContentType == "" {
		in.ContentType = domain.ContentTypeText
	}
	if req.TrustLabel == "" {
		in.TrustLabel = domain.TrustUser
	}
	if req.SourceID != "" {
		id, err := uuid.Parse(req.SourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		in.SourceID = id
	}

	note, err := h.ingestor.Ingest(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoteContentEmpty),
			errors.Is(err, service.ErrInvalidContentType),
			errors.Is(err, service.ErrInvalidTrustLabel):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSourceNotFound):
			writeError(w, http.StatusBadRequest, "source not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to ingest note")
		}
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get note")
		return
	}

	writeJSON(w, http.StatusOK, note)
}

type listNotesResponse struct {
	Notes []domain.Note `json:"notes"`
	Count int           `json:"count"`
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 50)
	f := domain.NoteFilter{
		Tag:    r.URL.Query().Get("tag"),
		Entity: r.URL.Query().Get("entity"),
		Limit:  limit,
		Offset: offset,
	}
	if s := r.URL.Query().Get("source_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_id parameter")
			return
		}
		f.SourceID = id
	}

	notes, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}

	writeJSON(w, http.StatusOK, listNotesResponse{Notes: notes, Count: len(notes)})
}
