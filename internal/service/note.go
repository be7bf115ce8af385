package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrNoteContentEmpty   = errors.New("content is required")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrSourceNotFound     = errors.New("source not found")
	ErrInvalidTrustLabel  = errors.New("invalid trust label")
)

type NoteService struct {
	notes   domain.NoteStore
	audit   domain.AuditStore
	signals domain.SignalStore
	logger  *zap.Logger
}

func NewNoteService(ns domain.NoteStore, as domain.AuditStore, ss domain.SignalStore, logger *zap.Logger) *NoteService {
	return &NoteService{notes: ns, audit: as, signals: ss, logger: logger}
}

// Create persists a note. Notes are immutable once written; there is no
// update path anywhere in the system.
func (s *NoteService) Create(ctx context.Context, n *domain.Note) error {
	if n.Content == "" {
		return ErrNoteContentEmpty
	}
	if n.ContentType == "" {
		n.ContentType = domain.ContentTypeText
	}
	if !domain.ValidContentType(string(n.ContentType)) {
		return ErrInvalidContentType
	}
	if n.SourceID != uuid.Nil {
		if _, err := s.notes.GetSource(ctx, n.SourceID); err != nil {
			return mapNotFound(err, ErrSourceNotFound)
		}
	}

	if err := s.notes.CreateNote(ctx, n); err != nil {
		return err
	}

	if err := s.audit.Append(ctx, &domain.AuditEntry{
		EntityType: string(domain.EntityNote),
		EntityID:   n.ID,
		Action:     "created",
		After: map[string]any{
			"content_hash": n.ContentHash,
			"source_id":    n.SourceID.String(),
		},
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("note_id", n.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *NoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	n, err := s.notes.GetNote(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrNoteNotFound)
	}
	return n, nil
}

func (s *NoteService) List(ctx context.Context, f domain.NoteFilter) ([]domain.Note, error) {
	return s.notes.ListNotes(ctx, f)
}

func (s *NoteService) CreateSource(ctx context.Context, src *domain.Source) error {
	return s.notes.CreateSource(ctx, src)
}

func (s *NoteService) GetSource(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src, err := s.notes.GetSource(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrSourceNotFound)
	}
	return src, nil
}

// UpdateSourceTrust relabels a source and queues the trust signal so beliefs
// resting on that source get revisited on the next tick.
func (s *NoteService) UpdateSourceTrust(ctx context.Context, id uuid.UUID, label domain.TrustLabel) error {
	if !domain.ValidTrustLabel(string(label)) {
		return ErrInvalidTrustLabel
	}
	src, err := s.notes.GetSource(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrSourceNotFound)
	}
	if src.TrustLabel == label {
		return nil
	}
	if err := s.notes.UpdateSourceTrust(ctx, id, label); err != nil {
		return mapNotFound(err, ErrSourceNotFound)
	}

	if err := s.audit.Append(ctx, &domain.AuditEntry{
		EntityType: string(domain.EntitySource),
		EntityID:   id,
		Action:     "trust_changed",
		Before:     map[string]any{"trust_label": string(src.TrustLabel)},
		After:      map[string]any{"trust_label": string(label)},
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("source_id", id.String()), zap.Error(err))
	}

	return s.signals.Create(ctx, &domain.Signal{
		Type: domain.SignalSourceTrustUpdated,
		Payload: map[string]any{
			"source_id": id.String(),
			"old_label": string(src.TrustLabel),
			"new_label": string(label),
		},
	})
}
