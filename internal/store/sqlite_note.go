package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type sqNoteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ domain.NoteStore = (*sqNoteStore)(nil)

func (s *sqNoteStore) CreateNote(ctx context.Context, n *domain.Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, content, content_type, source_id, tags, entities, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.Content, string(n.ContentType), n.SourceID.String(),
		string(encodeStrings(n.Tags)), string(encodeStrings(n.Entities)), n.ContentHash, n.CreatedAt,
	)
	return err
}

func (s *sqNoteStore) GetNote(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, content_type, source_id, tags, entities, content_hash, created_at
		 FROM notes WHERE id = ?`, id.String())
	n, err := s.scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *sqNoteStore) ListNotes(ctx context.Context, f domain.NoteFilter) ([]domain.Note, error) {
	q := `SELECT id, content, content_type, source_id, tags, entities, content_hash, created_at FROM notes`
	args := []any{}
	switch {
	case f.Tag != "":
		q += ` WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, f.Tag)
	case f.Entity != "":
		q += ` WHERE EXISTS (SELECT 1 FROM json_each(notes.entities) WHERE json_each.value = ?)`
		args = append(args, f.Entity)
	case f.SourceID != uuid.Nil:
		q += ` WHERE source_id = ?`
		args = append(args, f.SourceID.String())
	}
	q += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			q += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		n, err := s.scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *sqNoteStore) CountNotes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}

func (s *sqNoteStore) CreateSource(ctx context.Context, src *domain.Source) error {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.CapturedAt.IsZero() {
		src.CapturedAt = time.Now().UTC()
	}
	if src.TrustLabel == "" {
		src.TrustLabel = domain.TrustUnknown
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, kind, locator, trust_label, captured_at) VALUES (?, ?, ?, ?, ?)`,
		src.ID.String(), string(src.Kind), src.Locator, string(src.TrustLabel), src.CapturedAt,
	)
	return err
}

func (s *sqNoteStore) GetSource(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src := &domain.Source{}
	var rawID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, locator, trust_label, captured_at FROM sources WHERE id = ?`, id.String(),
	).Scan(&rawID, &src.Kind, &src.Locator, &src.TrustLabel, &src.CapturedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if src.ID, err = parseID(rawID); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *sqNoteStore) UpdateSourceTrust(ctx context.Context, id uuid.UUID, label domain.TrustLabel) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET trust_label = ? WHERE id = ?`, string(label), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqNoteStore) scanNote(row rowScanner) (*domain.Note, error) {
	n := &domain.Note{}
	var rawID, rawSource, tags, entities string
	err := row.Scan(&rawID, &n.Content, &n.ContentType, &rawSource, &tags, &entities, &n.ContentHash, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if n.ID, err = parseID(rawID); err != nil {
		return nil, err
	}
	if n.SourceID, err = parseID(rawSource); err != nil {
		return nil, err
	}
	n.Tags = decodeStrings(s.logger, "notes.tags", []byte(tags))
	n.Entities = decodeStrings(s.logger, "notes.entities", []byte(entities))
	return n, nil
}
