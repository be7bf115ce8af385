package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type pgNoteStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ domain.NoteStore = (*pgNoteStore)(nil)

func (s *pgNoteStore) CreateNote(ctx context.Context, n *domain.Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO notes (id, content, content_type, source_id, tags, entities, content_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Content, n.ContentType, n.SourceID,
		encodeStrings(n.Tags), encodeStrings(n.Entities), n.ContentHash, n.CreatedAt,
	)
	return err
}

func (s *pgNoteStore) GetNote(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, content, content_type, source_id, tags, entities, content_hash, created_at
		 FROM notes WHERE id = $1`, id)
	n, err := s.scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *pgNoteStore) ListNotes(ctx context.Context, f domain.NoteFilter) ([]domain.Note, error) {
	q := `SELECT id, content, content_type, source_id, tags, entities, content_hash, created_at FROM notes`
	args := []any{}
	switch {
	case f.Tag != "":
		q += ` WHERE tags ? $1`
		args = append(args, f.Tag)
	case f.Entity != "":
		q += ` WHERE entities ? $1`
		args = append(args, f.Entity)
	case f.SourceID != uuid.Nil:
		q += ` WHERE source_id = $1`
		args = append(args, f.SourceID)
	}
	q += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
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

func (s *pgNoteStore) CountNotes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}

func (s *pgNoteStore) CreateSource(ctx context.Context, src *domain.Source) error {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.CapturedAt.IsZero() {
		src.CapturedAt = time.Now().UTC()
	}
	if src.TrustLabel == "" {
		src.TrustLabel = domain.TrustUnknown
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO sources (id, kind, locator, trust_label, captured_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		src.ID, src.Kind, src.Locator, src.TrustLabel, src.CapturedAt,
	)
	return err
}

func (s *pgNoteStore) GetSource(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src := &domain.Source{}
	err := s.db.QueryRow(ctx,
		`SELECT id, kind, locator, trust_label, captured_at FROM sources WHERE id = $1`, id,
	).Scan(&src.ID, &src.Kind, &src.Locator, &src.TrustLabel, &src.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *pgNoteStore) UpdateSourceTrust(ctx context.Context, id uuid.UUID, label domain.TrustLabel) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sources SET trust_label = $2 WHERE id = $1`, id, label)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgNoteStore) scanNote(row pgx.Row) (*domain.Note, error) {
	n := &domain.Note{}
	var tags, entities []byte
	err := row.Scan(&n.ID, &n.Content, &n.ContentType, &n.SourceID, &tags, &entities, &n.ContentHash, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Tags = decodeStrings(s.logger, "notes.tags", tags)
	n.Entities = decodeStrings(s.logger, "notes.entities", entities)
	return n, nil
}
