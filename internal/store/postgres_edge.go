package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenetdb/tenet/internal/domain"
)

type pgEdgeStore struct {
	db *pgxpool.Pool
}

var _ domain.EdgeStore = (*pgEdgeStore)(nil)

// Create is idempotent over the full endpoint tuple: inserting an edge that
// already exists is a no-op.
func (s *pgEdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO edges (id, from_type, from_id, rel_type, to_type, to_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (from_type, from_id, rel_type, to_type, to_id) DO NOTHING`,
		e.ID, e.FromType, e.FromID, e.RelType, e.ToType, e.ToID, e.CreatedAt,
	)
	return err
}

func (s *pgEdgeStore) Exists(ctx context.Context, fromType domain.EntityType, fromID uuid.UUID, rel domain.RelType, toType domain.EntityType, toID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM edges
		   WHERE from_type = $1 AND from_id = $2 AND rel_type = $3 AND to_type = $4 AND to_id = $5
		 )`,
		fromType, fromID, rel, toType, toID,
	).Scan(&exists)
	return exists, err
}

func (s *pgEdgeStore) ListByEntity(ctx context.Context, t domain.EntityType, id uuid.UUID, dir domain.EdgeDirection, rel *domain.RelType) ([]domain.Edge, error) {
	q := `SELECT id, from_type, from_id, rel_type, to_type, to_id, created_at FROM edges WHERE `
	args := []any{t, id}
	switch dir {
	case domain.EdgeOutgoing:
		q += `from_type = $1 AND from_id = $2`
	case domain.EdgeIncoming:
		q += `to_type = $1 AND to_id = $2`
	default:
		q += `((from_type = $1 AND from_id = $2) OR (to_type = $1 AND to_id = $2))`
	}
	if rel != nil {
		args = append(args, *rel)
		q += ` AND rel_type = $` + itoa(len(args))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.ID, &e.FromType, &e.FromID, &e.RelType, &e.ToType, &e.ToID, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *pgEdgeStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
