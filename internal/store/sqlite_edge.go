package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
)

type sqEdgeStore struct {
	db *sql.DB
}

var _ domain.EdgeStore = (*sqEdgeStore)(nil)

func (s *sqEdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (id, from_type, from_id, rel_type, to_type, to_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.FromType), e.FromID.String(), string(e.RelType),
		string(e.ToType), e.ToID.String(), e.CreatedAt,
	)
	return err
}

func (s *sqEdgeStore) Exists(ctx context.Context, fromType domain.EntityType, fromID uuid.UUID, rel domain.RelType, toType domain.EntityType, toID uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges
		 WHERE from_type = ? AND from_id = ? AND rel_type = ? AND to_type = ? AND to_id = ?`,
		string(fromType), fromID.String(), string(rel), string(toType), toID.String(),
	).Scan(&n)
	return n > 0, err
}

func (s *sqEdgeStore) ListByEntity(ctx context.Context, t domain.EntityType, id uuid.UUID, dir domain.EdgeDirection, rel *domain.RelType) ([]domain.Edge, error) {
	q := `SELECT id, from_type, from_id, rel_type, to_type, to_id, created_at FROM edges WHERE `
	args := []any{string(t), id.String()}
	switch dir {
	case domain.EdgeOutgoing:
		q += `from_type = ? AND from_id = ?`
	case domain.EdgeIncoming:
		q += `to_type = ? AND to_id = ?`
	default:
		q += `((from_type = ? AND from_id = ?) OR (to_type = ? AND to_id = ?))`
		args = append(args, string(t), id.String())
	}
	if rel != nil {
		q += ` AND rel_type = ?`
		args = append(args, string(*rel))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		var rawID, rawFrom, rawTo string
		if err := rows.Scan(&rawID, &e.FromType, &rawFrom, &e.RelType, &e.ToType, &rawTo, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.ID, err = parseID(rawID); err != nil {
			return nil, err
		}
		if e.FromID, err = parseID(rawFrom); err != nil {
			return nil, err
		}
		if e.ToID, err = parseID(rawTo); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *sqEdgeStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}
