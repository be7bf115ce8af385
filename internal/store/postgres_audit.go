package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type pgAuditStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ domain.AuditStore = (*pgAuditStore)(nil)

func (s *pgAuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_log (id, entity_type, entity_id, action, before, after, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.EntityType, e.EntityID, e.Action, encodeMap(e.Before), encodeMap(e.After), e.Timestamp,
	)
	return err
}

func (s *pgAuditStore) ListByEntity(ctx context.Context, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	q := `SELECT id, entity_type, entity_id, action, before, after, ts
	      FROM audit_log WHERE entity_id = $1 ORDER BY ts DESC, id`
	args := []any{entityID}
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $` + itoa(len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		q += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var before, after []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &before, &after, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Before = decodeMap(s.logger, "audit_log.before", before)
		e.After = decodeMap(s.logger, "audit_log.after", after)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
