package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type sqAuditStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ domain.AuditStore = (*sqAuditStore)(nil)

func (s *sqAuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, entity_type, entity_id, action, before, after, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.EntityType, e.EntityID.String(), e.Action,
		string(encodeMap(e.Before)), string(encodeMap(e.After)), e.Timestamp,
	)
	return err
}

func (s *sqAuditStore) ListByEntity(ctx context.Context, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	q := `SELECT id, entity_type, entity_id, action, before, after, ts
	      FROM audit_log WHERE entity_id = ? ORDER BY ts DESC, id`
	args := []any{entityID.String()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			q += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var rawID, rawEntity, before, after string
		if err := rows.Scan(&rawID, &e.EntityType, &rawEntity, &e.Action, &before, &after, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.ID, err = parseID(rawID); err != nil {
			return nil, err
		}
		if e.EntityID, err = parseID(rawEntity); err != nil {
			return nil, err
		}
		e.Before = decodeMap(s.logger, "audit_log.before", []byte(before))
		e.After = decodeMap(s.logger, "audit_log.after", []byte(after))
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
