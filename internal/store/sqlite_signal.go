package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type sqSignalStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ domain.SignalStore = (*sqSignalStore)(nil)

func (s *sqSignalStore) Create(ctx context.Context, sig *domain.Signal) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, type, payload, attempts, created_at) VALUES (?, ?, ?, ?, ?)`,
		sig.ID.String(), sig.Type, string(encodeMap(sig.Payload)), sig.Attempts, sig.CreatedAt,
	)
	return err
}

func (s *sqSignalStore) ListPending(ctx context.Context, types []string, limit int) ([]domain.Signal, error) {
	q := `SELECT id, type, payload, attempts, created_at, processed_at, dead_lettered_at
	      FROM signals WHERE processed_at IS NULL AND dead_lettered_at IS NULL`
	args := []any{}
	if len(types) > 0 {
		q += ` AND type IN (?` + strings.Repeat(", ?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += ` ORDER BY created_at, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *sqSignalStore) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET processed_at = ? WHERE id = ?`, at, id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqSignalStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET attempts = attempts + 1 WHERE id = ?`, id.String())
	if err != nil {
		return 0, err
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}
	var attempts int
	err = s.db.QueryRowContext(ctx,
		`SELECT attempts FROM signals WHERE id = ?`, id.String()).Scan(&attempts)
	return attempts, err
}

func (s *sqSignalStore) MarkDeadLettered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET dead_lettered_at = ? WHERE id = ?`, at, id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqSignalStore) ListDeadLettered(ctx context.Context, limit int) ([]domain.Signal, error) {
	q := `SELECT id, type, payload, attempts, created_at, processed_at, dead_lettered_at
	      FROM signals WHERE dead_lettered_at IS NOT NULL ORDER BY dead_lettered_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *sqSignalStore) collect(rows *sql.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var rawID, payload string
		var processed, dead sql.NullTime
		if err := rows.Scan(&rawID, &sig.Type, &payload, &sig.Attempts, &sig.CreatedAt, &processed, &dead); err != nil {
			return nil, err
		}
		var err error
		if sig.ID, err = parseID(rawID); err != nil {
			return nil, err
		}
		sig.Payload = decodeMap(s.logger, "signals.payload", []byte(payload))
		if processed.Valid {
			t := processed.Time
			sig.ProcessedAt = &t
		}
		if dead.Valid {
			t := dead.Time
			sig.DeadLetteredAt = &t
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
