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

type pgSignalStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ domain.SignalStore = (*pgSignalStore)(nil)

func (s *pgSignalStore) Create(ctx context.Context, sig *domain.Signal) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO signals (id, type, payload, attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sig.ID, sig.Type, encodeMap(sig.Payload), sig.Attempts, sig.CreatedAt,
	)
	return err
}

func (s *pgSignalStore) ListPending(ctx context.Context, types []string, limit int) ([]domain.Signal, error) {
	q := `SELECT id, type, payload, attempts, created_at, processed_at, dead_lettered_at
	      FROM signals WHERE processed_at IS NULL AND dead_lettered_at IS NULL`
	args := []any{}
	if len(types) > 0 {
		args = append(args, types)
		q += ` AND type = ANY($1)`
	}
	q += ` ORDER BY created_at, id`
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $` + itoa(len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *pgSignalStore) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE signals SET processed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgSignalStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := s.db.QueryRow(ctx,
		`UPDATE signals SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

func (s *pgSignalStore) MarkDeadLettered(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE signals SET dead_lettered_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgSignalStore) ListDeadLettered(ctx context.Context, limit int) ([]domain.Signal, error) {
	q := `SELECT id, type, payload, attempts, created_at, processed_at, dead_lettered_at
	      FROM signals WHERE dead_lettered_at IS NOT NULL ORDER BY dead_lettered_at DESC, id`
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *pgSignalStore) collect(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var payload []byte
		if err := rows.Scan(&sig.ID, &sig.Type, &payload, &sig.Attempts, &sig.CreatedAt, &sig.ProcessedAt, &sig.DeadLetteredAt); err != nil {
			return nil, err
		}
		sig.Payload = decodeMap(s.logger, "signals.payload", payload)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
