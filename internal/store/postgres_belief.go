package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type pgBeliefStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ domain.BeliefStore = (*pgBeliefStore)(nil)

func (s *pgBeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.DecayModel == "" {
		b.DecayModel = domain.DecayExponential
	}

	var embedding *pgvector.Vector
	if len(b.Embedding) > 0 {
		v := pgvector.NewVector(b.Embedding)
		embedding = &v
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO beliefs (id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ClaimText, b.Status, b.Confidence, b.DecayModel,
		encodeMap(b.Scope), b.DerivedFromAgent, embedding, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *pgBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at
		 FROM beliefs WHERE id = $1`, id)
	b, err := s.scanBelief(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *pgBeliefStore) List(ctx context.Context, f domain.BeliefFilter) ([]domain.Belief, error) {
	q := `SELECT id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at FROM beliefs`
	args := []any{}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += ` WHERE status = $1`
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

	var beliefs []domain.Belief
	for rows.Next() {
		b, err := s.scanBelief(rows)
		if err != nil {
			return nil, err
		}
		beliefs = append(beliefs, *b)
	}
	return beliefs, rows.Err()
}

func (s *pgBeliefStore) CountByStatus(ctx context.Context, status domain.BeliefStatus) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM beliefs WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (s *pgBeliefStore) UpdateStatusAndConfidence(ctx context.Context, id uuid.UUID, status domain.BeliefStatus, confidence float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET status = $2, confidence = $3, updated_at = NOW() WHERE id = $1`,
		id, status, confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConfidence deliberately leaves updated_at alone: the periodic decay
// sweep rewrites confidence in place, and bumping updated_at there would reset
// the decay clock on every sweep.
func (s *pgBeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET confidence = $2 WHERE id = $1`, id, confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgBeliefStore) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	var v *pgvector.Vector
	if len(embedding) > 0 {
		vec := pgvector.NewVector(embedding)
		v = &vec
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET embedding = $2 WHERE id = $1`, id, v)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgBeliefStore) scanBelief(row pgx.Row) (*domain.Belief, error) {
	b := &domain.Belief{}
	var scope []byte
	var embedding *pgvector.Vector
	err := row.Scan(&b.ID, &b.ClaimText, &b.Status, &b.Confidence, &b.DecayModel,
		&scope, &b.DerivedFromAgent, &embedding, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Scope = decodeMap(s.logger, "beliefs.scope", scope)
	if embedding != nil {
		b.Embedding = embedding.Slice()
	}
	return b, nil
}
