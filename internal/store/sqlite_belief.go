package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

type sqBeliefStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ domain.BeliefStore = (*sqBeliefStore)(nil)

func (s *sqBeliefStore) Create(ctx context.Context, b *domain.Belief) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO beliefs (id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.ClaimText, string(b.Status), b.Confidence, string(b.DecayModel),
		string(encodeMap(b.Scope)), b.DerivedFromAgent, encodeEmbedding(b.Embedding), b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *sqBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at
		 FROM beliefs WHERE id = ?`, id.String())
	b, err := s.scanBelief(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *sqBeliefStore) List(ctx context.Context, f domain.BeliefFilter) ([]domain.Belief, error) {
	q := `SELECT id, claim_text, status, confidence, decay_model, scope, derived_from_agent, embedding, created_at, updated_at FROM beliefs`
	args := []any{}
	if f.Status != nil {
		q += ` WHERE status = ?`
		args = append(args, string(*f.Status))
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

func (s *sqBeliefStore) CountByStatus(ctx context.Context, status domain.BeliefStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM beliefs WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}

func (s *sqBeliefStore) UpdateStatusAndConfidence(ctx context.Context, id uuid.UUID, status domain.BeliefStatus, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE beliefs SET status = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		string(status), confidence, time.Now().UTC(), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateConfidence leaves updated_at alone so the decay clock keeps running
// from the last meaningful change.
func (s *sqBeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE beliefs SET confidence = ? WHERE id = ?`, confidence, id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqBeliefStore) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE beliefs SET embedding = ? WHERE id = ?`, encodeEmbedding(embedding), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqBeliefStore) scanBelief(row rowScanner) (*domain.Belief, error) {
	b := &domain.Belief{}
	var rawID, scope string
	var embedding sql.NullString
	err := row.Scan(&rawID, &b.ClaimText, &b.Status, &b.Confidence, &b.DecayModel,
		&scope, &b.DerivedFromAgent, &embedding, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if b.ID, err = parseID(rawID); err != nil {
		return nil, err
	}
	b.Scope = decodeMap(s.logger, "beliefs.scope", []byte(scope))
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &b.Embedding); err != nil {
			s.logger.Warn("malformed embedding column, dropping vector",
				zap.String("belief_id", rawID), zap.Error(err))
			b.Embedding = nil
		}
	}
	return b, nil
}

// encodeEmbedding stores vectors as a JSON array; NULL when absent so the
// curator can tell "no embedding yet" from an empty vector.
func encodeEmbedding(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
