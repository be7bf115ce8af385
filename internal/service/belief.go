package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
)

var (
	ErrBeliefNotFound   = errors.New("belief not found")
	ErrClaimEmpty       = errors.New("claim_text is required")
	ErrInvalidStatus    = errors.New("invalid belief status")
	ErrInvalidDecay     = errors.New("invalid decay model")
	ErrNoTransitionPath = errors.New("no transition path to target status")
)

// EvidenceCounts is the support/contradiction tally feeding the confidence
// formula. Only incoming edges count; a belief cannot be its own evidence.
type EvidenceCounts struct {
	Supports int
	Counters int
}

type BeliefService struct {
	beliefs domain.BeliefStore
	edges   domain.EdgeStore
	audit   domain.AuditStore
	signals domain.SignalStore
	cfg     rules.Config
	logger  *zap.Logger
}

func NewBeliefService(bs domain.BeliefStore, es domain.EdgeStore, as domain.AuditStore, ss domain.SignalStore, cfg rules.Config, logger *zap.Logger) *BeliefService {
	return &BeliefService{
		beliefs: bs,
		edges:   es,
		audit:   as,
		signals: ss,
		cfg:     cfg,
		logger:  logger,
	}
}

// Propose creates a belief in the proposed state and announces it on the
// signal queue so the challenger gets a look before activation.
func (s *BeliefService) Propose(ctx context.Context, b *domain.Belief) error {
	if b.ClaimText == "" {
		return ErrClaimEmpty
	}
	if b.Status == "" {
		b.Status = domain.BeliefProposed
	}
	if !domain.ValidBeliefStatus(string(b.Status)) {
		return ErrInvalidStatus
	}
	if b.DecayModel != "" && !domain.ValidDecayModel(string(b.DecayModel)) {
		return ErrInvalidDecay
	}
	if b.Confidence == 0 {
		b.Confidence = s.cfg.BaseConfidence
	}

	if err := s.beliefs.Create(ctx, b); err != nil {
		return err
	}

	if err := s.audit.Append(ctx, &domain.AuditEntry{
		EntityType: string(domain.EntityBelief),
		EntityID:   b.ID,
		Action:     "created",
		After: map[string]any{
			"claim_text": b.ClaimText,
			"status":     string(b.Status),
			"confidence": b.Confidence,
			"agent":      b.DerivedFromAgent,
		},
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("belief_id", b.ID.String()), zap.Error(err))
	}

	return s.signals.Create(ctx, &domain.Signal{
		Type:    domain.SignalBeliefProposed,
		Payload: map[string]any{"belief_id": b.ID.String()},
	})
}

func (s *BeliefService) Get(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrBeliefNotFound)
	}
	return b, nil
}

func (s *BeliefService) List(ctx context.Context, f domain.BeliefFilter) ([]domain.Belief, error) {
	return s.beliefs.List(ctx, f)
}

func (s *BeliefService) Evidence(ctx context.Context, id uuid.UUID) (EvidenceCounts, error) {
	var counts EvidenceCounts
	rel := domain.RelSupports
	supports, err := s.edges.ListByEntity(ctx, domain.EntityBelief, id, domain.EdgeIncoming, &rel)
	if err != nil {
		return counts, err
	}
	rel = domain.RelContradicts
	counters, err := s.edges.ListByEntity(ctx, domain.EntityBelief, id, domain.EdgeIncoming, &rel)
	if err != nil {
		return counts, err
	}
	counts.Supports = len(supports)
	counts.Counters = len(counters)
	return counts, nil
}

// Transition moves a belief one step along the lifecycle graph. The new
// confidence is computed from current evidence and decay and written in the
// same mutation as the status, then the change is audited. Illegal edges are
// rejected with rules.ErrInvalidTransition.
func (s *BeliefService) Transition(ctx context.Context, id uuid.UUID, to domain.BeliefStatus, actor string) (*domain.Belief, error) {
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrBeliefNotFound)
	}
	if err := rules.ValidateTransition(b.Status, to); err != nil {
		return nil, err
	}

	counts, err := s.Evidence(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	confidence := rules.Confidence(s.cfg, counts.Supports, counts.Counters, b.DecayModel, b.UpdatedAt, now)

	if err := s.beliefs.UpdateStatusAndConfidence(ctx, id, to, confidence); err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, &domain.AuditEntry{
		EntityType: string(domain.EntityBelief),
		EntityID:   id,
		Action:     "status_changed",
		Before: map[string]any{
			"status":     string(b.Status),
			"confidence": b.Confidence,
		},
		After: map[string]any{
			"status":     string(to),
			"confidence": confidence,
			"actor":      actor,
		},
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("belief_id", id.String()), zap.Error(err))
	}

	if to == domain.BeliefChallenged {
		if err := s.signals.Create(ctx, &domain.Signal{
			Type:    domain.SignalBeliefChallenged,
			Payload: map[string]any{"belief_id": id.String()},
		}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("belief transitioned",
		zap.String("belief_id", id.String()),
		zap.String("from", string(b.Status)),
		zap.String("to", string(to)),
		zap.Float64("confidence", confidence),
		zap.String("actor", actor))

	b.Status = to
	b.Confidence = confidence
	b.UpdatedAt = now
	return b, nil
}

// TransitionTo walks the belief through every intermediate status needed to
// reach target, one guarded step at a time. Statuses are never written
// directly, so each hop is validated, recomputed, and audited like any other
// transition.
func (s *BeliefService) TransitionTo(ctx context.Context, id uuid.UUID, target domain.BeliefStatus, actor string) (*domain.Belief, error) {
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrBeliefNotFound)
	}
	path := rules.TransitionChain(b.Status, target)
	if path == nil {
		return nil, ErrNoTransitionPath
	}
	for _, step := range path {
		if b, err = s.Transition(ctx, id, step, actor); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Recompute refreshes a belief's confidence from current evidence and decay
// without touching its status or its decay clock. The evidence counts feeding
// the formula are returned so callers can apply count-based guards without a
// second edge listing.
func (s *BeliefService) Recompute(ctx context.Context, b *domain.Belief, now time.Time) (float64, EvidenceCounts, error) {
	counts, err := s.Evidence(ctx, b.ID)
	if err != nil {
		return 0, counts, err
	}
	confidence := rules.Confidence(s.cfg, counts.Supports, counts.Counters, b.DecayModel, b.UpdatedAt, now)
	if confidence != b.Confidence {
		if err := s.beliefs.UpdateConfidence(ctx, b.ID, confidence); err != nil {
			return 0, counts, err
		}
	}
	return confidence, counts, nil
}
