package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
)

// FeedbackService applies user verdicts and trust changes queued on the
// signal bus. Verdict signals are emitted by the API; the mutations happen
// here, on the next dispatch pass, so replays stay consistent with live runs.
type FeedbackService struct {
	beliefs domain.BeliefStore
	notes   domain.NoteStore
	edges   domain.EdgeStore
	audit   domain.AuditStore
	cfg     rules.Config
	logger  *zap.Logger
}

func NewFeedbackService(bs domain.BeliefStore, ns domain.NoteStore, es domain.EdgeStore, as domain.AuditStore, cfg rules.Config, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{beliefs: bs, notes: ns, edges: es, audit: as, cfg: cfg, logger: logger}
}

// HandleConfirmed raises the belief's confidence by one feedback step. A
// challenged belief the user vouches for returns to active; a proposed one is
// activated outright.
func (s *FeedbackService) HandleConfirmed(ctx context.Context, sig *domain.Signal) error {
	id, err := sig.PayloadID("belief_id")
	if err != nil {
		return err
	}
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrBeliefNotFound)
	}

	status := b.Status
	if status == domain.BeliefChallenged || status == domain.BeliefProposed {
		if err := rules.ValidateTransition(status, domain.BeliefActive); err != nil {
			return err
		}
		status = domain.BeliefActive
	}
	confidence := rules.Clamp(b.Confidence + s.cfg.ConfidenceStep)

	if err := s.beliefs.UpdateStatusAndConfidence(ctx, id, status, confidence); err != nil {
		return err
	}
	return s.recordVerdict(ctx, b, status, confidence, "confirmed")
}

// HandleRefuted lowers confidence by one feedback step and challenges an
// active belief. The downgraded confidence survives the transition; this is
// the one path where feedback outweighs the evidence tally.
func (s *FeedbackService) HandleRefuted(ctx context.Context, sig *domain.Signal) error {
	id, err := sig.PayloadID("belief_id")
	if err != nil {
		return err
	}
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrBeliefNotFound)
	}

	status := b.Status
	if status == domain.BeliefActive {
		if err := rules.ValidateTransition(status, domain.BeliefChallenged); err != nil {
			return err
		}
		status = domain.BeliefChallenged
	}
	confidence := rules.Clamp(b.Confidence - s.cfg.ConfidenceStep)

	if err := s.beliefs.UpdateStatusAndConfidence(ctx, id, status, confidence); err != nil {
		return err
	}
	return s.recordVerdict(ctx, b, status, confidence, "refuted")
}

// HandleTrustUpdated nudges every belief supported by the relabeled source's
// notes: up a step on promotion to trusted, down a step on demotion. The
// decay clock is left alone since no new evidence arrived.
func (s *FeedbackService) HandleTrustUpdated(ctx context.Context, sig *domain.Signal) error {
	sourceID, err := sig.PayloadID("source_id")
	if err != nil {
		return err
	}
	newLabel := domain.TrustLabel(sig.PayloadString("new_label"))

	step := s.cfg.ConfidenceStep
	if newLabel != domain.TrustTrusted && newLabel != domain.TrustUser {
		step = -step
	}

	notes, err := s.notes.ListNotes(ctx, domain.NoteFilter{SourceID: sourceID})
	if err != nil {
		return err
	}

	seen := map[string]struct{}{}
	rel := domain.RelSupports
	for _, n := range notes {
		edges, err := s.edges.ListByEntity(ctx, domain.EntityNote, n.ID, domain.EdgeOutgoing, &rel)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.ToType != domain.EntityBelief {
				continue
			}
			if _, dup := seen[e.ToID.String()]; dup {
				continue
			}
			seen[e.ToID.String()] = struct{}{}

			b, err := s.beliefs.GetByID(ctx, e.ToID)
			if err != nil {
				s.logger.Warn("dangling supports edge during trust update",
					zap.String("belief_id", e.ToID.String()), zap.Error(err))
				continue
			}
			confidence := rules.Clamp(b.Confidence + step)
			if confidence == b.Confidence {
				continue
			}
			if err := s.beliefs.UpdateConfidence(ctx, b.ID, confidence); err != nil {
				return err
			}
			if err := s.audit.Append(ctx, &domain.AuditEntry{
				EntityType: string(domain.EntityBelief),
				EntityID:   b.ID,
				Action:     "trust_adjusted",
				Before:     map[string]any{"confidence": b.Confidence},
				After: map[string]any{
					"confidence": confidence,
					"source_id":  sourceID.String(),
					"new_label":  string(newLabel),
				},
			}); err != nil {
				s.logger.Error("audit append failed", zap.String("belief_id", b.ID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *FeedbackService) recordVerdict(ctx context.Context, before *domain.Belief, status domain.BeliefStatus, confidence float64, verdict string) error {
	if err := s.audit.Append(ctx, &domain.AuditEntry{
		EntityType: string(domain.EntityBelief),
		EntityID:   before.ID,
		Action:     verdict,
		Before: map[string]any{
			"status":     string(before.Status),
			"confidence": before.Confidence,
		},
		After: map[string]any{
			"status":     string(status),
			"confidence": confidence,
			"actor":      domain.AgentUser,
		},
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("belief_id", before.ID.String()), zap.Error(err))
	}
	s.logger.Info("feedback applied",
		zap.String("belief_id", before.ID.String()),
		zap.String("verdict", verdict),
		zap.String("status", string(status)),
		zap.Float64("confidence", confidence))
	return nil
}
