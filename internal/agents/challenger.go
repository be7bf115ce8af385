package agents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
)

// Challenger hunts contradictions. It inspects newly proposed beliefs against
// the live belief population, and new notes against both the population and
// the sibling evidence of beliefs they support. Every detection records a
// contradicts edge and drives the losing belief to challenged through the
// guarded lifecycle chain.
type Challenger struct {
	beliefs   domain.BeliefStore
	notes     domain.NoteStore
	edges     domain.EdgeStore
	beliefSvc *service.BeliefService
	det       rules.DetectorConfig
	cfg       rules.Config
	logger    *zap.Logger

	Challenged Tally
}

func NewChallenger(bs domain.BeliefStore, ns domain.NoteStore, es domain.EdgeStore, svc *service.BeliefService, det rules.DetectorConfig, cfg rules.Config, logger *zap.Logger) *Challenger {
	return &Challenger{
		beliefs:   bs,
		notes:     ns,
		edges:     es,
		beliefSvc: svc,
		det:       det,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleBeliefProposed checks a fresh proposal against current candidates.
// When two claims conflict, the more recent belief of the pair is the one
// sent to challenged; the standing belief keeps its status until evidence
// says otherwise.
func (c *Challenger) HandleBeliefProposed(ctx context.Context, sig *domain.Signal) error {
	beliefID, err := sig.PayloadID("belief_id")
	if err != nil {
		return err
	}
	b, err := c.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		return err
	}
	if b.Status != domain.BeliefProposed {
		// Already resolved by an earlier pass or replay.
		return nil
	}

	candidates, err := c.liveCandidates(ctx)
	if err != nil {
		return err
	}
	matches := rules.DetectAgainst(c.det, b.ID, b.ClaimText, candidates)
	byID := make(map[uuid.UUID]domain.Belief, len(candidates))
	for _, cand := range candidates {
		byID[cand.ID] = cand
	}

	for _, matchID := range matches {
		other := byID[matchID]
		if err := c.recordConflict(ctx, domain.EntityBelief, b.ID, matchID); err != nil {
			return err
		}
		loser := b.ID
		if other.CreatedAt.After(b.CreatedAt) {
			loser = other.ID
		}
		if err := c.challenge(ctx, loser); err != nil {
			return err
		}
	}
	return nil
}

// HandleNewNote checks arriving evidence. The note's content is compared to
// candidate belief claims, and to the other evidence notes of each belief
// this note supports; conflicting sibling evidence contests the shared
// belief.
func (c *Challenger) HandleNewNote(ctx context.Context, sig *domain.Signal) error {
	noteID, err := sig.PayloadID("note_id")
	if err != nil {
		return err
	}
	note, err := c.notes.GetNote(ctx, noteID)
	if err != nil {
		return err
	}

	candidates, err := c.liveCandidates(ctx)
	if err != nil {
		return err
	}
	for _, matchID := range rules.DetectAgainst(c.det, uuid.Nil, note.Content, candidates) {
		if err := c.recordConflict(ctx, domain.EntityNote, note.ID, matchID); err != nil {
			return err
		}
		if err := c.challenge(ctx, matchID); err != nil {
			return err
		}
	}

	return c.checkSiblingEvidence(ctx, note)
}

func (c *Challenger) checkSiblingEvidence(ctx context.Context, note *domain.Note) error {
	rel := domain.RelSupports
	supported, err := c.edges.ListByEntity(ctx, domain.EntityNote, note.ID, domain.EdgeOutgoing, &rel)
	if err != nil {
		return err
	}
	for _, edge := range supported {
		if edge.ToType != domain.EntityBelief {
			continue
		}
		siblings, err := c.edges.ListByEntity(ctx, domain.EntityBelief, edge.ToID, domain.EdgeIncoming, &rel)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.FromType != domain.EntityNote || sib.FromID == note.ID {
				continue
			}
			other, err := c.notes.GetNote(ctx, sib.FromID)
			if err != nil {
				// Dangling evidence endpoint; tolerated.
				c.logger.Debug("skipping dangling evidence edge",
					zap.String("note_id", sib.FromID.String()), zap.Error(err))
				continue
			}
			if !rules.Contradicts(c.det, note.Content, other.Content) {
				continue
			}
			if err := c.recordConflict(ctx, domain.EntityNote, note.ID, edge.ToID); err != nil {
				return err
			}
			if err := c.challenge(ctx, edge.ToID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Challenger) liveCandidates(ctx context.Context) ([]domain.Belief, error) {
	var candidates []domain.Belief
	for _, status := range []domain.BeliefStatus{domain.BeliefActive, domain.BeliefProposed} {
		st := status
		batch, err := c.beliefs.List(ctx, domain.BeliefFilter{Status: &st, Limit: c.cfg.MaxCandidates})
		if err != nil {
			return nil, err
		}
		if len(batch) == c.cfg.MaxCandidates {
			c.logger.Warn("candidates capped, some beliefs may be skipped",
				zap.String("status", string(st)),
				zap.Int("cap", c.cfg.MaxCandidates))
		}
		candidates = append(candidates, batch...)
	}
	return candidates, nil
}

func (c *Challenger) recordConflict(ctx context.Context, fromType domain.EntityType, fromID, beliefID uuid.UUID) error {
	return c.edges.Create(ctx, &domain.Edge{
		FromType: fromType,
		FromID:   fromID,
		RelType:  domain.RelContradicts,
		ToType:   domain.EntityBelief,
		ToID:     beliefID,
	})
}

// challenge walks the belief to challenged through legal transitions only.
// Beliefs already challenged are left alone; deprecated or archived ones have
// no path and are skipped.
func (c *Challenger) challenge(ctx context.Context, beliefID uuid.UUID) error {
	b, err := c.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		return err
	}
	if b.Status == domain.BeliefChallenged {
		return nil
	}
	_, err = c.beliefSvc.TransitionTo(ctx, beliefID, domain.BeliefChallenged, domain.AgentChallenger)
	if err != nil {
		if errors.Is(err, service.ErrNoTransitionPath) {
			c.logger.Debug("belief not challengeable from current status",
				zap.String("belief_id", beliefID.String()),
				zap.String("status", string(b.Status)))
			return nil
		}
		return err
	}
	c.Challenged.add(1)
	c.logger.Info("belief challenged",
		zap.String("belief_id", beliefID.String()),
		zap.String("agent", domain.AgentChallenger))
	return nil
}
