package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
)

// Synthesis proposes beliefs from converging evidence. It consumes new_note
// signals, regroups notes by each shared tag and entity of the arriving note,
// and proposes one belief per group that reaches the minimum evidence size.
type Synthesis struct {
	notes   domain.NoteStore
	edges   domain.EdgeStore
	beliefs *service.BeliefService
	cfg     rules.Config
	logger  *zap.Logger

	Proposed Tally
}

func NewSynthesis(ns domain.NoteStore, es domain.EdgeStore, bs *service.BeliefService, cfg rules.Config, logger *zap.Logger) *Synthesis {
	return &Synthesis{notes: ns, edges: es, beliefs: bs, cfg: cfg, logger: logger}
}

// claimFor is the deterministic claim template. Identical evidence always
// yields the identical claim text.
func claimFor(key string, members int) string {
	return fmt.Sprintf("Multiple notes discuss %s (%d sources)", key, members)
}

func (s *Synthesis) HandleNewNote(ctx context.Context, sig *domain.Signal) error {
	noteID, err := sig.PayloadID("note_id")
	if err != nil {
		return err
	}
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return err
	}

	for _, tag := range note.Tags {
		group, err := s.notes.ListNotes(ctx, domain.NoteFilter{Tag: tag, Limit: s.cfg.BatchSize})
		if err != nil {
			return err
		}
		if err := s.synthesize(ctx, tag, group); err != nil {
			return err
		}
	}
	for _, entity := range note.Entities {
		group, err := s.notes.ListNotes(ctx, domain.NoteFilter{Entity: entity, Limit: s.cfg.BatchSize})
		if err != nil {
			return err
		}
		if err := s.synthesize(ctx, entity, group); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesis) synthesize(ctx context.Context, key string, group []domain.Note) error {
	if len(group) < s.cfg.MinGroupSize {
		return nil
	}

	belief, err := s.groupBelief(ctx, key)
	if err != nil {
		return err
	}
	if belief == nil {
		belief = &domain.Belief{
			ClaimText:        claimFor(key, len(group)),
			Status:           domain.BeliefProposed,
			Confidence:       rules.SeedConfidence(s.cfg, len(group)),
			Scope:            map[string]any{"group_key": key},
			DerivedFromAgent: domain.AgentSynthesis,
		}
		if err := s.beliefs.Propose(ctx, belief); err != nil {
			return err
		}
		s.Proposed.add(1)
		s.logger.Info("belief proposed",
			zap.String("belief_id", belief.ID.String()),
			zap.String("group_key", key),
			zap.Int("members", len(group)),
			zap.Float64("confidence", belief.Confidence))
	}

	// Supports edges are keyed on the full tuple, so a redelivered signal or a
	// grown group only fills in the edges that are still missing.
	for _, member := range group {
		err := s.edges.Create(ctx, &domain.Edge{
			FromType: domain.EntityNote,
			FromID:   member.ID,
			RelType:  domain.RelSupports,
			ToType:   domain.EntityBelief,
			ToID:     belief.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// groupBelief finds the belief previously minted for this group key, however
// far its lifecycle has advanced. Evidence for a known group tops up that
// belief instead of minting a twin, which keeps redelivered signals safe even
// when an earlier attempt failed partway through the edge writes.
func (s *Synthesis) groupBelief(ctx context.Context, key string) (*domain.Belief, error) {
	for offset := 0; ; offset += s.cfg.BatchSize {
		batch, err := s.beliefs.List(ctx, domain.BeliefFilter{Limit: s.cfg.BatchSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for i := range batch {
			b := &batch[i]
			if b.DerivedFromAgent != domain.AgentSynthesis || b.Status == domain.BeliefArchived {
				continue
			}
			if gk, ok := b.Scope["group_key"].(string); ok && gk == key {
				return b, nil
			}
		}
		if len(batch) < s.cfg.BatchSize {
			return nil, nil
		}
	}
}
