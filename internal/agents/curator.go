package agents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
)

// distillTagPrefix marks curator-generated summary notes so they are
// identifiable and never re-distilled.
const distillTagPrefix = "distilled:"

// Curator is the maintenance agent. Each run does three bounded passes:
// archive cold deprecated beliefs, deduplicate near-identical active beliefs
// by embedding similarity, and distill heavily-used tags into summary notes.
type Curator struct {
	beliefs   domain.BeliefStore
	notes     domain.NoteStore
	edges     domain.EdgeStore
	signals   domain.SignalStore
	beliefSvc *service.BeliefService
	embedder  domain.EmbeddingClient
	cfg       rules.Config
	logger    *zap.Logger

	// dedupOffset makes the dedup pass resumable across ticks; a single run
	// never scans more than one bounded window.
	dedupOffset int
}

func NewCurator(bs domain.BeliefStore, ns domain.NoteStore, es domain.EdgeStore, ss domain.SignalStore, svc *service.BeliefService, embedder domain.EmbeddingClient, cfg rules.Config, logger *zap.Logger) *Curator {
	return &Curator{
		beliefs:   bs,
		notes:     ns,
		edges:     es,
		signals:   ss,
		beliefSvc: svc,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger,
	}
}

func (c *Curator) Run(ctx context.Context) (archived, deduplicated, distilled int) {
	archived = c.runArchive(ctx)
	deduplicated = c.runDedup(ctx)
	distilled = c.runDistill(ctx)
	return archived, deduplicated, distilled
}

// runArchive retires deprecated beliefs untouched longer than the cold
// threshold. Archived is terminal.
func (c *Curator) runArchive(ctx context.Context) int {
	archived := 0
	now := time.Now().UTC()
	cold := time.Duration(c.cfg.ColdDays) * 24 * time.Hour

	// Snapshot the cold ids across the whole deprecated population before any
	// of them transition, so offset pagination is not confused by rows leaving
	// the filtered set mid-pass.
	status := domain.BeliefDeprecated
	var coldIDs []uuid.UUID
	for offset := 0; ; offset += c.cfg.BatchSize {
		batch, err := c.beliefs.List(ctx, domain.BeliefFilter{Status: &status, Limit: c.cfg.BatchSize, Offset: offset})
		if err != nil {
			c.logger.Error("archive pass listing failed", zap.Error(err))
			return 0
		}
		for _, b := range batch {
			if rules.Age(b.UpdatedAt, now) >= cold {
				coldIDs = append(coldIDs, b.ID)
			}
		}
		if len(batch) < c.cfg.BatchSize {
			break
		}
	}

	for _, id := range coldIDs {
		if _, err := c.beliefSvc.Transition(ctx, id, domain.BeliefArchived, domain.AgentCurator); err != nil {
			c.logger.Error("archive transition failed",
				zap.String("belief_id", id.String()), zap.Error(err))
			continue
		}
		archived++
	}
	return archived
}

// runDedup merges near-duplicate active beliefs. Without an embedding client
// the pass is skipped entirely; recall is reduced, nothing breaks.
func (c *Curator) runDedup(ctx context.Context) int {
	if c.embedder == nil {
		c.logger.Debug("dedup pass skipped: no embedding client configured")
		return 0
	}

	deadline := time.Now().Add(c.cfg.DedupTimeBudget)
	status := domain.BeliefActive
	batch, err := c.beliefs.List(ctx, domain.BeliefFilter{
		Status: &status,
		Limit:  c.cfg.DedupMaxBeliefs,
		Offset: c.dedupOffset,
	})
	if err != nil {
		c.logger.Error("dedup pass listing failed", zap.Error(err))
		return 0
	}
	if len(batch) < c.cfg.DedupMaxBeliefs {
		c.dedupOffset = 0
	} else {
		c.dedupOffset += len(batch)
	}

	for i := range batch {
		if len(batch[i].Embedding) > 0 {
			continue
		}
		vec, err := c.embedder.Embed(ctx, batch[i].ClaimText)
		if err != nil {
			c.logger.Warn("embedding failed, belief skipped this pass",
				zap.String("belief_id", batch[i].ID.String()), zap.Error(err))
			continue
		}
		if err := c.beliefs.UpdateEmbedding(ctx, batch[i].ID, vec); err != nil {
			c.logger.Error("embedding persist failed",
				zap.String("belief_id", batch[i].ID.String()), zap.Error(err))
			continue
		}
		batch[i].Embedding = vec
	}

	deduplicated := 0
	absorbed := map[uuid.UUID]bool{}
	for i := 0; i < len(batch); i++ {
		if time.Now().After(deadline) {
			c.logger.Warn("dedup pass time budget exhausted",
				zap.Int("compared", i), zap.Int("window", len(batch)))
			break
		}
		if absorbed[batch[i].ID] || len(batch[i].Embedding) == 0 {
			continue
		}
		for j := i + 1; j < len(batch); j++ {
			if absorbed[batch[j].ID] || len(batch[j].Embedding) == 0 {
				continue
			}
			if cosine(batch[i].Embedding, batch[j].Embedding) < c.cfg.SimilarityThreshold {
				continue
			}
			survivor, loser := &batch[i], &batch[j]
			if loser.CreatedAt.Before(survivor.CreatedAt) {
				survivor, loser = loser, survivor
			}
			if err := c.absorb(ctx, survivor, loser); err != nil {
				c.logger.Error("dedup merge failed",
					zap.String("survivor", survivor.ID.String()),
					zap.String("absorbed", loser.ID.String()),
					zap.Error(err))
				continue
			}
			absorbed[loser.ID] = true
			deduplicated++
		}
	}
	return deduplicated
}

// absorb folds the loser belief into the survivor: supports evidence is
// re-pointed (idempotently), the pair is linked with a related edge, and the
// loser walks the guarded chain down to deprecated.
func (c *Curator) absorb(ctx context.Context, survivor, loser *domain.Belief) error {
	rel := domain.RelSupports
	evidence, err := c.edges.ListByEntity(ctx, domain.EntityBelief, loser.ID, domain.EdgeIncoming, &rel)
	if err != nil {
		return err
	}
	for _, e := range evidence {
		err := c.edges.Create(ctx, &domain.Edge{
			FromType: e.FromType,
			FromID:   e.FromID,
			RelType:  domain.RelSupports,
			ToType:   domain.EntityBelief,
			ToID:     survivor.ID,
		})
		if err != nil {
			return err
		}
	}
	err = c.edges.Create(ctx, &domain.Edge{
		FromType: domain.EntityBelief,
		FromID:   loser.ID,
		RelType:  domain.RelRelated,
		ToType:   domain.EntityBelief,
		ToID:     survivor.ID,
	})
	if err != nil {
		return err
	}

	if _, err := c.beliefSvc.TransitionTo(ctx, loser.ID, domain.BeliefDeprecated, domain.AgentCurator); err != nil {
		return err
	}
	c.logger.Info("belief deduplicated",
		zap.String("survivor", survivor.ID.String()),
		zap.String("absorbed", loser.ID.String()))
	return nil
}

// runDistill summarizes tags that accumulated enough notes. The summary note
// carries only the marker tag, so it neither re-enters synthesis grouping nor
// gets distilled again.
func (c *Curator) runDistill(ctx context.Context) int {
	counts := map[string]int{}
	for offset := 0; ; offset += c.cfg.BatchSize {
		batch, err := c.notes.ListNotes(ctx, domain.NoteFilter{Limit: c.cfg.BatchSize, Offset: offset})
		if err != nil {
			c.logger.Error("distill pass listing failed", zap.Error(err))
			return 0
		}
		for _, n := range batch {
			for _, tag := range n.Tags {
				if strings.HasPrefix(tag, distillTagPrefix) {
					continue
				}
				counts[tag]++
			}
		}
		if len(batch) < c.cfg.BatchSize {
			break
		}
	}

	tags := make([]string, 0, len(counts))
	for tag, n := range counts {
		if n >= c.cfg.DistillMinGroup {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	distilled := 0
	for _, tag := range tags {
		ok, err := c.distillTag(ctx, tag)
		if err != nil {
			c.logger.Error("distill failed", zap.String("tag", tag), zap.Error(err))
			continue
		}
		if ok {
			distilled++
		}
	}
	return distilled
}

func (c *Curator) distillTag(ctx context.Context, tag string) (bool, error) {
	marker := distillTagPrefix + tag
	existing, err := c.notes.ListNotes(ctx, domain.NoteFilter{Tag: marker, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	members, err := c.notes.ListNotes(ctx, domain.NoteFilter{Tag: tag, Limit: c.cfg.BatchSize})
	if err != nil {
		return false, err
	}

	summary := &domain.Note{
		Content:     fmt.Sprintf("Summary of %d notes tagged %s", len(members), tag),
		ContentType: domain.ContentTypeText,
		Tags:        []string{marker},
		ContentHash: fmt.Sprintf("distill:%s:%d", tag, len(members)),
	}
	if err := c.notes.CreateNote(ctx, summary); err != nil {
		return false, err
	}
	for _, member := range members {
		err := c.edges.Create(ctx, &domain.Edge{
			FromType: domain.EntityNote,
			FromID:   summary.ID,
			RelType:  domain.RelDerivedFrom,
			ToType:   domain.EntityNote,
			ToID:     member.ID,
		})
		if err != nil {
			return false, err
		}
	}

	err = c.signals.Create(ctx, &domain.Signal{
		Type: domain.SignalNoteDistilled,
		Payload: map[string]any{
			"note_id": summary.ID.String(),
			"tag":     tag,
			"members": fmt.Sprintf("%d", len(members)),
		},
	})
	if err != nil {
		return false, err
	}
	c.logger.Info("tag distilled",
		zap.String("tag", tag),
		zap.Int("members", len(members)),
		zap.String("summary_note_id", summary.ID.String()))
	return true, nil
}

// cosine returns the cosine similarity of two vectors, 0 when either is
// degenerate or lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
