package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
)

// constantEmbedder maps every text to the same vector, so any two beliefs
// look like perfect duplicates.
type constantEmbedder struct{}

func (constantEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newCuratorFixture(t *testing.T, embedder domain.EmbeddingClient, cfg rules.Config) (*Curator, *service.BeliefService, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	logger := zap.NewNop()
	beliefSvc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	c := NewCurator(stores.Beliefs, stores.Notes, stores.Edges, stores.Signals, beliefSvc, embedder, cfg, logger)
	return c, beliefSvc, stores
}

func TestCurator_ArchivesColdDeprecated(t *testing.T) {
	c, beliefSvc, stores := newCuratorFixture(t, nil, rules.DefaultConfig())
	ctx := context.Background()

	old := time.Now().UTC().Add(-91 * 24 * time.Hour)
	b := &domain.Belief{
		ClaimText: "stale claim",
		Status:    domain.BeliefDeprecated,
		CreatedAt: old,
		UpdatedAt: old,
	}
	if err := beliefSvc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	archived, _, _ := c.Run(ctx)
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
}

func TestCurator_ArchiveRespectsColdThreshold(t *testing.T) {
	c, beliefSvc, stores := newCuratorFixture(t, nil, rules.DefaultConfig())
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "recently deprecated", Status: domain.BeliefDeprecated}
	if err := beliefSvc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Just deprecated, nowhere near the default 90 day cold line.
	archived, _, _ := c.Run(ctx)
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}
	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefDeprecated {
		t.Errorf("status = %s, want deprecated", got.Status)
	}
}

func TestCurator_ArchiveScansPastFirstBatch(t *testing.T) {
	cfg := rules.DefaultConfig()
	cfg.BatchSize = 2
	c, beliefSvc, stores := newCuratorFixture(t, nil, cfg)
	ctx := context.Background()

	// Three warm beliefs fill the first listing window; the cold ones behind
	// them must still be examined.
	for i := 0; i < 3; i++ {
		b := &domain.Belief{
			ClaimText: fmt.Sprintf("warm claim %d", i),
			Status:    domain.BeliefDeprecated,
		}
		if err := beliefSvc.Propose(ctx, b); err != nil {
			t.Fatalf("Propose: %v", err)
		}
	}
	old := time.Now().UTC().Add(-91 * 24 * time.Hour)
	cold := make([]*domain.Belief, 2)
	for i := range cold {
		cold[i] = &domain.Belief{
			ClaimText: fmt.Sprintf("cold claim %d", i),
			Status:    domain.BeliefDeprecated,
			CreatedAt: old,
			UpdatedAt: old,
		}
		if err := beliefSvc.Propose(ctx, cold[i]); err != nil {
			t.Fatalf("Propose: %v", err)
		}
	}

	archived, _, _ := c.Run(ctx)
	if archived != 2 {
		t.Errorf("archived = %d, want 2", archived)
	}
	for _, b := range cold {
		got, _ := stores.Beliefs.GetByID(ctx, b.ID)
		if got.Status != domain.BeliefArchived {
			t.Errorf("cold belief status = %s, want archived", got.Status)
		}
	}
}

func TestCurator_DedupMergesNearDuplicates(t *testing.T) {
	c, beliefSvc, stores := newCuratorFixture(t, constantEmbedder{}, rules.DefaultConfig())
	ctx := context.Background()

	older := &domain.Belief{ClaimText: "the api is rate limited", Status: domain.BeliefActive}
	newer := &domain.Belief{ClaimText: "api calls are rate limited", Status: domain.BeliefActive}
	for _, b := range []*domain.Belief{older, newer} {
		if err := beliefSvc.Propose(ctx, b); err != nil {
			t.Fatalf("Propose: %v", err)
		}
	}
	note := addNote(t, stores, "429 responses observed", nil, nil)
	err := stores.Edges.Create(ctx, &domain.Edge{
		FromType: domain.EntityNote, FromID: note.ID,
		RelType: domain.RelSupports,
		ToType:  domain.EntityBelief, ToID: newer.ID,
	})
	if err != nil {
		t.Fatalf("Create edge: %v", err)
	}

	_, deduplicated, _ := c.Run(ctx)
	if deduplicated != 1 {
		t.Fatalf("deduplicated = %d, want 1", deduplicated)
	}

	// The older belief survives; the newer one is folded into it.
	kept, _ := stores.Beliefs.GetByID(ctx, older.ID)
	if kept.Status != domain.BeliefActive {
		t.Errorf("survivor status = %s, want active", kept.Status)
	}
	lost, _ := stores.Beliefs.GetByID(ctx, newer.ID)
	if lost.Status != domain.BeliefDeprecated {
		t.Errorf("absorbed status = %s, want deprecated", lost.Status)
	}

	// Evidence is re-pointed to the survivor and the pair stays linked.
	rel := domain.RelSupports
	evidence, _ := stores.Edges.ListByEntity(ctx, domain.EntityBelief, older.ID, domain.EdgeIncoming, &rel)
	if len(evidence) != 1 {
		t.Errorf("survivor supports = %d, want 1", len(evidence))
	}
	rel = domain.RelRelated
	related, _ := stores.Edges.ListByEntity(ctx, domain.EntityBelief, older.ID, domain.EdgeIncoming, &rel)
	if len(related) != 1 {
		t.Errorf("related edges = %d, want 1", len(related))
	}
}

func TestCurator_DedupSkippedWithoutEmbedder(t *testing.T) {
	c, beliefSvc, _ := newCuratorFixture(t, nil, rules.DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b := &domain.Belief{ClaimText: "identical claim", Status: domain.BeliefActive}
		if err := beliefSvc.Propose(ctx, b); err != nil {
			t.Fatalf("Propose: %v", err)
		}
	}

	_, deduplicated, _ := c.Run(ctx)
	if deduplicated != 0 {
		t.Errorf("deduplicated = %d, want 0 without an embedder", deduplicated)
	}
}

func TestCurator_DistillsHeavyTags(t *testing.T) {
	cfg := rules.DefaultConfig()
	c, _, stores := newCuratorFixture(t, nil, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.DistillMinGroup; i++ {
		addNote(t, stores, fmt.Sprintf("standup item %d #meetings", i), []string{"meetings"}, nil)
	}

	_, _, distilled := c.Run(ctx)
	if distilled != 1 {
		t.Fatalf("distilled = %d, want 1", distilled)
	}

	summaries, err := stores.Notes.ListNotes(ctx, domain.NoteFilter{Tag: "distilled:meetings", Limit: 10})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summary notes = %d, want 1", len(summaries))
	}

	rel := domain.RelDerivedFrom
	derived, _ := stores.Edges.ListByEntity(ctx, domain.EntityNote, summaries[0].ID, domain.EdgeOutgoing, &rel)
	if len(derived) != cfg.DistillMinGroup {
		t.Errorf("derived_from edges = %d, want %d", len(derived), cfg.DistillMinGroup)
	}

	pending, _ := stores.Signals.ListPending(ctx, []string{domain.SignalNoteDistilled}, 10)
	if len(pending) != 1 {
		t.Errorf("note_distilled signals = %d, want 1", len(pending))
	}

	// A second run sees the marker note and does not distill the tag again.
	_, _, distilled = c.Run(ctx)
	if distilled != 0 {
		t.Errorf("re-distilled = %d, want 0", distilled)
	}
	summaries, _ = stores.Notes.ListNotes(ctx, domain.NoteFilter{Tag: "distilled:meetings", Limit: 10})
	if len(summaries) != 1 {
		t.Errorf("summary notes after rerun = %d, want 1", len(summaries))
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); got != 1 {
		t.Errorf("identical vectors = %f, want 1", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors = %f, want 0", got)
	}
	if got := cosine([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("length mismatch = %f, want 0", got)
	}
	if got := cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors = %f, want 0", got)
	}
}
