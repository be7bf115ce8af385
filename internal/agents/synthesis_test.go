package agents

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
)

func newSynthesisFixture(t *testing.T) (*Synthesis, *service.BeliefService, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	logger := zap.NewNop()
	beliefSvc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	return NewSynthesis(stores.Notes, stores.Edges, beliefSvc, cfg, logger), beliefSvc, stores
}

func addNote(t *testing.T, stores domain.Stores, content string, tags, entities []string) *domain.Note {
	t.Helper()
	n := &domain.Note{
		Content:     content,
		ContentType: domain.ContentTypeText,
		Tags:        tags,
		Entities:    entities,
	}
	if err := stores.Notes.CreateNote(context.Background(), n); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func noteSignal(n *domain.Note) *domain.Signal {
	return &domain.Signal{
		Type:    domain.SignalNewNote,
		Payload: map[string]any{"note_id": n.ID.String()},
	}
}

func TestSynthesis_ProposesFromConvergingTags(t *testing.T) {
	syn, _, stores := newSynthesisFixture(t)
	ctx := context.Background()

	addNote(t, stores, "goroutines make this easy #go", []string{"go"}, nil)
	second := addNote(t, stores, "channels compose well #go", []string{"go"}, nil)

	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}

	beliefs, err := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(beliefs) != 1 {
		t.Fatalf("beliefs = %d, want 1", len(beliefs))
	}
	b := beliefs[0]
	if b.ClaimText != "Multiple notes discuss go (2 sources)" {
		t.Errorf("claim = %q", b.ClaimText)
	}
	if b.Status != domain.BeliefProposed || b.DerivedFromAgent != domain.AgentSynthesis {
		t.Errorf("status/agent = %s/%s", b.Status, b.DerivedFromAgent)
	}
	if b.Scope["group_key"] != "go" {
		t.Errorf("scope = %v, want group_key go", b.Scope)
	}

	rel := domain.RelSupports
	evidence, err := stores.Edges.ListByEntity(ctx, domain.EntityBelief, b.ID, domain.EdgeIncoming, &rel)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(evidence) != 2 {
		t.Errorf("supports edges = %d, want 2", len(evidence))
	}
	if got := syn.Proposed.Take(); got != 1 {
		t.Errorf("tally = %d, want 1", got)
	}
}

func TestSynthesis_ReplayDoesNotDuplicate(t *testing.T) {
	syn, _, stores := newSynthesisFixture(t)
	ctx := context.Background()

	addNote(t, stores, "first #topic", []string{"topic"}, nil)
	second := addNote(t, stores, "second #topic", []string{"topic"}, nil)

	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}
	// Replaying the exact same signal must be a no-op: the group is already
	// covered by the first proposal.
	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("replay: %v", err)
	}

	beliefs, _ := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 1 {
		t.Errorf("beliefs after replay = %d, want 1", len(beliefs))
	}
}

// flakyEdgeStore drops one Create on its nth call, standing in for a store
// that fails partway through a batch of edge writes.
type flakyEdgeStore struct {
	domain.EdgeStore
	failOn int
	calls  int
}

func (f *flakyEdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("write lost")
	}
	return f.EdgeStore.Create(ctx, e)
}

func TestSynthesis_RedeliveryAfterPartialFailure(t *testing.T) {
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	logger := zap.NewNop()
	beliefSvc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	flaky := &flakyEdgeStore{EdgeStore: stores.Edges, failOn: 2}
	syn := NewSynthesis(stores.Notes, flaky, beliefSvc, cfg, logger)
	ctx := context.Background()

	addNote(t, stores, "first #flaky", []string{"flaky"}, nil)
	second := addNote(t, stores, "second #flaky", []string{"flaky"}, nil)

	// First delivery proposes the belief but loses the second supports edge,
	// so the handler reports failure and the signal stays pending.
	if err := syn.HandleNewNote(ctx, noteSignal(second)); err == nil {
		t.Fatal("expected the first delivery to fail")
	}

	// Redelivery must adopt the half-built belief and fill in the missing
	// edge, not mint a second belief for the same group.
	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	beliefs, _ := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 1 {
		t.Fatalf("beliefs after redelivery = %d, want 1", len(beliefs))
	}
	rel := domain.RelSupports
	evidence, err := stores.Edges.ListByEntity(ctx, domain.EntityBelief, beliefs[0].ID, domain.EdgeIncoming, &rel)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(evidence) != 2 {
		t.Errorf("supports edges = %d, want 2", len(evidence))
	}
	if got := syn.Proposed.Take(); got != 1 {
		t.Errorf("tally = %d, want 1", got)
	}
}

func TestSynthesis_GrownGroupTopsUpExistingBelief(t *testing.T) {
	syn, _, stores := newSynthesisFixture(t)
	ctx := context.Background()

	addNote(t, stores, "first #grow", []string{"grow"}, nil)
	second := addNote(t, stores, "second #grow", []string{"grow"}, nil)
	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}

	third := addNote(t, stores, "third #grow", []string{"grow"}, nil)
	if err := syn.HandleNewNote(ctx, noteSignal(third)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}

	beliefs, _ := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 1 {
		t.Fatalf("beliefs after growth = %d, want 1", len(beliefs))
	}
	rel := domain.RelSupports
	evidence, _ := stores.Edges.ListByEntity(ctx, domain.EntityBelief, beliefs[0].ID, domain.EdgeIncoming, &rel)
	if len(evidence) != 3 {
		t.Errorf("supports edges = %d, want 3", len(evidence))
	}
}

func TestSynthesis_BelowMinGroupSize(t *testing.T) {
	syn, _, stores := newSynthesisFixture(t)
	ctx := context.Background()

	only := addNote(t, stores, "lone observation #rare", []string{"rare"}, nil)

	if err := syn.HandleNewNote(ctx, noteSignal(only)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}

	beliefs, _ := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 0 {
		t.Errorf("beliefs = %d, want 0", len(beliefs))
	}
}

func TestSynthesis_GroupsByEntityToo(t *testing.T) {
	syn, _, stores := newSynthesisFixture(t)
	ctx := context.Background()

	addNote(t, stores, "@redis handles this", nil, []string{"redis"})
	second := addNote(t, stores, "@redis again", nil, []string{"redis"})

	if err := syn.HandleNewNote(ctx, noteSignal(second)); err != nil {
		t.Fatalf("HandleNewNote: %v", err)
	}

	beliefs, _ := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 1 {
		t.Fatalf("beliefs = %d, want 1", len(beliefs))
	}
	if beliefs[0].Scope["group_key"] != "redis" {
		t.Errorf("scope = %v, want group_key redis", beliefs[0].Scope)
	}
}
