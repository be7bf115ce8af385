package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/store"
)

func newBeliefService(t *testing.T) (*BeliefService, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	svc := NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, zap.NewNop())
	return svc, stores
}

func TestPropose(t *testing.T) {
	svc, stores := newBeliefService(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "water boils at 100C at sea level"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if b.Status != domain.BeliefProposed {
		t.Errorf("status = %s, want proposed", b.Status)
	}
	if b.Confidence != rules.DefaultBaseConfidence {
		t.Errorf("confidence = %f, want base default", b.Confidence)
	}

	// The proposal must reach the signal queue.
	pending, err := stores.Signals.ListPending(ctx, []string{domain.SignalBeliefProposed}, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending proposed signals = %d, want 1", len(pending))
	}
	if got, err := pending[0].PayloadID("belief_id"); err != nil || got != b.ID {
		t.Errorf("signal belief_id = %v (%v), want %v", got, err, b.ID)
	}

	// And the audit log.
	entries, err := stores.Audit.ListByEntity(ctx, b.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "created" {
		t.Errorf("audit entries = %+v, want one created entry", entries)
	}
}

func TestPropose_Validation(t *testing.T) {
	svc, _ := newBeliefService(t)
	ctx := context.Background()

	if err := svc.Propose(ctx, &domain.Belief{}); !errors.Is(err, ErrClaimEmpty) {
		t.Errorf("empty claim: err = %v, want ErrClaimEmpty", err)
	}
	err := svc.Propose(ctx, &domain.Belief{ClaimText: "x", DecayModel: "linear"})
	if !errors.Is(err, ErrInvalidDecay) {
		t.Errorf("bad decay model: err = %v, want ErrInvalidDecay", err)
	}
	err = svc.Propose(ctx, &domain.Belief{ClaimText: "x", Status: "limbo"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status: err = %v, want ErrInvalidStatus", err)
	}
}

func TestTransition_GuardsIllegalEdges(t *testing.T) {
	svc, _ := newBeliefService(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// proposed -> archived is not an edge in the lifecycle graph.
	if _, err := svc.Transition(ctx, b.ID, domain.BeliefArchived, domain.AgentUser); !errors.Is(err, rules.ErrInvalidTransition) {
		t.Errorf("proposed->archived: err = %v, want ErrInvalidTransition", err)
	}

	got, err := svc.Transition(ctx, b.ID, domain.BeliefActive, domain.AgentUser)
	if err != nil {
		t.Fatalf("proposed->active: %v", err)
	}
	if got.Status != domain.BeliefActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestTransition_ChallengedEmitsSignal(t *testing.T) {
	svc, stores := newBeliefService(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "claim", Status: domain.BeliefActive}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if _, err := svc.Transition(ctx, b.ID, domain.BeliefChallenged, domain.AgentChallenger); err != nil {
		t.Fatalf("active->challenged: %v", err)
	}

	pending, err := stores.Signals.ListPending(ctx, []string{domain.SignalBeliefChallenged}, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("challenged signals = %d, want 1", len(pending))
	}
}

func TestTransitionTo_WalksChain(t *testing.T) {
	svc, _ := newBeliefService(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// proposed -> active -> challenged -> deprecated, every hop guarded.
	got, err := svc.TransitionTo(ctx, b.ID, domain.BeliefDeprecated, domain.AgentCurator)
	if err != nil {
		t.Fatalf("TransitionTo(deprecated): %v", err)
	}
	if got.Status != domain.BeliefDeprecated {
		t.Errorf("status = %s, want deprecated", got.Status)
	}

	// Archived is terminal; nothing leads back out.
	if _, err := svc.TransitionTo(ctx, b.ID, domain.BeliefArchived, domain.AgentCurator); err != nil {
		t.Fatalf("TransitionTo(archived): %v", err)
	}
	if _, err := svc.TransitionTo(ctx, b.ID, domain.BeliefActive, domain.AgentCurator); !errors.Is(err, ErrNoTransitionPath) {
		t.Errorf("archived->active: err = %v, want ErrNoTransitionPath", err)
	}
}

func TestEvidence(t *testing.T) {
	svc, stores := newBeliefService(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	support := &domain.Note{Content: "supporting evidence", ContentType: domain.ContentTypeText}
	counter := &domain.Note{Content: "counter evidence", ContentType: domain.ContentTypeText}
	for _, n := range []*domain.Note{support, counter} {
		if err := stores.Notes.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
	}
	edges := []*domain.Edge{
		{FromType: domain.EntityNote, FromID: support.ID, RelType: domain.RelSupports, ToType: domain.EntityBelief, ToID: b.ID},
		{FromType: domain.EntityNote, FromID: counter.ID, RelType: domain.RelContradicts, ToType: domain.EntityBelief, ToID: b.ID},
	}
	for _, e := range edges {
		if err := stores.Edges.Create(ctx, e); err != nil {
			t.Fatalf("Create edge: %v", err)
		}
	}

	counts, err := svc.Evidence(ctx, b.ID)
	if err != nil {
		t.Fatalf("Evidence: %v", err)
	}
	if counts.Supports != 1 || counts.Counters != 1 {
		t.Errorf("counts = %+v, want 1 support, 1 counter", counts)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newBeliefService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrBeliefNotFound) {
		t.Errorf("err = %v, want ErrBeliefNotFound", err)
	}
}
