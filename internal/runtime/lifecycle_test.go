package runtime

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
)

func newLifecycleFixture(t *testing.T) (*Lifecycle, *service.BeliefService, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	logger := zap.NewNop()
	svc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	return NewLifecycle(stores.Beliefs, svc, cfg, logger), svc, stores
}

func supportWith(t *testing.T, stores domain.Stores, beliefID uuid.UUID, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		note := &domain.Note{Content: "evidence", ContentType: domain.ContentTypeText}
		if err := stores.Notes.CreateNote(ctx, note); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		err := stores.Edges.Create(ctx, &domain.Edge{
			FromType: domain.EntityNote, FromID: note.ID,
			RelType: domain.RelSupports,
			ToType:  domain.EntityBelief, ToID: beliefID,
		})
		if err != nil {
			t.Fatalf("Create edge: %v", err)
		}
	}
}

func TestLifecycle_ActivatesAboveThreshold(t *testing.T) {
	lc, svc, stores := newLifecycleFixture(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "well supported claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	// Two supports: 0.5 + 2*0.1 = 0.7, above the 0.6 activation bar.
	supportWith(t, stores, b.ID, 2)

	res := lc.Run(ctx)
	if res.Activated != 1 {
		t.Errorf("activated = %d, want 1 (failures: %d)", res.Activated, res.Failed)
	}

	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestLifecycle_ContradictedBeliefStaysProposed(t *testing.T) {
	lc, svc, stores := newLifecycleFixture(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "contested but popular claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	// Three supports against one counter: 0.5 + 3*0.1 - 0.1 = 0.7, clear of
	// the activation bar, but the standing contradicts edge must still hold
	// the belief back.
	supportWith(t, stores, b.ID, 3)
	note := &domain.Note{Content: "counter evidence", ContentType: domain.ContentTypeText}
	if err := stores.Notes.CreateNote(ctx, note); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	err := stores.Edges.Create(ctx, &domain.Edge{
		FromType: domain.EntityNote, FromID: note.ID,
		RelType: domain.RelContradicts,
		ToType:  domain.EntityBelief, ToID: b.ID,
	})
	if err != nil {
		t.Fatalf("Create edge: %v", err)
	}

	res := lc.Run(ctx)
	if res.Activated != 0 {
		t.Errorf("activated = %d, want 0", res.Activated)
	}

	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefProposed {
		t.Errorf("status = %s, want proposed", got.Status)
	}
	if math.Abs(got.Confidence-0.7) > 1e-3 {
		t.Errorf("confidence = %f, want 0.7", got.Confidence)
	}
}

func TestLifecycle_LeavesUnderThresholdProposed(t *testing.T) {
	lc, svc, stores := newLifecycleFixture(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "unsupported claim"}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	res := lc.Run(ctx)
	if res.Recomputed != 1 || res.Activated != 0 {
		t.Errorf("result = %+v, want 1 recomputed, 0 activated", res)
	}

	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefProposed {
		t.Errorf("status = %s, want proposed", got.Status)
	}
}

func TestLifecycle_DeprecatesCollapsedBelief(t *testing.T) {
	lc, svc, stores := newLifecycleFixture(t)
	ctx := context.Background()

	b := &domain.Belief{ClaimText: "contested claim", Status: domain.BeliefActive}
	if err := svc.Propose(ctx, b); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Four counters: 0.5 - 4*0.1 = 0.1, under the 0.2 deprecation floor. The
	// walk to deprecated passes through challenged; no guard is skipped.
	for i := 0; i < 4; i++ {
		note := &domain.Note{Content: "counter evidence", ContentType: domain.ContentTypeText}
		if err := stores.Notes.CreateNote(ctx, note); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		err := stores.Edges.Create(ctx, &domain.Edge{
			FromType: domain.EntityNote, FromID: note.ID,
			RelType: domain.RelContradicts,
			ToType:  domain.EntityBelief, ToID: b.ID,
		})
		if err != nil {
			t.Fatalf("Create edge: %v", err)
		}
	}

	res := lc.Run(ctx)
	if res.Deprecated != 1 {
		t.Errorf("deprecated = %d, want 1 (failures: %d)", res.Deprecated, res.Failed)
	}

	got, _ := stores.Beliefs.GetByID(ctx, b.ID)
	if got.Status != domain.BeliefDeprecated {
		t.Errorf("status = %s, want deprecated", got.Status)
	}
}
