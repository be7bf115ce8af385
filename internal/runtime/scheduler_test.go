package runtime

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/agents"
	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/ingest"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
)

type fakeCurator struct {
	runs int
}

func (f *fakeCurator) Run(ctx context.Context) (int, int, int) {
	f.runs++
	return 3, 2, 1
}

type fixedCounter int

func (c fixedCounter) Take() int { return int(c) }

func TestRunOnce_CollectsStepCounts(t *testing.T) {
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	logger := zap.NewNop()

	d := NewDispatcher(stores.Signals, cfg, logger)
	d.Register(domain.SignalNewNote, func(_ context.Context, _ *domain.Signal) error { return nil })
	_ = stores.Signals.Create(context.Background(), &domain.Signal{Type: domain.SignalNewNote})

	curator := &fakeCurator{}
	s := NewScheduler(curator, nil, d, logger)
	s.SetAgentCounters(fixedCounter(4), fixedCounter(5))

	res := s.RunOnce(context.Background())

	if curator.runs != 1 {
		t.Errorf("curator runs = %d, want 1", curator.runs)
	}
	if res.Archived != 3 || res.Deduplicated != 2 || res.Distilled != 1 {
		t.Errorf("curator counts = %d/%d/%d, want 3/2/1", res.Archived, res.Deduplicated, res.Distilled)
	}
	if res.SignalsProcessed != 1 {
		t.Errorf("signals processed = %d, want 1", res.SignalsProcessed)
	}
	if res.Synthesized != 4 || res.Challenged != 5 {
		t.Errorf("agent counts = %d/%d, want 4/5", res.Synthesized, res.Challenged)
	}
	if res.Duration <= 0 {
		t.Errorf("duration = %v, want positive", res.Duration)
	}
}

// TestRunOnce_EndToEndContradictionTick wires the real agents through the
// dispatcher and runs a full tick over two opposing notes: synthesis proposes
// a belief for the shared tag, the challenger spots the fast/slow conflict,
// and the belief ends the tick challenged with a contradicts edge and a
// recomputed confidence.
func TestRunOnce_EndToEndContradictionTick(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemory()
	cfg := rules.DefaultConfig()
	logger := zap.NewNop()

	beliefSvc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	noteSvc := service.NewNoteService(stores.Notes, stores.Audit, stores.Signals, logger)
	signalSvc := service.NewSignalService(stores.Signals, logger)
	ing := ingest.New(noteSvc, signalSvc, logger)

	synthesis := agents.NewSynthesis(stores.Notes, stores.Edges, beliefSvc, cfg, logger)
	challenger := agents.NewChallenger(stores.Beliefs, stores.Notes, stores.Edges, beliefSvc, rules.DetectorConfig{}, cfg, logger)
	curator := agents.NewCurator(stores.Beliefs, stores.Notes, stores.Edges, stores.Signals, beliefSvc, nil, cfg, logger)

	d := NewDispatcher(stores.Signals, cfg, logger)
	d.Register(domain.SignalNewNote, synthesis.HandleNewNote)
	d.Register(domain.SignalNewNote, challenger.HandleNewNote)
	d.Register(domain.SignalBeliefProposed, challenger.HandleBeliefProposed)

	lc := NewLifecycle(stores.Beliefs, beliefSvc, cfg, logger)
	s := NewScheduler(curator, lc, d, logger)
	s.SetAgentCounters(&synthesis.Proposed, &challenger.Challenged)

	for _, content := range []string{"X is fast #x", "X is slow #x"} {
		if _, err := ing.Ingest(ctx, ingest.Input{Content: content, ContentType: domain.ContentTypeText}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	res := s.RunOnce(ctx)

	// Two new_note signals plus the cascading belief_proposed.
	if res.SignalsProcessed != 3 {
		t.Errorf("signals processed = %d, want 3", res.SignalsProcessed)
	}
	if res.Synthesized != 1 || res.Challenged != 1 {
		t.Errorf("synthesized/challenged = %d/%d, want 1/1", res.Synthesized, res.Challenged)
	}

	beliefs, err := stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(beliefs) != 1 {
		t.Fatalf("beliefs = %d, want 1", len(beliefs))
	}
	b := beliefs[0]
	if b.Scope["group_key"] != "x" {
		t.Errorf("scope = %v, want group_key x", b.Scope)
	}
	if b.Status != domain.BeliefChallenged {
		t.Errorf("status = %s, want challenged", b.Status)
	}
	rel := domain.RelContradicts
	conflicts, err := stores.Edges.ListByEntity(ctx, domain.EntityBelief, b.ID, domain.EdgeIncoming, &rel)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(conflicts) == 0 {
		t.Error("no contradicts edge recorded")
	}
	// 2 supports and 1 counter at the moment of the challenge transition.
	if math.Abs(b.Confidence-0.6) > 1e-3 {
		t.Errorf("confidence = %f, want 0.6", b.Confidence)
	}

	pending, err := stores.Signals.ListPending(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending signals after tick = %d, want 0", len(pending))
	}

	// A second tick over the settled state changes nothing.
	res = s.RunOnce(ctx)
	if res.SignalsProcessed != 0 {
		t.Errorf("second tick processed = %d, want 0", res.SignalsProcessed)
	}
	beliefs, _ = stores.Beliefs.List(ctx, domain.BeliefFilter{Limit: 10})
	if len(beliefs) != 1 || beliefs[0].Status != domain.BeliefChallenged {
		t.Errorf("second tick disturbed the settled belief")
	}
}

func TestRunOnce_ToleratesMissingSteps(t *testing.T) {
	s := NewScheduler(nil, nil, nil, zap.NewNop())

	res := s.RunOnce(context.Background())
	if res.StepFailures != 0 {
		t.Errorf("step failures = %d, want 0", res.StepFailures)
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, nil, nil, zap.NewNop())
	s.SetInterval(DefaultTickInterval)

	s.Start()
	s.Stop()
}
