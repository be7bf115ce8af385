package runtime

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/store"
)

func newDispatcher(t *testing.T, cfg rules.Config) (*Dispatcher, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	return NewDispatcher(stores.Signals, cfg, zap.NewNop()), stores
}

func emit(t *testing.T, stores domain.Stores, signalType string, payload map[string]any) *domain.Signal {
	t.Helper()
	sig := &domain.Signal{Type: signalType, Payload: payload}
	if err := stores.Signals.Create(context.Background(), sig); err != nil {
		t.Fatalf("Create signal: %v", err)
	}
	return sig
}

func TestDrain_ProcessesInOrder(t *testing.T) {
	d, stores := newDispatcher(t, rules.DefaultConfig())
	ctx := context.Background()

	var seen []string
	d.Register("new_note", func(_ context.Context, sig *domain.Signal) error {
		seen = append(seen, sig.PayloadString("n"))
		return nil
	})

	emit(t, stores, "new_note", map[string]any{"n": "first"})
	emit(t, stores, "new_note", map[string]any{"n": "second"})

	res, err := d.Drain(ctx, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Processed != 2 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 processed", res)
	}
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Errorf("handler order = %v, want [first second]", seen)
	}

	// A second drain finds nothing; processed signals never replay.
	res, err = d.Drain(ctx, nil)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if res.Processed != 0 || len(seen) != 2 {
		t.Errorf("replay: result = %+v, handler calls = %d", res, len(seen))
	}
}

func TestDrain_AllHandlersMustSucceed(t *testing.T) {
	d, stores := newDispatcher(t, rules.DefaultConfig())
	ctx := context.Background()

	firstCalls := 0
	d.Register("new_note", func(_ context.Context, _ *domain.Signal) error {
		firstCalls++
		return nil
	})
	d.Register("new_note", func(_ context.Context, _ *domain.Signal) error {
		return errors.New("boom")
	})

	emit(t, stores, "new_note", nil)

	res, err := d.Drain(ctx, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Processed != 0 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", res)
	}

	// The signal stays pending, so the succeeding handler runs again on the
	// next drain. Handlers must be idempotent for exactly this reason.
	if _, err := d.Drain(ctx, nil); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if firstCalls != 2 {
		t.Errorf("first handler calls = %d, want 2", firstCalls)
	}
}

func TestDrain_DeadLettersAfterMaxRetries(t *testing.T) {
	cfg := rules.DefaultConfig()
	cfg.MaxSignalRetries = 2
	d, stores := newDispatcher(t, cfg)
	ctx := context.Background()

	d.Register("new_note", func(_ context.Context, _ *domain.Signal) error {
		return errors.New("persistent failure")
	})

	sig := emit(t, stores, "new_note", nil)

	if _, err := d.Drain(ctx, nil); err != nil {
		t.Fatalf("first Drain: %v", err)
	}
	res, err := d.Drain(ctx, nil)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if res.DeadLettered != 1 {
		t.Errorf("dead-lettered = %d, want 1", res.DeadLettered)
	}

	dead, err := stores.Signals.ListDeadLettered(ctx, 10)
	if err != nil {
		t.Fatalf("ListDeadLettered: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != sig.ID {
		t.Errorf("dead letters = %+v, want the failing signal", dead)
	}

	// Dead-lettered signals never come back.
	res, _ = d.Drain(ctx, nil)
	if res.Failed != 0 || res.Processed != 0 {
		t.Errorf("post-dead-letter drain = %+v, want quiet queue", res)
	}
}

func TestDrain_CascadeSettlesInOneCall(t *testing.T) {
	d, stores := newDispatcher(t, rules.DefaultConfig())
	ctx := context.Background()

	proposed := 0
	d.Register("new_note", func(ctx context.Context, _ *domain.Signal) error {
		return stores.Signals.Create(ctx, &domain.Signal{Type: "belief_proposed"})
	})
	d.Register("belief_proposed", func(_ context.Context, _ *domain.Signal) error {
		proposed++
		return nil
	})

	emit(t, stores, "new_note", nil)

	res, err := d.Drain(ctx, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2 (cascade settled)", res.Processed)
	}
	if proposed != 1 {
		t.Errorf("cascade handler calls = %d, want 1", proposed)
	}
}

func TestDrain_UnroutedTypeIsCleared(t *testing.T) {
	d, stores := newDispatcher(t, rules.DefaultConfig())
	ctx := context.Background()

	d.Register("new_note", func(_ context.Context, _ *domain.Signal) error { return nil })
	emit(t, stores, "note_distilled", nil)

	// Drain the unrouted type explicitly; it is flagged and cleared rather
	// than left to silt up the queue.
	res, err := d.Drain(ctx, []string{"note_distilled"})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1", res.Processed)
	}

	pending, _ := stores.Signals.ListPending(ctx, nil, 10)
	if len(pending) != 0 {
		t.Errorf("pending after clear = %d, want 0", len(pending))
	}
}

func TestDrain_TypeFilter(t *testing.T) {
	d, stores := newDispatcher(t, rules.DefaultConfig())
	ctx := context.Background()

	handled := map[string]int{}
	for _, typ := range []string{"new_note", "belief_proposed"} {
		typ := typ
		d.Register(typ, func(_ context.Context, _ *domain.Signal) error {
			handled[typ]++
			return nil
		})
	}

	emit(t, stores, "new_note", nil)
	emit(t, stores, "belief_proposed", nil)

	if _, err := d.Drain(ctx, []string{"belief_proposed"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if handled["belief_proposed"] != 1 || handled["new_note"] != 0 {
		t.Errorf("handled = %v, want only belief_proposed", handled)
	}
}
