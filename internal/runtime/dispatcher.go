package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
)

// Handler consumes one signal. Handlers must be idempotent: a signal that
// fails part way is re-attempted in full on the next drain.
type Handler func(ctx context.Context, sig *domain.Signal) error

// maxDrainPasses bounds the settle loop so a handler that keeps emitting new
// signals cannot spin a drain forever.
const maxDrainPasses = 32

type DrainResult struct {
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
}

func (r *DrainResult) add(o DrainResult) {
	r.Processed += o.Processed
	r.Failed += o.Failed
	r.DeadLettered += o.DeadLettered
}

// Dispatcher routes queued signals to their registered handlers in creation
// order. A signal is marked processed only after every handler for its type
// has succeeded.
type Dispatcher struct {
	signals    domain.SignalStore
	handlers   map[string][]Handler
	order      []string
	batchSize  int
	maxRetries int
	logger     *zap.Logger
}

func NewDispatcher(ss domain.SignalStore, cfg rules.Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		signals:    ss,
		handlers:   make(map[string][]Handler),
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxSignalRetries,
		logger:     logger,
	}
}

// Register appends a handler for a signal type. Handlers for the same type
// run in registration order.
func (d *Dispatcher) Register(signalType string, h Handler) {
	if _, seen := d.handlers[signalType]; !seen {
		d.order = append(d.order, signalType)
	}
	d.handlers[signalType] = append(d.handlers[signalType], h)
}

// RoutedTypes returns every signal type with at least one handler, in
// registration order.
func (d *Dispatcher) RoutedTypes() []string {
	return append([]string(nil), d.order...)
}

// Drain processes pending signals of the given types (all routed types when
// nil) until the queue is quiet, so cascades emitted by handlers settle
// within one call. Signals that failed earlier in the same drain are not
// retried again until the next drain.
func (d *Dispatcher) Drain(ctx context.Context, types []string) (*DrainResult, error) {
	if types == nil {
		types = d.RoutedTypes()
	}
	total := &DrainResult{}
	attempted := make(map[uuid.UUID]bool)

	for pass := 0; pass < maxDrainPasses; pass++ {
		pending, err := d.signals.ListPending(ctx, types, d.batchSize)
		if err != nil {
			return total, err
		}
		res := DrainResult{}
		for i := range pending {
			sig := &pending[i]
			if attempted[sig.ID] {
				continue
			}
			attempted[sig.ID] = true
			d.process(ctx, sig, &res)

			if err := ctx.Err(); err != nil {
				total.add(res)
				return total, err
			}
		}
		total.add(res)
		if res.Processed == 0 {
			break
		}
	}
	return total, nil
}

func (d *Dispatcher) process(ctx context.Context, sig *domain.Signal, res *DrainResult) {
	handlers := d.handlers[sig.Type]
	if len(handlers) == 0 {
		// A queued type nothing consumes is a wiring bug; flag it and clear
		// the signal so the queue does not silt up.
		d.logger.Warn("signal type has no registered handler",
			zap.String("type", sig.Type), zap.String("signal_id", sig.ID.String()))
		if err := d.signals.MarkProcessed(ctx, sig.ID, time.Now().UTC()); err != nil {
			d.logger.Error("mark processed failed", zap.String("signal_id", sig.ID.String()), zap.Error(err))
		}
		res.Processed++
		return
	}

	attempts, err := d.signals.IncrementAttempts(ctx, sig.ID)
	if err != nil {
		d.logger.Error("increment attempts failed", zap.String("signal_id", sig.ID.String()), zap.Error(err))
		res.Failed++
		return
	}

	for _, h := range handlers {
		if err := h(ctx, sig); err != nil {
			d.logger.Error("signal handler failed",
				zap.String("type", sig.Type),
				zap.String("signal_id", sig.ID.String()),
				zap.Int("attempts", attempts),
				zap.Error(err))

			if attempts >= d.maxRetries {
				if dlErr := d.signals.MarkDeadLettered(ctx, sig.ID, time.Now().UTC()); dlErr != nil {
					d.logger.Error("dead letter failed", zap.String("signal_id", sig.ID.String()), zap.Error(dlErr))
				} else {
					d.logger.Warn("signal dead-lettered",
						zap.String("type", sig.Type),
						zap.String("signal_id", sig.ID.String()),
						zap.Int("attempts", attempts))
					res.DeadLettered++
				}
			}
			res.Failed++
			return
		}
	}

	if err := d.signals.MarkProcessed(ctx, sig.ID, time.Now().UTC()); err != nil {
		d.logger.Error("mark processed failed", zap.String("signal_id", sig.ID.String()), zap.Error(err))
		res.Failed++
		return
	}
	res.Processed++
}
