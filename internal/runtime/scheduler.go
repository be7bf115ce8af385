package runtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

const (
	DefaultTickInterval = 5 * time.Minute
	tickTimeout         = 5 * time.Minute
)

// CuratorRunner is the maintenance pass of a tick.
type CuratorRunner interface {
	Run(ctx context.Context) (archived, deduplicated, distilled int)
}

// Counter drains an agent-side tally accumulated during signal handling.
type Counter interface {
	Take() int
}

type TickResult struct {
	Archived     int `json:"archived"`
	Deduplicated int `json:"deduplicated"`
	Distilled    int `json:"distilled"`

	Recomputed int `json:"recomputed"`
	Activated  int `json:"activated"`
	Deprecated int `json:"deprecated"`

	Synthesized int `json:"synthesized"`
	Challenged  int `json:"challenged"`

	SignalsProcessed    int `json:"signals_processed"`
	SignalsFailed       int `json:"signals_failed"`
	SignalsDeadLettered int `json:"signals_dead_lettered"`

	StepFailures int           `json:"step_failures"`
	Duration     time.Duration `json:"duration"`
}

// Scheduler runs the belief-maintenance tick: curator, lifecycle rule pass,
// then signal drains. A failed step is counted and never blocks the steps
// after it. Ticks are serialized; an on-demand RunOnce during a background
// tick waits its turn.
type Scheduler struct {
	curator     CuratorRunner
	lifecycle   *Lifecycle
	dispatcher  *Dispatcher
	synthesized Counter
	challenged  Counter
	logger      *zap.Logger

	interval time.Duration
	tickMu   sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(curator CuratorRunner, lifecycle *Lifecycle, dispatcher *Dispatcher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		curator:    curator,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   DefaultTickInterval,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// SetAgentCounters wires the per-tick synthesized/challenged tallies.
func (s *Scheduler) SetAgentCounters(synthesized, challenged Counter) {
	s.synthesized = synthesized
	s.challenged = challenged
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("tick scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
				s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("tick scheduler stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce executes one full tick and returns its counts.
func (s *Scheduler) RunOnce(ctx context.Context) *TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	started := time.Now()
	res := &TickResult{}

	if s.curator != nil {
		res.Archived, res.Deduplicated, res.Distilled = s.curator.Run(ctx)
	}

	if s.lifecycle != nil {
		lres := s.lifecycle.Run(ctx)
		res.Recomputed = lres.Recomputed
		res.Activated = lres.Activated
		res.Deprecated = lres.Deprecated
		res.StepFailures += lres.Failed
	}

	// Work the challenger's backlog first so verdicts on already-proposed
	// beliefs land before this tick's synthesis adds more, then drain
	// everything until the cascades settle.
	if s.dispatcher != nil {
		for _, types := range [][]string{{domain.SignalBeliefProposed}, nil} {
			dres, err := s.dispatcher.Drain(ctx, types)
			if err != nil {
				s.logger.Error("signal drain failed", zap.Error(err))
				res.StepFailures++
			}
			if dres != nil {
				res.SignalsProcessed += dres.Processed
				res.SignalsFailed += dres.Failed
				res.SignalsDeadLettered += dres.DeadLettered
			}
		}
	}

	if s.synthesized != nil {
		res.Synthesized = s.synthesized.Take()
	}
	if s.challenged != nil {
		res.Challenged = s.challenged.Take()
	}

	res.Duration = time.Since(started)
	s.logger.Info("tick completed",
		zap.Int("archived", res.Archived),
		zap.Int("deduplicated", res.Deduplicated),
		zap.Int("distilled", res.Distilled),
		zap.Int("activated", res.Activated),
		zap.Int("deprecated", res.Deprecated),
		zap.Int("synthesized", res.Synthesized),
		zap.Int("challenged", res.Challenged),
		zap.Int("signals_processed", res.SignalsProcessed),
		zap.Int("signals_failed", res.SignalsFailed),
		zap.Int("step_failures", res.StepFailures),
		zap.Duration("duration", res.Duration))
	return res
}
