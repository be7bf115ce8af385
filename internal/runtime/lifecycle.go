package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
)

type LifecycleResult struct {
	Recomputed int `json:"recomputed"`
	Activated  int `json:"activated"`
	Deprecated int `json:"deprecated"`
	Failed     int `json:"failed"`
}

// Lifecycle is the deterministic rule pass of a tick: refresh every live
// belief's confidence from evidence and decay, activate proposed beliefs that
// cleared the activation threshold, and retire beliefs that fell below the
// deprecation threshold.
type Lifecycle struct {
	beliefs domain.BeliefStore
	svc     *service.BeliefService
	cfg     rules.Config
	logger  *zap.Logger
}

func NewLifecycle(bs domain.BeliefStore, svc *service.BeliefService, cfg rules.Config, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{beliefs: bs, svc: svc, cfg: cfg, logger: logger}
}

func (l *Lifecycle) Run(ctx context.Context) *LifecycleResult {
	res := &LifecycleResult{}
	now := time.Now().UTC()

	for _, status := range []domain.BeliefStatus{domain.BeliefProposed, domain.BeliefActive, domain.BeliefChallenged} {
		ids, err := l.collectIDs(ctx, status)
		if err != nil {
			l.logger.Error("lifecycle listing failed", zap.String("status", string(status)), zap.Error(err))
			res.Failed++
			continue
		}
		for _, id := range ids {
			if err := l.sweepOne(ctx, id, status, now, res); err != nil {
				l.logger.Error("lifecycle sweep failed for belief",
					zap.String("belief_id", id.String()), zap.Error(err))
				res.Failed++
			}
		}
	}
	return res
}

// collectIDs snapshots the ids in a status before any of them transition, so
// offset pagination is not confused by rows leaving the filtered set.
func (l *Lifecycle) collectIDs(ctx context.Context, status domain.BeliefStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for offset := 0; ; offset += l.cfg.BatchSize {
		batch, err := l.beliefs.List(ctx, domain.BeliefFilter{
			Status: &status,
			Limit:  l.cfg.BatchSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for _, b := range batch {
			ids = append(ids, b.ID)
		}
		if len(batch) < l.cfg.BatchSize {
			return ids, nil
		}
	}
}

func (l *Lifecycle) sweepOne(ctx context.Context, id uuid.UUID, status domain.BeliefStatus, now time.Time, res *LifecycleResult) error {
	b, err := l.beliefs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != status {
		// Something else moved it since the snapshot; leave it be.
		return nil
	}

	confidence, counts, err := l.svc.Recompute(ctx, b, now)
	if err != nil {
		return err
	}
	res.Recomputed++

	switch status {
	case domain.BeliefProposed:
		// Activation needs both the threshold and a clean slate: a standing
		// contradicts edge keeps the belief proposed until it is resolved.
		if confidence >= l.cfg.ActivationThreshold && counts.Counters == 0 {
			if _, err := l.svc.Transition(ctx, id, domain.BeliefActive, "lifecycle"); err != nil {
				return err
			}
			res.Activated++
		}
	case domain.BeliefActive, domain.BeliefChallenged:
		if confidence < l.cfg.DeprecationThreshold {
			if _, err := l.svc.TransitionTo(ctx, id, domain.BeliefDeprecated, "lifecycle"); err != nil {
				return err
			}
			res.Deprecated++
		}
	}
	return nil
}
