package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

var ErrUnknownSignalType = errors.New("unknown signal type")

var knownSignalTypes = map[string]struct{}{
	domain.SignalNewNote:            {},
	domain.SignalBeliefProposed:     {},
	domain.SignalBeliefChallenged:   {},
	domain.SignalBeliefConfirmed:    {},
	domain.SignalBeliefRefuted:      {},
	domain.SignalNoteDistilled:      {},
	domain.SignalSourceTrustUpdated: {},
}

type SignalService struct {
	signals domain.SignalStore
	logger  *zap.Logger
}

func NewSignalService(ss domain.SignalStore, logger *zap.Logger) *SignalService {
	return &SignalService{signals: ss, logger: logger}
}

// Emit queues a signal for the next dispatch pass. Unknown types are rejected
// here rather than rotting unprocessed in the queue.
func (s *SignalService) Emit(ctx context.Context, sig *domain.Signal) error {
	if _, ok := knownSignalTypes[sig.Type]; !ok {
		return ErrUnknownSignalType
	}
	if sig.Payload == nil {
		sig.Payload = map[string]any{}
	}
	if err := s.signals.Create(ctx, sig); err != nil {
		return err
	}
	s.logger.Debug("signal emitted", zap.String("type", sig.Type), zap.String("signal_id", sig.ID.String()))
	return nil
}

func (s *SignalService) Pending(ctx context.Context, types []string, limit int) ([]domain.Signal, error) {
	return s.signals.ListPending(ctx, types, limit)
}

func (s *SignalService) DeadLettered(ctx context.Context, limit int) ([]domain.Signal, error) {
	return s.signals.ListDeadLettered(ctx, limit)
}
