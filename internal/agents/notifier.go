package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

// Notifier is the terminal consumer for report-only signals. It turns them
// into log lines so challenged beliefs and distilled summaries show up in the
// operator's output without any delivery machinery behind them.
type Notifier struct {
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) HandleReport(_ context.Context, sig *domain.Signal) error {
	fields := []zap.Field{zap.String("signal_id", sig.ID.String())}
	for k, v := range sig.Payload {
		if s, ok := v.(string); ok {
			fields = append(fields, zap.String(k, s))
		}
	}
	switch sig.Type {
	case domain.SignalBeliefChallenged:
		n.logger.Info("belief challenged", fields...)
	case domain.SignalNoteDistilled:
		n.logger.Info("notes distilled", fields...)
	default:
		n.logger.Info("report signal", append(fields, zap.String("type", sig.Type))...)
	}
	return nil
}
