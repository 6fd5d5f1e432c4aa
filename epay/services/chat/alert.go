package chat

import (
	"context"
	"errors"

	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"go.uber.org/zap"
)

// Alert is a user-facing failure notice.
type Alert struct {
	Op      string `json:"op"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Alerter surfaces failures to the agent. Implementations must not block.
type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

type AlerterFunc func(ctx context.Context, a Alert)

func (f AlerterFunc) Alert(ctx context.Context, a Alert) { f(ctx, a) }

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, Alert) {}

// raise logs, counts and forwards a failure. Every failed operation goes
// through here exactly once.
func raise(ctx context.Context, alerter Alerter, op, message string, err error) {
	kind := "store"
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		kind = "upload"
	}
	metrics.ChatFailures.WithLabelValues(op, kind).Inc()
	logging.ErrorLogger.Error(message, zap.String("op", op), zap.Error(err))

	if alerter == nil {
		return
	}
	alerter.Alert(ctx, Alert{Op: op, Message: message, Err: err})
}
