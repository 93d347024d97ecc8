package database

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/retry"
)

// waitReady pings a backing service until it answers, the retries run out,
// or ping returns an error retry.IsRetryable rejects.
func waitReady(ctx context.Context, service string, ping func(context.Context) error, logger *zap.Logger) error {
	return retry.Until(ctx, retry.DefaultConfig(), func(attempt int) error {
		err := ping(ctx)
		if err != nil {
			logger.Warn("Backing service not ready",
				zap.String("service", service),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
}
