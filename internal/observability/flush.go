package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry syncs buffered logs before exit. Metrics are pull-based and need no flush.
// Sync on a terminal stderr returns ENOTTY/EINVAL, which is not a real failure.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
