package runner

import (
	"context"
	"fmt"
	"time"
)

const (
	// PollInterval is how often to re-read an inventory while a delivery is queued
	PollInterval = 100 * time.Millisecond
	// DeliveryTimeout is max time to wait for a worker to apply a delivery
	DeliveryTimeout = 30 * time.Second
)

// WaitForState polls check until it returns nil or the timeout expires. The
// last check error is returned on timeout.
func WaitForState(ctx context.Context, check func(context.Context) error, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = check(ctx); lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout after %v waiting for delivery: %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}
