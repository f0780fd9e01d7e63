package ledger

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs SweepMaturations every interval until ctx is cancelled.
// It is the in-process alternative to the asynq periodic sweep task.
func StartSweeper(ctx context.Context, svc *Service, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("maturation sweeper started", "module", "ledger", "interval", interval.String())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("maturation sweeper stopped", "module", "ledger")
				return
			case <-ticker.C:
				if _, err := svc.SweepMaturations(ctx); err != nil && ctx.Err() == nil {
					slog.Error("maturation sweep failed", "module", "ledger", "operation", "sweep_maturations", "error", err)
				}
			}
		}
	}()
	return done
}
