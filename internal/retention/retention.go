package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatfront/pkg/config"
	"chatfront/pkg/logger"
	"chatfront/pkg/store"
)

const defaultMaxIdle = 72 * time.Hour

// Start starts the idle-context sweeper if enabled and returns a cancel
// func. The sweeper removes anonymous viewer contexts that have been idle
// past retention.max_idle; signed-in contexts are never touched.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	maxIdle := defaultMaxIdle
	if cfg.MaxIdle != "" {
		d, err := time.ParseDuration(cfg.MaxIdle)
		if err != nil {
			return nil, fmt.Errorf("invalid retention max_idle %q: %w", cfg.MaxIdle, err)
		}
		maxIdle = d
	}

	logger.Info("retention_enabled", "cron", cronExpr, "max_idle", maxIdle.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, maxIdle)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it,
// sweeping once per tick.
func runScheduler(ctx context.Context, cronExpr string, maxIdle time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			RunOnce(maxIdle)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep. Exposed so admin triggers and tests can
// invoke it directly.
func RunOnce(maxIdle time.Duration) {
	n, err := store.SweepIdle(maxIdle)
	if err != nil {
		logger.Error("retention_sweep_failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("retention_swept", "removed", n)
	}
}
