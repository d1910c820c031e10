// Package retention periodically removes soft-deleted messages once
// they age past the configured period. Deleted messages keep their
// placeholder record until the sweeper purges them.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"commsdb/pkg/config"
	"commsdb/pkg/logger"
	"commsdb/pkg/store"
)

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	if _, err := cfg.ParsePeriod(); err != nil {
		logger.Error("retention_invalid_period", "period", cfg.Period, "error", err)
		return nil, err
	}

	// default daily @02:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Period, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string) {
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
			if err := RunOnce(cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single purge pass: soft-deleted messages whose
// last update is older than the period are removed in batches.
func RunOnce(cfg config.RetentionConfig) error {
	period, err := cfg.ParsePeriod()
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	total := 0
	for {
		n, err := store.PurgeDeletedMessages(cutoff, batch, cfg.DryRun)
		if err != nil {
			return err
		}
		total += n
		// dry-run never deletes, so a second pass would count the same
		// records again
		if n < batch || cfg.DryRun {
			break
		}
	}
	logger.Info("retention_run_complete", "purged", total, "dry_run", cfg.DryRun)
	logger.Audit("retention_purge", "system", "system", "purged", total, "dry_run", cfg.DryRun)
	return nil
}
