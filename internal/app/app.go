package app

import (
	"context"
	"fmt"
	"net/http"

	"commsdb/internal/retention"
	"commsdb/pkg/api/handlers"
	"commsdb/pkg/config"
	"commsdb/pkg/logger"
	"commsdb/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	srv             *http.Server
	retentionCancel context.CancelFunc
}

// New initializes resources that do not require a running context (DB,
// runtime keys, audit sink). Call Run to start the HTTP server and the
// retention scheduler and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("nil config")
	}

	runtimeCfg := &config.RuntimeConfig{
		BackendKeys:  map[string]struct{}{},
		FrontendKeys: map[string]struct{}{},
		SigningKeys:  map[string]struct{}{},
	}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Frontend {
		runtimeCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.SigningKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	// backend API keys double as signing secrets when none are set
	if len(runtimeCfg.SigningKeys) == 0 {
		for k := range runtimeCfg.BackendKeys {
			runtimeCfg.SigningKeys[k] = struct{}{}
		}
	}
	config.SetRuntime(runtimeCfg)

	if d := eff.Config.Audit.Dir; d != "" {
		if err := logger.AttachAuditFileSink(d); err != nil {
			return nil, fmt.Errorf("failed to attach audit sink: %w", err)
		}
	}

	handlers.SetMaxContentBytes(int64(eff.Config.Limits.MaxContentBytes))

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate}, nil
}

// Run starts the retention scheduler and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	a.retentionCancel = cancel

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	if a.srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer scancel()
		_ = a.srv.Shutdown(sctx)
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
}
