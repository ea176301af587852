package app

import (
	"context"
	"fmt"
	"net/http"

	"chatfront/internal/retention"
	"chatfront/pkg/api/handlers"
	"chatfront/pkg/config"
	"chatfront/pkg/conversation"
	"chatfront/pkg/identity"
	"chatfront/pkg/orchestrator"
	"chatfront/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	deps handlers.Deps

	srv             *http.Server
	cancelRetention context.CancelFunc
}

// New initializes resources that do not require a running context: config
// validation, the viewer-context store and the orchestration components.
// It does not start the HTTP server; call Run to start it and block until
// shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open context store at %s: %w", eff.DBPath, err)
	}

	gateway := identity.New(eff.Config.Identity.URL, eff.Config.Identity.AnonKey)
	client := conversation.New(eff.Config.Backend)
	orch := orchestrator.New(gateway, client)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		deps: handlers.Deps{
			Orch:     orch,
			Registry: orchestrator.NewRegistry(),
			App:      eff.Config.App,
		},
	}
	return a, nil
}

// Run starts the retention sweeper (if enabled) and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	a.cancelRetention = cancel

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stop()
		return nil
	case err := <-errCh:
		a.stop()
		return err
	}
}

// stop releases background resources. The store is closed by main after
// Run returns so late handlers can still persist.
func (a *App) stop() {
	if a.cancelRetention != nil {
		a.cancelRetention()
	}
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = a.srv.Shutdown(sctx)
	}
}
