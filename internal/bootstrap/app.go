// Package bootstrap wires BEACON's process lifecycle around the core
// façade. BEACON exposes no transport of its own (spec §1: HTTP/voice/chat
// routing is an out-of-scope external collaborator) so there is no server
// to listen on here; App only keeps the process-wide resources (the pgx
// pool, the valkey client) alive until told to stop.
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/moe-gov/beacon/internal/core"
	"github.com/moe-gov/beacon/internal/infra/config"
)

// App is the runnable process: the wired core plus whatever long-lived
// handles its collaborators opened (connection pools, cache clients).
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	Core   *core.Core
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, c *core.Core) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), Core: c}
}

// Run blocks until ctx is canceled. An out-of-scope router embeds this
// process and calls into a.Core directly; there is nothing else for the
// process to do but stay alive and log the shutdown signal when it comes.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("beacon core ready")
	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return nil
}
