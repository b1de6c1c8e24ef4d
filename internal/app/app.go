// Package app is the top-level application lifecycle: it wires every
// component (C1-C12 plus the ambient persistence/brokerage/archive
// components) into the container runtime (C2) and runs until its context
// is cancelled. Grounded on the teacher's internal/app/{app.go,wire.go}
// lifecycle shape, generalized from its mode-switch dispatch (trade/
// arbitrage/monitor/scrape/full) to candlerunner's single always-on
// component graph.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fedormatantsev/candlerunner/internal/config"
	"github.com/fedormatantsev/candlerunner/internal/container"
)

// App is the root application object: it owns the configuration and
// logger; Run builds the component container and destroys it on return.
type App struct {
	cfg    config.Provider
	logger *slog.Logger
}

// New creates an App from the given root configuration and logger.
func New(cfg config.Provider, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires every component, blocks until ctx is cancelled, and then tears
// the container down in reverse-dependency order.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application")

	b := container.NewBuilder()
	if err := Wire(b); err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}

	c, err := b.Build(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: build: %w", err)
	}
	defer c.Destroy(context.Background())

	a.logger.InfoContext(ctx, "application running")
	<-ctx.Done()

	a.logger.InfoContext(ctx, "shutting down application")
	return ctx.Err()
}
