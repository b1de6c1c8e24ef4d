// Package strategycache is the strategy instance cache (C9): on each tick
// it reads durable strategy-instance definitions, reuses already-live
// instances by id, and instantiates new ones via the registry. Grounded on
// the Rust original's strategy_cache.rs.
package strategycache

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Instance pairs a strategy instance's durable definition with its live,
// constructed Strategy.
type Instance struct {
	Definition domain.StrategyInstanceDefinition
	Strategy   domain.Strategy
}

// Validator is the param-validation surface the cache relies on when
// instantiating a new strategy.
type Validator = interface {
	Validate(defs []domain.ParamDefinition, params map[string]domain.ParamValue) error
}

// Registry resolves a strategy instance definition into a live Strategy.
type Registry interface {
	Instantiate(validator Validator, def domain.StrategyInstanceDefinition) (domain.Strategy, error)
}

type State = map[domain.StrategyInstanceID]Instance

// Cache is the periodically refreshed strategy-instance snapshot.
type Cache struct {
	p *periodic.Periodic[State]
}

func New(ctx context.Context, updatePeriod time.Duration, store domain.Store, registry Registry, validator Validator, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, prev State) (State, error) {
		defs, err := store.ReadStrategyInstances(ctx)
		if err != nil {
			return prev, err
		}

		next := make(State, len(defs))
		var inserted, failed int

		for id, def := range defs {
			if existing, ok := prev[id]; ok {
				next[id] = existing
				continue
			}

			strategy, err := registry.Instantiate(validator, def)
			if err != nil {
				logger.Error("failed to instantiate strategy", "id", id, "error", err)
				failed++
				continue
			}

			next[id] = Instance{Definition: def, Strategy: strategy}
			inserted++
		}

		removed := len(prev) - (len(next) - inserted)
		logger.Info("updated strategy cache", "inserted", inserted, "removed", removed, "failed", failed, "total", len(next))

		return next, nil
	}

	init := make(State)
	return &Cache{p: periodic.New(ctx, "strategy-cache", updatePeriod, init, step, logger)}
}

// State returns the current id -> instance snapshot.
func (c *Cache) State() State {
	return c.p.State()
}

// Destroy stops the underlying periodic.
func (c *Cache) Destroy(ctx context.Context) error {
	return c.p.Destroy(ctx)
}
