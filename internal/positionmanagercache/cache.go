// Package positionmanagercache is the position-manager instance cache,
// symmetric to internal/strategycache, grounded on the Rust original's
// position_manager_cache.rs.
package positionmanagercache

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Instance pairs a PM instance's durable definition with its live,
// constructed PositionManager.
type Instance struct {
	Definition domain.PositionManagerInstanceDefinition
	PM         domain.PositionManager
}

type Validator = interface {
	Validate(defs []domain.ParamDefinition, params map[string]domain.ParamValue) error
}

// Registry resolves a PM instance definition into a live PositionManager.
type Registry interface {
	Instantiate(validator Validator, def domain.PositionManagerInstanceDefinition) (domain.PositionManager, error)
}

type State = map[domain.PositionManagerInstanceID]Instance

// Cache is the periodically refreshed PM-instance snapshot.
type Cache struct {
	p *periodic.Periodic[State]
}

func New(ctx context.Context, updatePeriod time.Duration, store domain.Store, registry Registry, validator Validator, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, prev State) (State, error) {
		defs, err := store.ReadPositionManagerInstances(ctx)
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

			pm, err := registry.Instantiate(validator, def)
			if err != nil {
				logger.Error("failed to instantiate position manager", "id", id, "error", err)
				failed++
				continue
			}

			next[id] = Instance{Definition: def, PM: pm}
			inserted++
		}

		removed := len(prev) - (len(next) - inserted)
		logger.Info("updated position manager cache", "inserted", inserted, "removed", removed, "failed", failed, "total", len(next))

		return next, nil
	}

	init := make(State)
	return &Cache{p: periodic.New(ctx, "position-manager-cache", updatePeriod, init, step, logger)}
}

// State returns the current id -> instance snapshot.
func (c *Cache) State() State {
	return c.p.State()
}

// Destroy stops the underlying periodic.
func (c *Cache) Destroy(ctx context.Context) error {
	return c.p.Destroy(ctx)
}
