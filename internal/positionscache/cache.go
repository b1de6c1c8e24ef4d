// Package positionscache exposes a periodically refreshed snapshot of
// per-account positions, grounded on the Rust original's
// positions_cache.rs.
package positionscache

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/accountscache"
	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Cache is a periodically refreshed account id -> positions map. A failed
// per-account fetch retains that account's previous snapshot (or an empty
// one if none existed) while other accounts still refresh.
type Cache struct {
	p *periodic.Periodic[map[domain.AccountID]domain.AccountPositions]
}

func New(ctx context.Context, updatePeriod time.Duration, brokerage domain.Brokerage, accounts *accountscache.Cache, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, prev map[domain.AccountID]domain.AccountPositions) (map[domain.AccountID]domain.AccountPositions, error) {
		next := make(map[domain.AccountID]domain.AccountPositions)

		for id := range accounts.State() {
			positions, err := brokerage.ListPositions(ctx, id)
			if err != nil {
				logger.Error("failed to retrieve positions for account", "account", id, "error", err)
				if prevPositions, ok := prev[id]; ok {
					next[id] = prevPositions
				} else {
					next[id] = domain.AccountPositions{}
				}
				continue
			}
			next[id] = positions
		}

		return next, nil
	}

	init := make(map[domain.AccountID]domain.AccountPositions)
	return &Cache{p: periodic.New(ctx, "positions-cache", updatePeriod, init, step, logger)}
}

// State returns the current positions snapshot.
func (c *Cache) State() map[domain.AccountID]domain.AccountPositions {
	return c.p.State()
}

// Destroy stops the underlying periodic.
func (c *Cache) Destroy(ctx context.Context) error {
	return c.p.Destroy(ctx)
}
