// Package accountscache exposes a periodically refreshed snapshot of
// brokerage accounts, grounded on the Rust original's accounts_cache.rs.
package accountscache

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Cache is a periodically refreshed account id -> account map. On a failed
// refresh the previous snapshot is retained.
type Cache struct {
	p *periodic.Periodic[map[domain.AccountID]domain.Account]
}

func New(ctx context.Context, updatePeriod time.Duration, brokerage domain.Brokerage, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, prev map[domain.AccountID]domain.Account) (map[domain.AccountID]domain.Account, error) {
		accounts, err := brokerage.ListAccounts(ctx)
		if err != nil {
			logger.Error("failed to update accounts-cache", "error", err)
			return prev, nil
		}

		next := make(map[domain.AccountID]domain.Account, len(accounts))
		for _, acc := range accounts {
			next[acc.ID] = acc
		}
		return next, nil
	}

	init := make(map[domain.AccountID]domain.Account)
	return &Cache{p: periodic.New(ctx, "accounts-cache", updatePeriod, init, step, logger)}
}

// State returns the current account snapshot.
func (c *Cache) State() map[domain.AccountID]domain.Account {
	return c.p.State()
}

// Destroy stops the underlying periodic.
func (c *Cache) Destroy(ctx context.Context) error {
	return c.p.Destroy(ctx)
}
