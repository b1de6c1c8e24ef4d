// Package instrumentcache exposes a read-through snapshot of persisted
// instruments for fast figi lookups, grounded on the Rust original's
// instrument_cache.rs.
package instrumentcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/instrumentsync"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Cache is a periodically refreshed figi -> instrument map.
type Cache struct {
	p *periodic.Periodic[map[domain.Figi]domain.Instrument]
}

// New depends on an already-running instrumentsync.Sync purely to sequence
// initialization: the cache must not be empty on a cold start against a
// fresh store (same idiom as the Rust original's dependency on
// InstrumentSync).
func New(ctx context.Context, updatePeriod time.Duration, store domain.Store, _ *instrumentsync.Sync, logger *slog.Logger) *Cache {
	step := func(ctx context.Context, prev map[domain.Figi]domain.Instrument) (map[domain.Figi]domain.Instrument, error) {
		instruments, err := store.ReadInstruments(ctx)
		if err != nil {
			return prev, err
		}

		next := make(map[domain.Figi]domain.Instrument, len(instruments))
		for _, inst := range instruments {
			next[inst.Figi] = inst
		}
		return next, nil
	}

	init := make(map[domain.Figi]domain.Instrument)
	return &Cache{p: periodic.New(ctx, "instrument-cache", updatePeriod, init, step, logger)}
}

// State returns the current figi -> instrument snapshot.
func (c *Cache) State() map[domain.Figi]domain.Instrument {
	return c.p.State()
}

// Destroy stops the underlying periodic.
func (c *Cache) Destroy(ctx context.Context) error {
	return c.p.Destroy(ctx)
}
