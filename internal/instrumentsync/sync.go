// Package instrumentsync periodically pulls the brokerage's instrument list
// and persists it, feeding the read-side instrumentcache. Grounded on the
// Rust original's instrument_sync.rs, generalized to persist instead of only
// logging (SPEC_FULL.md supplement) so instrumentcache has something to
// read on a cold start.
package instrumentsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
)

// Sync wraps the instrument-fetch periodic.
type Sync struct {
	p *periodic.Periodic[struct{}]
}

// New starts the periodic immediately, fetching once synchronously before
// returning (matching C3's build-time contract).
func New(ctx context.Context, updatePeriod time.Duration, brokerage domain.Brokerage, store domain.Store, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, _ struct{}) (struct{}, error) {
		instruments, err := brokerage.ListInstruments(ctx)
		if err != nil {
			logger.Error("failed to fetch instruments", "error", err)
			return struct{}{}, nil
		}

		if err := store.WriteInstruments(ctx, instruments); err != nil {
			logger.Error("failed to persist instruments", "error", err)
		}

		return struct{}{}, nil
	}

	return &Sync{p: periodic.New(ctx, "instrument-sync", updatePeriod, struct{}{}, step, logger)}
}

// Destroy stops the underlying periodic.
func (s *Sync) Destroy(ctx context.Context) error {
	return s.p.Destroy(ctx)
}
