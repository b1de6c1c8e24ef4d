// Package marketdatasync is the market-data sync periodic (C7): it derives
// required (figi, range) coverage from the live strategy cache, diffs that
// against persisted per-day availability, and drives brokerage fetches for
// whatever is missing. Grounded on the Rust original's
// market_data_sync/market_data_sync.rs.
package marketdatasync

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
	"github.com/fedormatantsev/candlerunner/internal/requirements"
	"github.com/fedormatantsev/candlerunner/internal/strategycache"
)

// StrategyCache is the subset of strategycache.Cache's State() the sync
// consumes: each live strategy contributes its data requirements and its
// configured time window.
type StrategyCache interface {
	// Snapshot returns, for every live strategy instance, its required
	// figis and its [time_from, time_to) window.
	Snapshot() []StrategyRequirement
}

// StrategyRequirement is one strategy instance's data-coverage demand.
type StrategyRequirement struct {
	Figis    []domain.Figi
	TimeFrom time.Time
	TimeTo   *time.Time
}

// LiveStrategyCache adapts a *strategycache.Cache into StrategyCache,
// pairing each live strategy instance's DataRequirements() with its
// configured instance window.
type LiveStrategyCache struct {
	Cache *strategycache.Cache
}

func (l LiveStrategyCache) Snapshot() []StrategyRequirement {
	state := l.Cache.State()
	out := make([]StrategyRequirement, 0, len(state))
	for _, inst := range state {
		out = append(out, StrategyRequirement{
			Figis:    inst.Strategy.DataRequirements(),
			TimeFrom: inst.Definition.TimeFrom,
			TimeTo:   inst.Definition.TimeTo,
		})
	}
	return out
}

// Sync wraps the market-data-sync periodic. Its state carries nothing
// between ticks (every step reads requirements and availability fresh), so
// it rides the C3 periodic runtime purely for its scheduling and
// ForceUpdate-coalescing machinery.
type Sync struct {
	p *periodic.Periodic[struct{}]
}

// cursor is one fetch target: figi's data for one calendar day, starting at
// From (spec.md §4.6 step 5).
type cursor struct {
	figi domain.Figi
	day  time.Time
	from time.Time
}

// New starts the periodic on updatePeriod. maxChunksPerInstrument bounds how
// many cursors are fetched per figi in a single step (spec.md §4.6 step 5).
func New(ctx context.Context, updatePeriod time.Duration, maxChunksPerInstrument int, strategies StrategyCache, brokerage domain.Brokerage, store domain.Store, now func() time.Time, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}

	tick := func(ctx context.Context, prev struct{}) (struct{}, error) {
		return prev, step(ctx, maxChunksPerInstrument, strategies, brokerage, store, now, logger)
	}

	return &Sync{p: periodic.New(ctx, "market-data-sync", updatePeriod, struct{}{}, tick, logger)}
}

// ForceUpdate satisfies brokerclient.NewDataNotifier: the streaming hint
// calls this to react to a brokerage "new data available" push without
// waiting for the next tick.
func (s *Sync) ForceUpdate() {
	_ = s.p.ForceUpdate(context.Background(), nil)
}

// Destroy stops the sync loop and waits for it to exit.
func (s *Sync) Destroy(ctx context.Context) error {
	return s.p.Destroy(ctx)
}

func step(ctx context.Context, maxChunksPerInstrument int, strategies StrategyCache, brokerage domain.Brokerage, store domain.Store, now func() time.Time, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	collector := requirements.New(now)

	for _, req := range strategies.Snapshot() {
		for _, figi := range req.Figis {
			collector.Push(figi, req.TimeFrom, req.TimeTo)
		}
	}

	dataRanges := collector.Finalize()

	for figi, ranges := range dataRanges {
		days := daysInRanges(ranges)

		cursors := make([]cursor, 0, len(days))
		for _, day := range days {
			avail, err := store.ReadCandleDataAvailability(ctx, figi, day)
			if err != nil {
				logger.Error("failed to read availability", "figi", figi, "day", day, "error", err)
				continue
			}

			switch avail.Kind {
			case domain.Available:
				continue
			case domain.Unavailable:
				cursors = append(cursors, cursor{figi: figi, day: day, from: day})
			case domain.PartiallyAvailable:
				cursors = append(cursors, cursor{figi: figi, day: day, from: avail.AvailableUpTo})
			}
		}

		if len(cursors) > maxChunksPerInstrument {
			cursors = cursors[:maxChunksPerInstrument]
		}

		for _, c := range cursors {
			if err := fetchCursor(ctx, c, brokerage, store, now, logger); err != nil {
				logger.Error("failed to fetch candles", "figi", c.figi, "day", c.day, "error", err)
			}
		}
	}

	return nil
}

func fetchCursor(ctx context.Context, c cursor, brokerage domain.Brokerage, store domain.Store, now func() time.Time, logger *slog.Logger) error {
	endOfDay := c.day.AddDate(0, 0, 1)

	candles, err := brokerage.GetCandles(ctx, c.figi, c.from, endOfDay)
	if err != nil {
		return err
	}

	if err := store.WriteCandles(ctx, c.figi, candles); err != nil {
		return err
	}

	avail := postFetchAvailability(c, candles, now())
	return store.WriteCandleDataAvailability(ctx, c.figi, c.day, avail)
}

// postFetchAvailability implements spec.md §4.6 step 5's post-fetch rule:
// Available if the day is strictly before today, else PartiallyAvailable up
// to the latest fetched candle (or the cursor if none were returned).
func postFetchAvailability(c cursor, candles domain.CandleTimeline, now time.Time) domain.DataAvailability {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if c.day.Before(today) {
		return domain.DataAvailability{Kind: domain.Available}
	}

	latest := c.from
	for ts := range candles {
		if ts.After(latest) {
			latest = ts
		}
	}
	return domain.DataAvailability{Kind: domain.PartiallyAvailable, AvailableUpTo: latest}
}

// daysInRanges expands merged ranges into the set of calendar days they
// touch (spec.md §4.6 step 4: "walk each day in each range").
func daysInRanges(ranges []requirements.Range) []time.Time {
	seen := make(map[time.Time]bool)
	var days []time.Time

	for _, r := range ranges {
		from := dayStart(r.From)
		to := dayStart(r.To)
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if !seen[d] {
				seen[d] = true
				days = append(days, d)
			}
		}
	}
	return days
}

func dayStart(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
