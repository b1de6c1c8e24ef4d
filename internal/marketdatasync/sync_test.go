package marketdatasync

import (
	"context"
	"testing"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

type fakeStrategies struct {
	reqs []StrategyRequirement
}

func (f fakeStrategies) Snapshot() []StrategyRequirement { return f.reqs }

type fakeBrokerage struct {
	domain.Brokerage
	calls   []fetchCall
	candles map[time.Time]domain.Candle
}

type fetchCall struct {
	figi     domain.Figi
	from, to time.Time
}

func (f *fakeBrokerage) GetCandles(ctx context.Context, figi domain.Figi, from, to time.Time) (domain.CandleTimeline, error) {
	f.calls = append(f.calls, fetchCall{figi: figi, from: from, to: to})
	out := make(domain.CandleTimeline)
	for ts, c := range f.candles {
		if !ts.Before(from) && ts.Before(to) {
			out[ts] = c
		}
	}
	return out, nil
}

type fakeStore struct {
	domain.Store
	availability map[domain.Figi]map[time.Time]domain.DataAvailability
	written      map[domain.Figi]map[time.Time]domain.DataAvailability
	candles      map[domain.Figi]domain.CandleTimeline
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		availability: make(map[domain.Figi]map[time.Time]domain.DataAvailability),
		written:      make(map[domain.Figi]map[time.Time]domain.DataAvailability),
		candles:      make(map[domain.Figi]domain.CandleTimeline),
	}
}

func (f *fakeStore) ReadCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time) (domain.DataAvailability, error) {
	if avail, ok := f.availability[figi][day]; ok {
		return avail, nil
	}
	return domain.DataAvailability{Kind: domain.Unavailable}, nil
}

func (f *fakeStore) WriteCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time, avail domain.DataAvailability) error {
	if f.written[figi] == nil {
		f.written[figi] = make(map[time.Time]domain.DataAvailability)
	}
	f.written[figi][day] = avail
	return nil
}

func (f *fakeStore) WriteCandles(ctx context.Context, figi domain.Figi, timeline domain.CandleTimeline) error {
	if f.candles[figi] == nil {
		f.candles[figi] = make(domain.CandleTimeline)
	}
	for ts, c := range timeline {
		f.candles[figi][ts] = c
	}
	return nil
}

var testDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestStep_FetchesUnavailableDay(t *testing.T) {
	figi := domain.Figi("BBG1")
	strategies := fakeStrategies{reqs: []StrategyRequirement{
		{Figis: []domain.Figi{figi}, TimeFrom: testDay, TimeTo: ptr(testDay.Add(2 * time.Hour))},
	}}

	brokerage := &fakeBrokerage{candles: map[time.Time]domain.Candle{
		testDay.Add(time.Minute): {Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}}
	store := newFakeStore()

	now := func() time.Time { return testDay.Add(48 * time.Hour) } // well past "today"

	err := step(context.Background(), 10, strategies, brokerage, store, now, nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}

	if len(brokerage.calls) != 1 {
		t.Fatalf("expected exactly one fetch call, got %d", len(brokerage.calls))
	}
	if brokerage.calls[0].figi != figi {
		t.Fatalf("unexpected figi fetched: %v", brokerage.calls[0].figi)
	}

	avail := store.written[figi][testDay]
	if avail.Kind != domain.Available {
		t.Fatalf("expected day strictly before 'today' to become Available, got %v", avail.Kind)
	}
}

func TestStep_SkipsAvailableDay(t *testing.T) {
	figi := domain.Figi("BBG1")
	strategies := fakeStrategies{reqs: []StrategyRequirement{
		{Figis: []domain.Figi{figi}, TimeFrom: testDay, TimeTo: ptr(testDay.Add(time.Hour))},
	}}

	brokerage := &fakeBrokerage{}
	store := newFakeStore()
	store.availability[figi] = map[time.Time]domain.DataAvailability{testDay: {Kind: domain.Available}}

	now := func() time.Time { return testDay.Add(48 * time.Hour) }

	if err := step(context.Background(), 10, strategies, brokerage, store, now, nil); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(brokerage.calls) != 0 {
		t.Fatalf("expected no fetch for an already-Available day, got %d calls", len(brokerage.calls))
	}
}

func TestStep_RespectsMaxChunksPerInstrument(t *testing.T) {
	figi := domain.Figi("BBG1")
	to := testDay.AddDate(0, 0, 5)
	strategies := fakeStrategies{reqs: []StrategyRequirement{
		{Figis: []domain.Figi{figi}, TimeFrom: testDay, TimeTo: &to},
	}}

	brokerage := &fakeBrokerage{}
	store := newFakeStore()
	now := func() time.Time { return testDay.AddDate(0, 0, 10) }

	if err := step(context.Background(), 2, strategies, brokerage, store, now, nil); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(brokerage.calls) != 2 {
		t.Fatalf("expected fetches capped at max_chunks_per_instrument=2, got %d", len(brokerage.calls))
	}
}

func TestStep_PartiallyAvailableDayStillOpenToday(t *testing.T) {
	figi := domain.Figi("BBG1")
	availableUpTo := testDay.Add(90 * time.Minute)
	strategies := fakeStrategies{reqs: []StrategyRequirement{
		{Figis: []domain.Figi{figi}, TimeFrom: testDay, TimeTo: ptr(testDay.Add(3 * time.Hour))},
	}}

	brokerage := &fakeBrokerage{candles: map[time.Time]domain.Candle{
		availableUpTo.Add(time.Minute): {Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}}
	store := newFakeStore()
	store.availability[figi] = map[time.Time]domain.DataAvailability{
		testDay: {Kind: domain.PartiallyAvailable, AvailableUpTo: availableUpTo},
	}

	now := func() time.Time { return testDay.Add(2 * time.Hour) } // same calendar day = "today"

	if err := step(context.Background(), 10, strategies, brokerage, store, now, nil); err != nil {
		t.Fatalf("step: %v", err)
	}

	if len(brokerage.calls) != 1 || !brokerage.calls[0].from.Equal(availableUpTo) {
		t.Fatalf("expected fetch cursor at AvailableUpTo, got %+v", brokerage.calls)
	}

	avail := store.written[figi][testDay]
	if avail.Kind != domain.PartiallyAvailable {
		t.Fatalf("expected today's day to remain PartiallyAvailable, got %v", avail.Kind)
	}
}

func ptr(t time.Time) *time.Time { return &t }
