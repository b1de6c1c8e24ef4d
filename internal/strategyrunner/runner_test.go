package strategyrunner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/strategycache"
)

type fakeStrategy struct {
	figis   []domain.Figi
	execute func(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error)
}

func (s fakeStrategy) DataRequirements() []domain.Figi { return s.figis }
func (s fakeStrategy) Execute(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
	return s.execute(ts, pack, prev)
}

type fakeStore struct {
	domain.Store
	execState map[domain.StrategyInstanceID]domain.StrategyExecutionState
	contexts  map[domain.StrategyInstanceID][]domain.TimestampedContext
	candles   map[domain.Figi]domain.CandleTimeline
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		execState: make(map[domain.StrategyInstanceID]domain.StrategyExecutionState),
		contexts:  make(map[domain.StrategyInstanceID][]domain.TimestampedContext),
		candles:   make(map[domain.Figi]domain.CandleTimeline),
	}
}

func (f *fakeStore) ReadStrategyExecutionState(ctx context.Context, id domain.StrategyInstanceID) (domain.StrategyExecutionState, error) {
	s, ok := f.execState[id]
	if !ok {
		return domain.StrategyExecutionState{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) WriteStrategyExecutionState(ctx context.Context, id domain.StrategyInstanceID, state domain.StrategyExecutionState) error {
	f.execState[id] = state
	return nil
}

func (f *fakeStore) WriteStrategyExecutionContexts(ctx context.Context, id domain.StrategyInstanceID, entries []domain.TimestampedContext) error {
	f.contexts[id] = append(f.contexts[id], entries...)
	return nil
}

func (f *fakeStore) ReadStrategyExecutionContexts(ctx context.Context, id domain.StrategyInstanceID, t0 time.Time, t1 *time.Time) ([]domain.TimestampedContext, error) {
	var out []domain.TimestampedContext
	for _, e := range f.contexts[id] {
		if e.Timestamp.Before(t0) {
			continue
		}
		if t1 != nil && e.Timestamp.After(*t1) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) ReadCandles(ctx context.Context, figi domain.Figi, t0, t1 time.Time) (domain.CandleTimeline, error) {
	out := make(domain.CandleTimeline)
	for ts, c := range f.candles[figi] {
		if !ts.Before(t0) && ts.Before(t1) {
			out[ts] = c
		}
	}
	return out, nil
}

func (f *fakeStore) ReadCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time) (domain.DataAvailability, error) {
	return domain.DataAvailability{Kind: domain.Available}, nil
}

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// TestRunOne_AdvancesCursorAndBuffersContexts covers the happy-path
// Running -> Running step (spec.md §4.9 steps 1-7).
func TestRunOne_AdvancesCursorAndBuffersContexts(t *testing.T) {
	figi := domain.Figi("BBG1")
	id := uuid.New()

	store := newFakeStore()
	store.candles[figi] = domain.CandleTimeline{
		base.Add(time.Hour): {Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}

	strategy := fakeStrategy{
		figis: []domain.Figi{figi},
		execute: func(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
			return domain.StrategyContext{Signals: map[domain.Figi]float64{figi: 1}}, domain.ExecutionOK, nil
		},
	}

	timeTo := base.Add(3 * time.Hour)
	def := domain.StrategyInstanceDefinition{StrategyName: "test", TimeFrom: base, TimeTo: &timeTo, Resolution: domain.OneHour}
	inst := strategycache.Instance{Definition: def, Strategy: strategy}

	now := func() time.Time { return base.Add(24 * time.Hour) }

	if err := runOne(context.Background(), id, inst, store, now, nil); err != nil {
		t.Fatalf("runOne: %v", err)
	}

	state := store.execState[id]
	if state.Status != domain.Running {
		t.Fatalf("expected still Running (cursor hasn't reached time_to), got %v", state.Status)
	}
	if !state.Cursor.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected cursor to advance to the executed candle's ts, got %v", state.Cursor)
	}
	if len(store.contexts[id]) != 1 {
		t.Fatalf("expected one buffered context, got %d", len(store.contexts[id]))
	}
}

// TestRunOne_FinishesAtTimeTo covers the Finished transition: a strategy
// whose cursor has already caught up to time_to (no further candles to
// process this tick) is marked Finished.
func TestRunOne_FinishesAtTimeTo(t *testing.T) {
	figi := domain.Figi("BBG1")
	id := uuid.New()

	timeTo := base.Add(time.Hour)
	store := newFakeStore()
	store.execState[id] = domain.StrategyExecutionState{Status: domain.Running, Cursor: timeTo}

	strategy := fakeStrategy{
		figis: []domain.Figi{figi},
		execute: func(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
			t.Fatalf("strategy should not execute when the window is empty")
			return domain.StrategyContext{}, domain.ExecutionOK, nil
		},
	}

	def := domain.StrategyInstanceDefinition{StrategyName: "test", TimeFrom: base, TimeTo: &timeTo, Resolution: domain.OneHour}
	inst := strategycache.Instance{Definition: def, Strategy: strategy}

	now := func() time.Time { return base.Add(24 * time.Hour) }

	if err := runOne(context.Background(), id, inst, store, now, nil); err != nil {
		t.Fatalf("runOne: %v", err)
	}

	state := store.execState[id]
	if state.Status != domain.Finished {
		t.Fatalf("expected Finished once cursor >= time_to, got %v", state.Status)
	}
}

// TestRunOne_CriticalFailureMarksFailed covers the Failed transition.
func TestRunOne_CriticalFailureMarksFailed(t *testing.T) {
	figi := domain.Figi("BBG1")
	id := uuid.New()

	store := newFakeStore()
	store.candles[figi] = domain.CandleTimeline{
		base: {Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}

	strategy := fakeStrategy{
		figis: []domain.Figi{figi},
		execute: func(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
			return domain.StrategyContext{}, domain.ExecutionCriticalFailure, nil
		},
	}

	timeTo := base.Add(2 * time.Hour)
	def := domain.StrategyInstanceDefinition{StrategyName: "test", TimeFrom: base, TimeTo: &timeTo, Resolution: domain.OneHour}
	inst := strategycache.Instance{Definition: def, Strategy: strategy}

	now := func() time.Time { return base.Add(24 * time.Hour) }

	if err := runOne(context.Background(), id, inst, store, now, nil); err != nil {
		t.Fatalf("runOne: %v", err)
	}

	if store.execState[id].Status != domain.Failed {
		t.Fatalf("expected Failed after CriticalFailure, got %v", store.execState[id].Status)
	}
}

// TestRunOne_SkipsNonRunning verifies a Finished strategy is not re-executed.
func TestRunOne_SkipsNonRunning(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.execState[id] = domain.StrategyExecutionState{Status: domain.Finished, Cursor: base}

	called := false
	strategy := fakeStrategy{
		execute: func(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
			called = true
			return domain.StrategyContext{}, domain.ExecutionOK, nil
		},
	}
	def := domain.StrategyInstanceDefinition{StrategyName: "test", TimeFrom: base}
	inst := strategycache.Instance{Definition: def, Strategy: strategy}

	if err := runOne(context.Background(), id, inst, store, func() time.Time { return base }, nil); err != nil {
		t.Fatalf("runOne: %v", err)
	}
	if called {
		t.Fatalf("expected Execute not to be called for a Finished strategy")
	}
}
