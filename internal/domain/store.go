package domain

import (
	"context"
	"time"
)

// Store is the abstract persistence surface (C4) the core requires. Any KV
// or document store may back it (spec.md §6); reads observe the effects of
// any write that completed before them in the same process.
type Store interface {
	WriteInstruments(ctx context.Context, instruments []Instrument) error
	ReadInstruments(ctx context.Context) ([]Instrument, error)

	WriteStrategyInstance(ctx context.Context, id StrategyInstanceID, def StrategyInstanceDefinition) error
	ReadStrategyInstances(ctx context.Context) (map[StrategyInstanceID]StrategyInstanceDefinition, error)

	WritePositionManagerInstance(ctx context.Context, id PositionManagerInstanceID, def PositionManagerInstanceDefinition) error
	ReadPositionManagerInstances(ctx context.Context) (map[PositionManagerInstanceID]PositionManagerInstanceDefinition, error)

	// WriteCandles inserts into a (figi, ts)-keyed time series. Duplicate
	// inserts at the same (figi, ts) are permitted; latest wins.
	WriteCandles(ctx context.Context, figi Figi, timeline CandleTimeline) error
	// ReadCandles returns all candles with t0 <= ts < t1, keyed by timestamp.
	ReadCandles(ctx context.Context, figi Figi, t0, t1 time.Time) (CandleTimeline, error)

	WriteCandleDataAvailability(ctx context.Context, figi Figi, day time.Time, avail DataAvailability) error
	ReadCandleDataAvailability(ctx context.Context, figi Figi, day time.Time) (DataAvailability, error)

	WriteStrategyExecutionState(ctx context.Context, id StrategyInstanceID, state StrategyExecutionState) error
	ReadStrategyExecutionState(ctx context.Context, id StrategyInstanceID) (StrategyExecutionState, error)

	// WriteStrategyExecutionContexts appends only; contexts are never
	// mutated once written.
	WriteStrategyExecutionContexts(ctx context.Context, id StrategyInstanceID, entries []TimestampedContext) error
	// ReadStrategyExecutionContexts is a range scan; t1 == nil means "no
	// upper bound".
	ReadStrategyExecutionContexts(ctx context.Context, id StrategyInstanceID, t0 time.Time, t1 *time.Time) ([]TimestampedContext, error)

	WritePositionManagerExecutionState(ctx context.Context, id PositionManagerInstanceID, state PositionManagerExecutionState) error
	ReadPositionManagerExecutionState(ctx context.Context, id PositionManagerInstanceID) (PositionManagerExecutionState, error)
}

// TimestampedContext pairs a StrategyContext with its tick timestamp, as
// used by the append-only execution-context time series.
type TimestampedContext struct {
	Timestamp time.Time
	Context   StrategyContext
}
