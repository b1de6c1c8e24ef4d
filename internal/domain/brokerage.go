package domain

import (
	"context"
	"time"
)

// Brokerage is the abstract surface (C5) the core consumes. All calls are
// fallible and retried externally; only the capability surface matters to
// the core, not any particular wire protocol.
type Brokerage interface {
	ListInstruments(ctx context.Context) ([]Instrument, error)
	// GetCandles returns a mapping ts -> candle on [from, to).
	GetCandles(ctx context.Context, figi Figi, from, to time.Time) (CandleTimeline, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListPositions(ctx context.Context, account AccountID) (AccountPositions, error)
	OpenSandboxAccount(ctx context.Context) (AccountID, error)
	CloseSandboxAccount(ctx context.Context, account AccountID) error
}
