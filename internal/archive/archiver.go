package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/instrumentcache"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
	"github.com/fedormatantsev/candlerunner/internal/strategycache"
)

// InstrumentLookup enumerates the figis worth archiving candles for.
type InstrumentLookup interface {
	Figis() []domain.Figi
}

// LiveInstruments adapts *instrumentcache.Cache into InstrumentLookup.
type LiveInstruments struct {
	Cache *instrumentcache.Cache
}

func (l LiveInstruments) Figis() []domain.Figi {
	state := l.Cache.State()
	out := make([]domain.Figi, 0, len(state))
	for figi := range state {
		out = append(out, figi)
	}
	return out
}

// StrategyLookup enumerates the live strategy instance ids worth archiving
// execution contexts for.
type StrategyLookup interface {
	StrategyIDs() []domain.StrategyInstanceID
}

// LiveStrategies adapts *strategycache.Cache into StrategyLookup.
type LiveStrategies struct {
	Cache *strategycache.Cache
}

func (l LiveStrategies) StrategyIDs() []domain.StrategyInstanceID {
	state := l.Cache.State()
	out := make([]domain.StrategyInstanceID, 0, len(state))
	for id := range state {
		out = append(out, id)
	}
	return out
}

// Source is the read side of domain.Store the archiver sweeps.
type Source interface {
	ReadCandles(ctx context.Context, figi domain.Figi, t0, t1 time.Time) (domain.CandleTimeline, error)
	ReadStrategyExecutionContexts(ctx context.Context, id domain.StrategyInstanceID, t0 time.Time, t1 *time.Time) ([]domain.TimestampedContext, error)
}

// archiveState tracks, per (kind, key), the first calendar day not yet
// archived (the day after the last one uploaded), so each day is uploaded
// at most once.
type archiveState struct {
	candleDays   map[domain.Figi]time.Time
	strategyDays map[domain.StrategyInstanceID]time.Time
}

// Archiver wraps the archive-sweep periodic.
type Archiver struct {
	p *periodic.Periodic[archiveState]
}

// New starts the archive-sweep periodic. retention is how far behind now a
// calendar day must fall before it is swept to cold storage.
func New(ctx context.Context, updatePeriod, retention time.Duration, instruments InstrumentLookup, strategies StrategyLookup, source Source, client *Client, now func() time.Time, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, state archiveState) (archiveState, error) {
		if state.candleDays == nil {
			state.candleDays = make(map[domain.Figi]time.Time)
		}
		if state.strategyDays == nil {
			state.strategyDays = make(map[domain.StrategyInstanceID]time.Time)
		}

		cutoff := dayStart(now().Add(-retention))

		for _, figi := range instruments.Figis() {
			for _, day := range pendingDays(state.candleDays[figi], cutoff) {
				next := day.AddDate(0, 0, 1)
				if err := archiveCandleDay(ctx, source, client, figi, day, next, logger); err != nil {
					logger.Error("archive candle day failed", "figi", figi, "day", day, "error", err)
					break
				}
				state.candleDays[figi] = next
			}
		}

		for _, id := range strategies.StrategyIDs() {
			for _, day := range pendingDays(state.strategyDays[id], cutoff) {
				next := day.AddDate(0, 0, 1)
				if err := archiveStrategyDay(ctx, source, client, id, day, next, logger); err != nil {
					logger.Error("archive strategy day failed", "strategy", id, "day", day, "error", err)
					break
				}
				state.strategyDays[id] = next
			}
		}

		return state, nil
	}

	return &Archiver{p: periodic.New(ctx, "archiver", updatePeriod, archiveState{}, step, logger)}
}

// Destroy stops the underlying periodic.
func (a *Archiver) Destroy(ctx context.Context) error {
	return a.p.Destroy(ctx)
}

func archiveCandleDay(ctx context.Context, source Source, client *Client, figi domain.Figi, day, next time.Time, logger *slog.Logger) error {
	timeline, err := source.ReadCandles(ctx, figi, day, next)
	if err != nil {
		return fmt.Errorf("archive: read candles %s@%s: %w", figi, day, err)
	}
	if len(timeline) == 0 {
		return nil
	}

	payload, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("archive: marshal candles %s@%s: %w", figi, day, err)
	}

	key := fmt.Sprintf("candles/%s/%s.json", figi, day.UTC().Format("2006-01-02"))
	_, err = client.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &client.bucket,
		Key:    &key,
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("archive: upload candles %s@%s: %w", figi, day, err)
	}

	logger.Info("archived candle day", "figi", figi, "day", day, "candles", len(timeline))
	return nil
}

func archiveStrategyDay(ctx context.Context, source Source, client *Client, id domain.StrategyInstanceID, day, next time.Time, logger *slog.Logger) error {
	entries, err := source.ReadStrategyExecutionContexts(ctx, id, day, &next)
	if err != nil {
		return fmt.Errorf("archive: read strategy contexts %s@%s: %w", id, day, err)
	}
	if len(entries) == 0 {
		return nil
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("archive: marshal strategy contexts %s@%s: %w", id, day, err)
	}

	key := fmt.Sprintf("strategy-contexts/%s/%s.json", id, day.UTC().Format("2006-01-02"))
	_, err = client.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &client.bucket,
		Key:    &key,
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("archive: upload strategy contexts %s@%s: %w", id, day, err)
	}

	logger.Info("archived strategy context day", "strategy", id, "day", day, "entries", len(entries))
	return nil
}

func dayStart(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// pendingDays returns the ordered list of calendar days still needing an
// archive pass: every day from lastArchived itself, which holds the first
// day not yet archived (or cutoff minus one day, if nothing has been
// archived yet), up to, but excluding, cutoff.
func pendingDays(lastArchived, cutoff time.Time) []time.Time {
	day := lastArchived
	if day.IsZero() {
		day = cutoff.AddDate(0, 0, -1)
	}

	var days []time.Time
	for day.Before(cutoff) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}
