package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// WriteCandles upserts a figi's timeline; duplicate (figi, ts) pairs have
// the latest write win, per domain.Store's contract.
func (s *Store) WriteCandles(ctx context.Context, figi domain.Figi, timeline domain.CandleTimeline) error {
	if len(timeline) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin write candles %s: %w", figi, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO candles (figi, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (figi, ts) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`

	for ts, c := range timeline {
		if _, err := tx.Exec(ctx, query, string(figi), ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("postgres: upsert candle %s@%s: %w", figi, ts, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit write candles %s: %w", figi, err)
	}
	return nil
}

// ReadCandles returns every candle with t0 <= ts < t1.
func (s *Store) ReadCandles(ctx context.Context, figi domain.Figi, t0, t1 time.Time) (domain.CandleTimeline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume FROM candles
		WHERE figi = $1 AND ts >= $2 AND ts < $3`,
		string(figi), t0, t1,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: read candles %s: %w", figi, err)
	}
	defer rows.Close()

	out := make(domain.CandleTimeline)
	for rows.Next() {
		var ts time.Time
		var c domain.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan candle %s: %w", figi, err)
		}
		out[ts] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read candles rows %s: %w", figi, err)
	}
	return out, nil
}

// WriteCandleDataAvailability upserts the per-day availability record.
func (s *Store) WriteCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time, avail domain.DataAvailability) error {
	var availableUpTo *time.Time
	if avail.Kind == domain.PartiallyAvailable {
		availableUpTo = &avail.AvailableUpTo
	}

	const query = `
		INSERT INTO candle_availability (figi, day, kind, available_up_to)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (figi, day) DO UPDATE SET
			kind = EXCLUDED.kind, available_up_to = EXCLUDED.available_up_to`

	if _, err := s.pool.Exec(ctx, query, string(figi), day, int16(avail.Kind), availableUpTo); err != nil {
		return fmt.Errorf("postgres: upsert candle availability %s@%s: %w", figi, day, err)
	}
	return nil
}

// ReadCandleDataAvailability returns the stored availability for a day,
// defaulting to Unavailable when no record exists (never fetched).
func (s *Store) ReadCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time) (domain.DataAvailability, error) {
	var kind int16
	var availableUpTo *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT kind, available_up_to FROM candle_availability WHERE figi = $1 AND day = $2`,
		string(figi), day,
	).Scan(&kind, &availableUpTo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DataAvailability{Kind: domain.Unavailable}, nil
		}
		return domain.DataAvailability{}, fmt.Errorf("postgres: read candle availability %s@%s: %w", figi, day, err)
	}

	avail := domain.DataAvailability{Kind: domain.AvailabilityKind(kind)}
	if avail.Kind == domain.PartiallyAvailable && availableUpTo != nil {
		avail.AvailableUpTo = *availableUpTo
	}
	return avail, nil
}
