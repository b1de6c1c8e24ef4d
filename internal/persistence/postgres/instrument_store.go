package postgres

import (
	"context"
	"fmt"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// WriteInstruments upserts the given instruments, overwriting any previous
// ticker/display name for the same figi.
func (s *Store) WriteInstruments(ctx context.Context, instruments []domain.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	batch := make([][]any, len(instruments))
	for i, inst := range instruments {
		batch[i] = []any{string(inst.Figi), string(inst.Ticker), inst.DisplayName}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin write instruments: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO instruments (figi, ticker, display_name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (figi) DO UPDATE SET
			ticker       = EXCLUDED.ticker,
			display_name = EXCLUDED.display_name,
			updated_at   = NOW()`

	for _, row := range batch {
		if _, err := tx.Exec(ctx, query, row...); err != nil {
			return fmt.Errorf("postgres: upsert instrument %v: %w", row[0], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit write instruments: %w", err)
	}
	return nil
}

// ReadInstruments returns every known instrument.
func (s *Store) ReadInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := s.pool.Query(ctx, `SELECT figi, ticker, display_name FROM instruments ORDER BY figi`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var figi, ticker, displayName string
		if err := rows.Scan(&figi, &ticker, &displayName); err != nil {
			return nil, fmt.Errorf("postgres: scan instrument: %w", err)
		}
		out = append(out, domain.Instrument{Figi: domain.Figi(figi), Ticker: domain.Ticker(ticker), DisplayName: displayName})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read instruments rows: %w", err)
	}
	return out, nil
}
