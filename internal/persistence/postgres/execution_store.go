package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// WriteStrategyExecutionState upserts a strategy's status/cursor record.
func (s *Store) WriteStrategyExecutionState(ctx context.Context, id domain.StrategyInstanceID, state domain.StrategyExecutionState) error {
	const query = `
		INSERT INTO strategy_execution_states (strategy_id, status, cursor)
		VALUES ($1, $2, $3)
		ON CONFLICT (strategy_id) DO UPDATE SET status = EXCLUDED.status, cursor = EXCLUDED.cursor`

	if _, err := s.pool.Exec(ctx, query, id, int16(state.Status), state.Cursor); err != nil {
		return fmt.Errorf("postgres: upsert strategy execution state %s: %w", id, err)
	}
	return nil
}

// ReadStrategyExecutionState returns domain.ErrNotFound if the strategy has
// never been stepped.
func (s *Store) ReadStrategyExecutionState(ctx context.Context, id domain.StrategyInstanceID) (domain.StrategyExecutionState, error) {
	var status int16
	var cursor time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT status, cursor FROM strategy_execution_states WHERE strategy_id = $1`, id,
	).Scan(&status, &cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyExecutionState{}, domain.ErrNotFound
		}
		return domain.StrategyExecutionState{}, fmt.Errorf("postgres: read strategy execution state %s: %w", id, err)
	}

	return domain.StrategyExecutionState{Status: domain.ExecutionStatus(status), Cursor: cursor}, nil
}

// WriteStrategyExecutionContexts appends entries; contexts are keyed by
// (strategy_id, ts) and are never mutated once written, so a conflicting
// insert is treated as a no-op rather than an overwrite.
func (s *Store) WriteStrategyExecutionContexts(ctx context.Context, id domain.StrategyInstanceID, entries []domain.TimestampedContext) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin write strategy contexts %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO strategy_execution_contexts (strategy_id, ts, signals, indicator_state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (strategy_id, ts) DO NOTHING`

	for _, e := range entries {
		signals, err := json.Marshal(e.Context.Signals)
		if err != nil {
			return fmt.Errorf("postgres: marshal strategy context %s@%s: %w", id, e.Timestamp, err)
		}
		if _, err := tx.Exec(ctx, query, id, e.Timestamp, signals, e.Context.IndicatorState); err != nil {
			return fmt.Errorf("postgres: insert strategy context %s@%s: %w", id, e.Timestamp, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit write strategy contexts %s: %w", id, err)
	}
	return nil
}

// ReadStrategyExecutionContexts is a range scan over t0 <= ts (<= t1 when
// t1 is non-nil).
func (s *Store) ReadStrategyExecutionContexts(ctx context.Context, id domain.StrategyInstanceID, t0 time.Time, t1 *time.Time) ([]domain.TimestampedContext, error) {
	var rows pgx.Rows
	var err error

	if t1 != nil {
		rows, err = s.pool.Query(ctx, `
			SELECT ts, signals, indicator_state FROM strategy_execution_contexts
			WHERE strategy_id = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts`,
			id, t0, *t1,
		)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT ts, signals, indicator_state FROM strategy_execution_contexts
			WHERE strategy_id = $1 AND ts >= $2 ORDER BY ts`,
			id, t0,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read strategy contexts %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.TimestampedContext
	for rows.Next() {
		var ts time.Time
		var signals []byte
		var indicatorState []byte
		if err := rows.Scan(&ts, &signals, &indicatorState); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy context %s: %w", id, err)
		}

		var ctxVal domain.StrategyContext
		if err := json.Unmarshal(signals, &ctxVal.Signals); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal strategy context signals %s@%s: %w", id, ts, err)
		}
		ctxVal.IndicatorState = indicatorState

		out = append(out, domain.TimestampedContext{Timestamp: ts, Context: ctxVal})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read strategy contexts rows %s: %w", id, err)
	}
	return out, nil
}

// WritePositionManagerExecutionState upserts a PM's cursor record.
func (s *Store) WritePositionManagerExecutionState(ctx context.Context, id domain.PositionManagerInstanceID, state domain.PositionManagerExecutionState) error {
	const query = `
		INSERT INTO position_manager_execution_states (pm_id, cursor)
		VALUES ($1, $2)
		ON CONFLICT (pm_id) DO UPDATE SET cursor = EXCLUDED.cursor`

	if _, err := s.pool.Exec(ctx, query, id, state.Cursor); err != nil {
		return fmt.Errorf("postgres: upsert position manager execution state %s: %w", id, err)
	}
	return nil
}

// ReadPositionManagerExecutionState returns domain.ErrNotFound if the PM has
// never been stepped.
func (s *Store) ReadPositionManagerExecutionState(ctx context.Context, id domain.PositionManagerInstanceID) (domain.PositionManagerExecutionState, error) {
	var cursor time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT cursor FROM position_manager_execution_states WHERE pm_id = $1`, id,
	).Scan(&cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PositionManagerExecutionState{}, domain.ErrNotFound
		}
		return domain.PositionManagerExecutionState{}, fmt.Errorf("postgres: read position manager execution state %s: %w", id, err)
	}

	return domain.PositionManagerExecutionState{Cursor: cursor}, nil
}
