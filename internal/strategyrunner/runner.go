// Package strategyrunner is the strategy runner (C10): it drives each live
// strategy instance's execution state machine forward by one window per
// tick, persisting its cursor/status and appending execution contexts.
// Grounded on the Rust original's strategy_runner/strategy_runner.rs.
package strategyrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/candleinterp"
	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
	"github.com/fedormatantsev/candlerunner/internal/strategycache"
)

// Runner wraps the strategy-runner periodic.
type Runner struct {
	p *periodic.Periodic[struct{}]
}

// New starts the runner periodic. now is injected for determinism in tests.
func New(ctx context.Context, updatePeriod time.Duration, strategies *strategycache.Cache, store domain.Store, now func() time.Time, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, _ struct{}) (struct{}, error) {
		for id, inst := range strategies.State() {
			if err := runOne(ctx, id, inst, store, now, logger); err != nil {
				logger.Error("strategy runner step failed", "strategy", id, "error", err)
			}
		}
		return struct{}{}, nil
	}

	return &Runner{p: periodic.New(ctx, "strategy-runner", updatePeriod, struct{}{}, step, logger)}
}

// Destroy stops the underlying periodic.
func (r *Runner) Destroy(ctx context.Context) error {
	return r.p.Destroy(ctx)
}

func runOne(ctx context.Context, id domain.StrategyInstanceID, inst strategycache.Instance, store domain.Store, now func() time.Time, logger *slog.Logger) error {
	def := inst.Definition

	state, err := loadOrInit(ctx, id, def, store)
	if err != nil {
		return err
	}
	if state.Status != domain.Running {
		return nil
	}

	windowEnd := now()
	if def.TimeTo != nil {
		windowEnd = *def.TimeTo
	}

	figis := inst.Strategy.DataRequirements()
	packs, err := candleinterp.Read(ctx, store, now(), figis, state.Cursor, windowEnd, def.Resolution, false)
	if err != nil {
		return err
	}

	lastState, err := mostRecentContext(ctx, store, id, state.Cursor, windowEnd)
	if err != nil {
		return err
	}

	var buffered []domain.TimestampedContext
	cursor := state.Cursor
	status := state.Status

	for _, p := range packs {
		next, outcome, err := inst.Strategy.Execute(p.Timestamp, p.Pack, lastState)
		if err != nil {
			logger.Error("strategy execute returned an error", "strategy", id, "ts", p.Timestamp, "error", err)
			break
		}

		switch outcome {
		case domain.ExecutionOK:
			buffered = append(buffered, domain.TimestampedContext{Timestamp: p.Timestamp, Context: next})
			lastState = next
			cursor = p.Timestamp
		case domain.ExecutionFailure:
			logger.Warn("strategy execution failed, retrying next tick", "strategy", id, "ts", p.Timestamp)
			goto persist
		case domain.ExecutionCriticalFailure:
			status = domain.Failed
			goto persist
		}
	}

persist:
	if status == domain.Running && def.TimeTo != nil && !cursor.Before(*def.TimeTo) {
		status = domain.Finished
	}

	if len(buffered) > 0 {
		if err := store.WriteStrategyExecutionContexts(ctx, id, buffered); err != nil {
			return err
		}
	}

	return store.WriteStrategyExecutionState(ctx, id, domain.StrategyExecutionState{Status: status, Cursor: cursor})
}

func loadOrInit(ctx context.Context, id domain.StrategyInstanceID, def domain.StrategyInstanceDefinition, store domain.Store) (domain.StrategyExecutionState, error) {
	state, err := store.ReadStrategyExecutionState(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.StrategyExecutionState{}, err
	}

	init := domain.StrategyExecutionState{Status: domain.Running, Cursor: def.TimeFrom}
	if err := store.WriteStrategyExecutionState(ctx, id, init); err != nil {
		return domain.StrategyExecutionState{}, err
	}
	return init, nil
}

func mostRecentContext(ctx context.Context, store domain.Store, id domain.StrategyInstanceID, from, to time.Time) (domain.StrategyContext, error) {
	entries, err := store.ReadStrategyExecutionContexts(ctx, id, from, &to)
	if err != nil {
		return domain.StrategyContext{}, err
	}
	if len(entries) == 0 {
		return domain.StrategyContext{}, nil
	}

	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	return latest.Context, nil
}
