// Package positionmanagerrunner is the position-manager runner (C11): for
// each Realtime PM instance it derives a consistent replay window bounded
// by its referenced strategies' cursors, feeds buffered contexts through
// the PM, and advances its own cursor. Grounded on the Rust original's
// position_manager_runner.rs.
//
// Per the operating rule "spec text governs, the original resolves
// ambiguity or silence only": the Rust original computes effective
// time_from via `.min(...)`; spec.md §4.11 step 3 states the invariant as
// max(PM.cursor, now - max_execution_context_age), which this
// implementation follows.
package positionmanagerrunner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/periodic"
	"github.com/fedormatantsev/candlerunner/internal/positionmanagercache"
)

// PositionsLookup is the read side of positionscache.Cache the runner
// needs.
type PositionsLookup interface {
	State() map[domain.AccountID]domain.AccountPositions
}

// Runner wraps the position-manager-runner periodic.
type Runner struct {
	p *periodic.Periodic[struct{}]
}

func New(ctx context.Context, updatePeriod time.Duration, maxExecutionContextAge time.Duration, pms *positionmanagercache.Cache, positions PositionsLookup, store domain.Store, now func() time.Time, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	step := func(ctx context.Context, _ struct{}) (struct{}, error) {
		for id, inst := range pms.State() {
			if err := runOne(ctx, id, inst, maxExecutionContextAge, positions, store, now, logger); err != nil {
				logger.Error("position manager runner step failed", "pm", id, "error", err)
			}
		}
		return struct{}{}, nil
	}

	return &Runner{p: periodic.New(ctx, "position-manager-runner", updatePeriod, struct{}{}, step, logger)}
}

// Destroy stops the underlying periodic.
func (r *Runner) Destroy(ctx context.Context) error {
	return r.p.Destroy(ctx)
}

func runOne(ctx context.Context, id domain.PositionManagerInstanceID, inst positionmanagercache.Instance, maxExecutionContextAge time.Duration, positions PositionsLookup, store domain.Store, now func() time.Time, logger *slog.Logger) error {
	def := inst.Definition
	if def.Options.Kind != domain.Realtime {
		return nil
	}
	accountID := def.Options.AccountID

	state, err := loadOrInitState(ctx, id, now, maxExecutionContextAge, store)
	if err != nil {
		return err
	}

	timeTo, ok, err := minStrategyCursor(ctx, def.Strategies, store)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	cutoff := now().Add(-maxExecutionContextAge)
	timeFrom := state.Cursor
	if cutoff.After(timeFrom) {
		timeFrom = cutoff
	}

	buckets, orderedTs, err := collectContexts(ctx, def.Strategies, timeFrom, timeTo, store)
	if err != nil {
		return err
	}

	for _, ts := range orderedTs {
		accountPositions, ok := positions.State()[accountID]
		if !ok {
			logger.Warn("unable to find positions for account", "account", accountID)
			continue
		}
		if _, err := inst.PM.Execute(ts, buckets[ts], accountPositions); err != nil {
			logger.Error("position manager execute failed", "pm", id, "ts", ts, "error", err)
		}
	}

	newCursor := timeTo
	if state.Cursor.After(newCursor) {
		newCursor = state.Cursor
	}
	return store.WritePositionManagerExecutionState(ctx, id, domain.PositionManagerExecutionState{Cursor: newCursor})
}

func loadOrInitState(ctx context.Context, id domain.PositionManagerInstanceID, now func() time.Time, maxExecutionContextAge time.Duration, store domain.Store) (domain.PositionManagerExecutionState, error) {
	state, err := store.ReadPositionManagerExecutionState(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.PositionManagerExecutionState{}, err
	}

	init := domain.PositionManagerExecutionState{Cursor: now().Add(-maxExecutionContextAge)}
	if err := store.WritePositionManagerExecutionState(ctx, id, init); err != nil {
		return domain.PositionManagerExecutionState{}, err
	}
	return init, nil
}

// minStrategyCursor computes time_to = min over strategy_ids of the current
// strategy execution cursor. ok is false if any referenced strategy has no
// execution state yet (spec.md §4.11 step 2).
func minStrategyCursor(ctx context.Context, strategyIDs []domain.StrategyInstanceID, store domain.Store) (time.Time, bool, error) {
	var min time.Time
	for i, sid := range strategyIDs {
		state, err := store.ReadStrategyExecutionState(ctx, sid)
		if errors.Is(err, domain.ErrNotFound) {
			return time.Time{}, false, nil
		}
		if err != nil {
			return time.Time{}, false, err
		}

		if i == 0 || state.Cursor.Before(min) {
			min = state.Cursor
		}
	}
	return min, len(strategyIDs) > 0, nil
}

// collectContexts reads each referenced strategy's contexts in
// (time_from, time_to] and buckets them by timestamp.
func collectContexts(ctx context.Context, strategyIDs []domain.StrategyInstanceID, timeFrom, timeTo time.Time, store domain.Store) (map[time.Time]map[domain.StrategyInstanceID]domain.StrategyContext, []time.Time, error) {
	buckets := make(map[time.Time]map[domain.StrategyInstanceID]domain.StrategyContext)

	for _, sid := range strategyIDs {
		entries, err := store.ReadStrategyExecutionContexts(ctx, sid, timeFrom, &timeTo)
		if err != nil {
			return nil, nil, err
		}

		for _, e := range entries {
			if !e.Timestamp.After(timeFrom) {
				continue // exclusive lower bound
			}
			if buckets[e.Timestamp] == nil {
				buckets[e.Timestamp] = make(map[domain.StrategyInstanceID]domain.StrategyContext)
			}
			buckets[e.Timestamp][sid] = e.Context
		}
	}

	ordered := make([]time.Time, 0, len(buckets))
	for ts := range buckets {
		ordered = append(ordered, ts)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	return buckets, ordered, nil
}
