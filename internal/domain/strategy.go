package domain

import (
	"time"

	"github.com/google/uuid"
)

// StrategyInstanceDefinition is the durable, user-controlled description of
// one running strategy instance. Its id (computed in package identity) is a
// pure function of these fields, making repeated posts idempotent.
type StrategyInstanceDefinition struct {
	StrategyName       string
	Params             map[string]ParamValue
	TimeFrom           time.Time
	TimeTo             *time.Time
	Resolution         CandleResolution
	PlaceOrderSettings *PlaceOrderSettings
}

// PlaceOrderSettings is an opaque, strategy-defined parameter set controlling
// how a strategy's signals translate into orders. Only its identity
// contribution matters to this core.
type PlaceOrderSettings struct {
	Params map[string]ParamValue
}

// ExecutionStatus is the per-strategy (or per-PM) state-machine value.
type ExecutionStatus int

const (
	Running ExecutionStatus = iota
	Finished
	Failed
)

// StrategyExecutionState is the durable per-strategy execution record.
// Invariant: Cursor only advances while Status == Running; once Failed, the
// cursor is frozen.
type StrategyExecutionState struct {
	Status ExecutionStatus
	Cursor time.Time
}

// StrategyContext is the per-tick, per-strategy output: derived signals plus
// opaque indicator state. Written once per (strategy id, timestamp); never
// mutated.
type StrategyContext struct {
	Signals        map[Figi]float64
	IndicatorState []byte
}

// StrategyDefinition is the static, compile-time-known shape a strategy
// factory declares: its name and expected parameters.
type StrategyDefinition struct {
	Name   string
	Params []ParamDefinition
}

// ExecutionOutcome discriminates how a strategy's Execute call concluded.
type ExecutionOutcome int

const (
	ExecutionOK ExecutionOutcome = iota
	ExecutionFailure                // retryable; do not advance cursor further this tick
	ExecutionCriticalFailure         // non-retryable; transition status to Failed
)

// Strategy is the runtime contract a concrete strategy implementation
// fulfils. Execute is strictly CPU-bound and must not suspend.
type Strategy interface {
	DataRequirements() []Figi
	Execute(ts time.Time, pack CandlePack, prev StrategyContext) (StrategyContext, ExecutionOutcome, error)
}

// StrategyFactory instantiates a Strategy from a validated parameter map.
type StrategyFactory interface {
	Definition() StrategyDefinition
	Create(params map[string]ParamValue) (Strategy, error)
}

// StrategyInstanceID is the deterministic identity of a strategy instance
// definition (package identity computes it).
type StrategyInstanceID = uuid.UUID
