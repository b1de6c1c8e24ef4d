package domain

import (
	"time"

	"github.com/google/uuid"
)

// PositionManagerInstanceOptionsKind discriminates the PM instance options
// variants.
type PositionManagerInstanceOptionsKind int

const (
	Realtime PositionManagerInstanceOptionsKind = iota
	Backtest
)

// PositionManagerInstanceOptions is the tagged union
// Realtime{AccountID} | Backtest.
type PositionManagerInstanceOptions struct {
	Kind      PositionManagerInstanceOptionsKind
	AccountID AccountID // valid only when Kind == Realtime
}

// PositionManagerInstanceDefinition is the durable, user-controlled
// description of one running position-manager instance.
type PositionManagerInstanceDefinition struct {
	PMName     string
	Params     map[string]ParamValue
	Strategies []StrategyInstanceID // ordered set; identity sorts before hashing
	Options    PositionManagerInstanceOptions
}

// PositionManagerExecutionState is the durable per-PM execution record.
type PositionManagerExecutionState struct {
	Cursor time.Time
}

// OrderDirection discriminates buy/sell orders.
type OrderDirection int

const (
	Buy OrderDirection = iota
	Sell
)

// OrderType discriminates market/limit orders.
type OrderType int

const (
	Market OrderType = iota
	Limit
)

// Order is a position manager's proposed action. Order routing is out of
// scope for this core (spec.md Non-goals); the runner discards orders after
// invoking the position manager.
type Order struct {
	Direction  OrderDirection
	OrderType  OrderType
	Lots       int64
	Instrument Figi
}

// PositionManagerDefinition is the static, compile-time-known shape a
// position-manager factory declares.
type PositionManagerDefinition struct {
	Name   string
	Params []ParamDefinition
}

// PositionManager is the runtime contract a concrete position-manager
// implementation fulfils.
type PositionManager interface {
	Execute(ts time.Time, contexts map[StrategyInstanceID]StrategyContext, positions AccountPositions) ([]Order, error)
}

// PositionManagerFactory instantiates a PositionManager from a validated
// parameter map.
type PositionManagerFactory interface {
	Definition() PositionManagerDefinition
	Create(params map[string]ParamValue, strategies []StrategyInstanceID) (PositionManager, error)
}

// PositionManagerInstanceID is the deterministic identity of a PM instance
// definition.
type PositionManagerInstanceID = uuid.UUID
