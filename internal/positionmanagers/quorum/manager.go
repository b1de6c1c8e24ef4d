// Package quorum implements the QuorumManager example position manager.
// Grounded on the Rust original's position_managers/quorum_manager.rs: its
// decision logic (how buy/sell thresholds combine strategy signals into
// orders) is left unimplemented there (todo!()), so this port carries the
// same gap rather than inventing semantics the spec doesn't define.
package quorum

import (
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

const (
	paramNameBuyThreshold  = "Buy Threshold"
	paramNameSellThreshold = "Sell Threshold"
)

// Manager combines strategy signals against configured buy/sell thresholds.
// Execute's decision logic is not implemented, matching the original.
type Manager struct {
	strategies    []domain.StrategyInstanceID
	buyThreshold  float64
	sellThreshold float64
}

func (m Manager) Execute(ts time.Time, contexts map[domain.StrategyInstanceID]domain.StrategyContext, positions domain.AccountPositions) ([]domain.Order, error) {
	return nil, nil
}

// Factory constructs Manager instances from a validated parameter map.
type Factory struct{}

func (Factory) Definition() domain.PositionManagerDefinition {
	return domain.PositionManagerDefinition{
		Name: "QuorumManager",
		Params: []domain.ParamDefinition{
			{Name: paramNameBuyThreshold, Description: "Minimum combined signal required to buy", Type: domain.ParamTypeFloat},
			{Name: paramNameSellThreshold, Description: "Maximum combined signal required to sell", Type: domain.ParamTypeFloat},
		},
	}
}

func (Factory) Create(params map[string]domain.ParamValue, strategies []domain.StrategyInstanceID) (domain.PositionManager, error) {
	buy, ok := params[paramNameBuyThreshold].AsFloat()
	if !ok {
		return nil, &domain.ParamError{Kind: domain.ParamErrorMissing, Name: paramNameBuyThreshold}
	}
	sell, ok := params[paramNameSellThreshold].AsFloat()
	if !ok {
		return nil, &domain.ParamError{Kind: domain.ParamErrorMissing, Name: paramNameSellThreshold}
	}

	return Manager{strategies: strategies, buyThreshold: buy, sellThreshold: sell}, nil
}
