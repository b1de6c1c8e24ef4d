// Package buyandhold implements the BuyAndHold example strategy: it signals
// a constant "hold" weight for a single configured instrument for the
// whole run. Grounded on the Rust original's strategies/buy_and_hold.rs.
package buyandhold

import (
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

const paramNameInstrument = "Instrument"

// Strategy always signals the maximum weight on its one configured
// instrument, regardless of candle data: it "buys on day 1 and holds".
type Strategy struct {
	figi domain.Figi
}

func (s Strategy) DataRequirements() []domain.Figi {
	return []domain.Figi{s.figi}
}

func (s Strategy) Execute(ts time.Time, pack domain.CandlePack, prev domain.StrategyContext) (domain.StrategyContext, domain.ExecutionOutcome, error) {
	return domain.StrategyContext{
		Signals: map[domain.Figi]float64{s.figi: 1.0},
	}, domain.ExecutionOK, nil
}

// Factory constructs Strategy instances from a validated parameter map.
type Factory struct{}

func (Factory) Definition() domain.StrategyDefinition {
	return domain.StrategyDefinition{
		Name: "BuyAndHold",
		Params: []domain.ParamDefinition{
			{Name: paramNameInstrument, Description: "Instrument to buy", Type: domain.ParamTypeInstrument},
		},
	}
}

func (Factory) Create(params map[string]domain.ParamValue) (domain.Strategy, error) {
	figi, ok := params[paramNameInstrument].AsInstrument()
	if !ok {
		return nil, &domain.ParamError{Kind: domain.ParamErrorMissing, Name: paramNameInstrument}
	}
	return Strategy{figi: figi}, nil
}
