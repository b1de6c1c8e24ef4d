// Package strategyregistry maps declared strategy names to factories,
// grounded on the factory-map pattern implied by the Rust original's
// strategy_cache.rs (`registry.instantiate_strategy`).
package strategyregistry

import (
	"fmt"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// Registry holds every compiled-in strategy factory, keyed by its declared
// name.
type Registry struct {
	factories map[string]domain.StrategyFactory
}

func New() *Registry {
	return &Registry{factories: make(map[string]domain.StrategyFactory)}
}

// Register adds a factory. Registering the same name twice panics: this
// only happens at process wiring time, never in response to external input.
func (r *Registry) Register(factory domain.StrategyFactory) {
	name := factory.Definition().Name
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("strategyregistry: duplicate registration for %q", name))
	}
	r.factories[name] = factory
}

// Definition returns the declared shape of a registered strategy.
func (r *Registry) Definition(name string) (domain.StrategyDefinition, bool) {
	factory, ok := r.factories[name]
	if !ok {
		return domain.StrategyDefinition{}, false
	}
	return factory.Definition(), true
}

// Instantiate validates params against the named strategy's definition and
// constructs a live Strategy instance.
func (r *Registry) Instantiate(validator interface {
	Validate(defs []domain.ParamDefinition, params map[string]domain.ParamValue) error
}, def domain.StrategyInstanceDefinition) (domain.Strategy, error) {
	factory, ok := r.factories[def.StrategyName]
	if !ok {
		return nil, fmt.Errorf("strategyregistry: unknown strategy %q", def.StrategyName)
	}

	if err := validator.Validate(factory.Definition().Params, def.Params); err != nil {
		return nil, err
	}

	return factory.Create(def.Params)
}
