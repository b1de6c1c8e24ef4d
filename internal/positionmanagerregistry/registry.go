// Package positionmanagerregistry maps declared position-manager names to
// factories, symmetric to internal/strategyregistry.
package positionmanagerregistry

import (
	"fmt"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

type Registry struct {
	factories map[string]domain.PositionManagerFactory
}

func New() *Registry {
	return &Registry{factories: make(map[string]domain.PositionManagerFactory)}
}

func (r *Registry) Register(factory domain.PositionManagerFactory) {
	name := factory.Definition().Name
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("positionmanagerregistry: duplicate registration for %q", name))
	}
	r.factories[name] = factory
}

func (r *Registry) Definition(name string) (domain.PositionManagerDefinition, bool) {
	factory, ok := r.factories[name]
	if !ok {
		return domain.PositionManagerDefinition{}, false
	}
	return factory.Definition(), true
}

// Instantiate validates params against the named PM's definition and
// constructs a live PositionManager instance.
func (r *Registry) Instantiate(validator interface {
	Validate(defs []domain.ParamDefinition, params map[string]domain.ParamValue) error
}, def domain.PositionManagerInstanceDefinition) (domain.PositionManager, error) {
	factory, ok := r.factories[def.PMName]
	if !ok {
		return nil, fmt.Errorf("positionmanagerregistry: unknown position manager %q", def.PMName)
	}

	if err := validator.Validate(factory.Definition().Params, def.Params); err != nil {
		return nil, err
	}

	return factory.Create(def.Params, def.Strategies)
}
