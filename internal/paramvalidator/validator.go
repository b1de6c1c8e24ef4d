// Package paramvalidator validates a strategy/position-manager parameter
// map against its declared definitions. Grounded on the Rust original's
// param_validator.rs, with its inverted "unknown param" branch corrected
// per spec.md §9.
package paramvalidator

import (
	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// InstrumentLookup is the read side of instrumentcache.Cache that the
// validator needs.
type InstrumentLookup interface {
	State() map[domain.Figi]domain.Instrument
}

// Validator checks a parameter map against a set of declarations, resolving
// Instrument-typed values against the live instrument cache.
type Validator struct {
	instruments InstrumentLookup
}

func New(instruments InstrumentLookup) *Validator {
	return &Validator{instruments: instruments}
}

// Validate reports the first violation found, in this order: an unknown
// key in params not present in definitions, then per-definition missing /
// type-mismatched / unresolvable-instrument values.
//
// The Rust original's equivalent check inverted this: it returned
// InvalidParam whenever a param name WAS found among the declared names,
// rejecting every valid call. This implementation flags a param name only
// when it is NOT declared.
func (v *Validator) Validate(definitions []domain.ParamDefinition, params map[string]domain.ParamValue) error {
	declared := make(map[string]domain.ParamDefinition, len(definitions))
	for _, def := range definitions {
		declared[def.Name] = def
	}

	for name := range params {
		if _, ok := declared[name]; !ok {
			return &domain.ParamError{Kind: domain.ParamErrorInvalid, Name: name}
		}
	}

	instruments := v.instruments.State()

	for _, def := range definitions {
		actual, ok := params[def.Name]
		if !ok {
			return &domain.ParamError{Kind: domain.ParamErrorMissing, Name: def.Name}
		}

		if actual.Type != def.Type {
			return &domain.ParamError{Kind: domain.ParamErrorTypeMismatch, Name: def.Name}
		}

		if actual.Type == domain.ParamTypeInstrument {
			if _, known := instruments[actual.Instrument]; !known {
				return &domain.ParamError{Kind: domain.ParamErrorUnknownInstrument, Name: def.Name}
			}
		}
	}

	return nil
}
