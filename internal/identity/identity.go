package identity

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// paramTypeTag returns the type-tag prefix spec.md §4.7 requires before a
// parameter's serialized value.
func paramTypeTag(t domain.ParamType) string {
	switch t {
	case domain.ParamTypeInstrument:
		return "Figi"
	case domain.ParamTypeInteger:
		return "Integer"
	case domain.ParamTypeFloat:
		return "Float"
	case domain.ParamTypeBoolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

func paramValueBytes(v domain.ParamValue) []byte {
	switch v.Type {
	case domain.ParamTypeInstrument:
		return append([]byte(paramTypeTag(v.Type)+":"), []byte(v.Instrument)...)
	case domain.ParamTypeInteger:
		return append([]byte(paramTypeTag(v.Type)+":"), LittleEndianInt64(v.Integer)...)
	case domain.ParamTypeFloat:
		return append([]byte(paramTypeTag(v.Type)+":"), LittleEndianFloat64(v.Float)...)
	case domain.ParamTypeBoolean:
		return append([]byte(paramTypeTag(v.Type)+":"), Bool(v.Boolean)...)
	default:
		return nil
	}
}

// addParams serializes a parameter map after sorting keys lexicographically,
// per spec.md §4.7.
func addParams(g *Generator, params map[string]domain.ParamValue) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		g.Add(k, paramValueBytes(params[k]))
	}
}

// StrategyInstance computes the deterministic UUIDv5 of a strategy instance
// definition. Every field that distinguishes two otherwise-identical
// instances (including time_from and resolution) must feed the id, or
// instances differing only in those fields collide on the same durable key.
func StrategyInstance(def domain.StrategyInstanceDefinition) uuid.UUID {
	var g Generator
	g.Add("strategy_name", []byte(def.StrategyName))
	addParams(&g, def.Params)

	g.Add("time_from", []byte(def.TimeFrom.Format("2006-01-02T15:04:05.999999999Z07:00")))
	if def.TimeTo != nil {
		g.Add("time_to", []byte(def.TimeTo.Format("2006-01-02T15:04:05.999999999Z07:00")))
	} else {
		g.AddOptional("time_to", nil, false)
	}
	g.Add("resolution", LittleEndianInt64(int64(def.Resolution)))

	if def.PlaceOrderSettings != nil {
		g.Add("place_order_settings", []byte(PlaceOrderSettingsID(*def.PlaceOrderSettings).String()))
	} else {
		g.AddOptional("place_order_settings", nil, false)
	}

	return g.Generate(StrategyInstanceNamespace)
}

// PlaceOrderSettingsID computes the deterministic UUIDv5 of a place-order
// settings parameter set.
func PlaceOrderSettingsID(s domain.PlaceOrderSettings) uuid.UUID {
	var g Generator
	addParams(&g, s.Params)
	return g.Generate(PlaceOrderSettingsNamespace)
}

// PositionManagerInstance computes the deterministic UUIDv5 of a
// position-manager instance definition. Strategy ids are serialized in
// sorted order, per spec.md §4.7.
func PositionManagerInstance(def domain.PositionManagerInstanceDefinition) uuid.UUID {
	var g Generator
	g.Add("pm_name", []byte(def.PMName))
	addParams(&g, def.Params)

	sorted := make([]uuid.UUID, len(def.Strategies))
	copy(sorted, def.Strategies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	var strategyBytes []byte
	for _, s := range sorted {
		strategyBytes = append(strategyBytes, s[:]...)
		strategyBytes = append(strategyBytes, 0)
	}
	g.Add("strategies", strategyBytes)

	return g.Generate(PositionManagerInstanceNamespace)
}
