package identity

import (
	"testing"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

func sampleDef() domain.StrategyInstanceDefinition {
	return domain.StrategyInstanceDefinition{
		StrategyName: "buy_and_hold",
		Params: map[string]domain.ParamValue{
			"instrument": {Type: domain.ParamTypeInstrument, Instrument: "FIGI001"},
			"size":       {Type: domain.ParamTypeInteger, Integer: 10},
			"threshold":  {Type: domain.ParamTypeFloat, Float: 0.5},
			"enabled":    {Type: domain.ParamTypeBoolean, Boolean: true},
		},
		TimeFrom:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Resolution: domain.OneHour,
	}
}

// TestStrategyInstance_IdentityStable verifies Testable Property #5: for any
// instance definition, permuting parameter-map iteration order yields the
// same UUIDv5. Go map iteration order is already randomized per run, so
// repeated calls across process-level randomized maps exercise this
// directly; this test additionally rebuilds the map via distinct insertion
// orders to make the intent explicit.
func TestStrategyInstance_IdentityStable(t *testing.T) {
	def1 := sampleDef()

	def2 := def1
	def2.Params = map[string]domain.ParamValue{}
	for _, k := range []string{"threshold", "enabled", "instrument", "size"} {
		def2.Params[k] = def1.Params[k]
	}

	id1 := StrategyInstance(def1)
	id2 := StrategyInstance(def2)

	if id1 != id2 {
		t.Fatalf("expected stable id across param insertion orders, got %s vs %s", id1, id2)
	}
}

func TestStrategyInstance_DifferentParamsDifferentID(t *testing.T) {
	def1 := sampleDef()
	def2 := sampleDef()
	def2.Params["size"] = domain.ParamValue{Type: domain.ParamTypeInteger, Integer: 11}

	if StrategyInstance(def1) == StrategyInstance(def2) {
		t.Fatal("expected different ids for different param values")
	}
}

func TestStrategyInstance_DifferentTimeFromDifferentID(t *testing.T) {
	def1 := sampleDef()
	def2 := sampleDef()
	def2.TimeFrom = def1.TimeFrom.AddDate(0, 0, 1)

	if StrategyInstance(def1) == StrategyInstance(def2) {
		t.Fatal("expected different ids for different time_from values")
	}
}

func TestStrategyInstance_DifferentResolutionDifferentID(t *testing.T) {
	def1 := sampleDef()
	def2 := sampleDef()
	def2.Resolution = domain.OneDay

	if def1.Resolution == def2.Resolution {
		t.Fatal("sample definitions must differ in resolution for this test to be meaningful")
	}
	if StrategyInstance(def1) == StrategyInstance(def2) {
		t.Fatal("expected different ids for different resolution values")
	}
}

func TestPositionManagerInstance_StrategyOrderIndependent(t *testing.T) {
	a := domain.StrategyInstanceDefinition{StrategyName: "a"}
	b := domain.StrategyInstanceDefinition{StrategyName: "b"}
	idA := StrategyInstance(a)
	idB := StrategyInstance(b)

	def1 := domain.PositionManagerInstanceDefinition{
		PMName:     "quorum",
		Strategies: []domain.StrategyInstanceID{idA, idB},
	}
	def2 := domain.PositionManagerInstanceDefinition{
		PMName:     "quorum",
		Strategies: []domain.StrategyInstanceID{idB, idA},
	}

	if PositionManagerInstance(def1) != PositionManagerInstance(def2) {
		t.Fatal("expected PM instance id to be independent of strategy list order")
	}
}
