package quorum

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

func TestFactory_Definition(t *testing.T) {
	def := Factory{}.Definition()
	if def.Name != "QuorumManager" {
		t.Fatalf("expected name QuorumManager, got %q", def.Name)
	}
	if len(def.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(def.Params))
	}
	for _, p := range def.Params {
		if p.Type != domain.ParamTypeFloat {
			t.Fatalf("expected Float-typed param %q, got %v", p.Name, p.Type)
		}
	}
}

func TestFactory_Create_MissingThreshold(t *testing.T) {
	if _, err := (Factory{}).Create(map[string]domain.ParamValue{
		paramNameBuyThreshold: {Type: domain.ParamTypeFloat, Float: 0.6},
	}, nil); err == nil {
		t.Fatalf("expected an error when the sell threshold is missing")
	}
}

func TestFactory_Create_OK(t *testing.T) {
	strategies := []domain.StrategyInstanceID{uuid.New()}
	params := map[string]domain.ParamValue{
		paramNameBuyThreshold:  {Type: domain.ParamTypeFloat, Float: 0.6},
		paramNameSellThreshold: {Type: domain.ParamTypeFloat, Float: 0.4},
	}

	pm, err := (Factory{}).Create(params, strategies)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	orders, err := pm.Execute(time.Now(), nil, domain.AccountPositions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if orders != nil {
		t.Fatalf("expected no orders from the unimplemented decision logic, got %v", orders)
	}
}
