package strategycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

type fakeStore struct {
	domain.Store
	defs map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition
}

func (f *fakeStore) ReadStrategyInstances(ctx context.Context) (map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition, error) {
	return f.defs, nil
}

type fakeStrategy struct{ domain.Strategy }

type fakeRegistry struct {
	failNames map[string]bool
}

func (r *fakeRegistry) Instantiate(v Validator, def domain.StrategyInstanceDefinition) (domain.Strategy, error) {
	if r.failNames[def.StrategyName] {
		return nil, errors.New("boom")
	}
	// A fresh pointer per call, so a reinstantiated handle compares unequal.
	return &fakeStrategy{}, nil
}

type noopValidator struct{}

func (noopValidator) Validate([]domain.ParamDefinition, map[string]domain.ParamValue) error { return nil }

// TestCache_ReusesExistingInstances covers C9's identity-stable-reuse
// contract: an id present in both the previous and the new snapshot keeps
// its existing Strategy handle rather than reinstantiating.
func TestCache_ReusesExistingInstances(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{defs: map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition{
		id: {StrategyName: "buy-and-hold"},
	}}
	registry := &fakeRegistry{}

	ctx := context.Background()
	c := New(ctx, time.Hour, store, registry, noopValidator{}, nil)

	first := c.State()[id]

	timeout := time.Second
	if err := c.p.ForceUpdate(ctx, &timeout); err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	waitForState(t, c, func(s State) bool { return len(s) == 1 })

	second := c.State()[id]
	if first.Strategy != second.Strategy {
		t.Fatalf("expected the same Strategy handle to be reused across ticks")
	}
}

// TestCache_SkipsFailedInstantiations verifies instantiation failures are
// skipped but do not affect other instances.
func TestCache_SkipsFailedInstantiations(t *testing.T) {
	okID := uuid.New()
	failID := uuid.New()

	store := &fakeStore{defs: map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition{
		okID:   {StrategyName: "buy-and-hold"},
		failID: {StrategyName: "broken"},
	}}
	registry := &fakeRegistry{failNames: map[string]bool{"broken": true}}

	ctx := context.Background()
	c := New(ctx, time.Hour, store, registry, noopValidator{}, nil)

	state := c.State()
	if _, ok := state[okID]; !ok {
		t.Fatalf("expected okID to be present")
	}
	if _, ok := state[failID]; ok {
		t.Fatalf("expected failID to be absent after instantiation failure")
	}
}

func waitForState(t *testing.T, c *Cache, pred func(State) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pred(c.State()) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state predicate never satisfied")
}
