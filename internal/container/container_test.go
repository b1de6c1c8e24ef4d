package container

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fedormatantsev/candlerunner/internal/config"
)

// emptyConfig gives every component name used below its own empty table,
// since Build hands each factory the sub-scope named after its component.
func emptyConfig() config.Provider {
	return config.NewProvider(map[string]any{
		"a": map[string]any{},
		"b": map[string]any{},
		"c": map[string]any{},
		"d": map[string]any{},
	})
}

type componentA struct{}
type componentB struct{ a *componentA }
type componentC struct {
	a *componentA
	b *componentB
}
type componentD struct {
	a *componentA
	b *componentB
	c *componentC
}

// TestContainer_ChainBuildAndDestroy covers Testable Property #1 and
// Scenario S1: chain A<-B<-C<-D builds successfully and destroys in order
// D, C, B, A.
func TestContainer_ChainBuildAndDestroy(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) DestroyFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	b := NewBuilder()
	mustRegister(t, b, "a", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentA, DestroyFunc, error) {
		return &componentA{}, record("a"), nil
	})
	mustRegister(t, b, "b", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentB, DestroyFunc, error) {
		a, err := Resolve[*componentA](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentB{a: a}, record("b"), nil
	})
	mustRegister(t, b, "c", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentC, DestroyFunc, error) {
		a, err := Resolve[*componentA](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		bb, err := Resolve[*componentB](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentC{a: a, b: bb}, record("c"), nil
	})
	mustRegister(t, b, "d", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentD, DestroyFunc, error) {
		a, err := Resolve[*componentA](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		bb, err := Resolve[*componentB](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		cc, err := Resolve[*componentC](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentD{a: a, b: bb, c: cc}, record("d"), nil
	})

	c, err := b.Build(context.Background(), emptyConfig(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := Get[*componentA](c); !ok {
		t.Fatal("expected componentA to resolve")
	}
	if _, ok := Get[*componentD](c); !ok {
		t.Fatal("expected componentD to resolve")
	}

	c.Destroy(context.Background())

	want := []string{"d", "c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("destroy order length = %d, want %d (%v)", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("destroy order = %v, want %v", order, want)
		}
	}

	// Idempotent shutdown (Testable Property #11).
	c.Destroy(context.Background())
	if len(order) != len(want) {
		t.Fatalf("second Destroy call changed order: %v", order)
	}
}

// TestContainer_Diamond covers the diamond case of Testable Property #1:
// A<-{B,C}<-D. D must die first and A last; B and C may die in either
// relative order but strictly between D and A.
func TestContainer_Diamond(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) DestroyFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	b := NewBuilder()
	mustRegister(t, b, "a", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentA, DestroyFunc, error) {
		return &componentA{}, record("a"), nil
	})
	mustRegister(t, b, "b", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentB, DestroyFunc, error) {
		a, err := Resolve[*componentA](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentB{a: a}, record("b"), nil
	})
	mustRegister(t, b, "c", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentC, DestroyFunc, error) {
		a, err := Resolve[*componentA](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentC{a: a}, record("c"), nil
	})
	mustRegister(t, b, "d", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentD, DestroyFunc, error) {
		bb, err := Resolve[*componentB](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		cc, err := Resolve[*componentC](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return &componentD{b: bb, c: cc}, record("d"), nil
	})

	c, err := b.Build(context.Background(), emptyConfig(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c.Destroy(context.Background())

	if order[0] != "d" {
		t.Fatalf("expected d first, got %v", order)
	}
	if order[3] != "a" {
		t.Fatalf("expected a last, got %v", order)
	}
}

// TestContainer_CycleDetection covers Testable Property #2: A resolves B
// and B resolves A fails build with DependencyCycle.
func TestContainer_CycleDetection(t *testing.T) {
	b := NewBuilder()
	mustRegister(t, b, "a", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentA, DestroyFunc, error) {
		_, err := Resolve[*componentB](ctx, r)
		return &componentA{}, nil, err
	})
	mustRegister(t, b, "b", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentB, DestroyFunc, error) {
		_, err := Resolve[*componentA](ctx, r)
		return &componentB{}, nil, err
	})

	_, err := b.Build(context.Background(), emptyConfig(), nil)
	if err == nil {
		t.Fatal("expected build to fail on cycle")
	}
	var cycleErr *DependencyCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected DependencyCycleError, got %v", err)
	}
}

// TestContainer_UnknownComponent covers Testable Property #3 and Scenario
// S2: B resolves unregistered A, build fails with UnknownComponent.
func TestContainer_UnknownComponent(t *testing.T) {
	b := NewBuilder()
	mustRegister(t, b, "b", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentB, DestroyFunc, error) {
		_, err := Resolve[*componentA](ctx, r)
		return nil, nil, err
	})

	_, err := b.Build(context.Background(), emptyConfig(), nil)
	if err == nil {
		t.Fatal("expected build to fail on unknown dependency")
	}
	var unknownErr *UnknownComponentError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownComponentError, got %v", err)
	}
	if unknownErr.Source != "b" {
		t.Fatalf("expected source %q, got %q", "b", unknownErr.Source)
	}
}

func TestContainer_DuplicateRegistration(t *testing.T) {
	b := NewBuilder()
	mustRegister(t, b, "a", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentA, DestroyFunc, error) {
		return &componentA{}, nil, nil
	})
	err := Register(b, "a-again", func(ctx context.Context, r *Resolver, cfg config.Provider) (*componentA, DestroyFunc, error) {
		return &componentA{}, nil, nil
	})
	var dupErr *DuplicateRegistrationError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateRegistrationError, got %v", err)
	}
}

func mustRegister[T any](t *testing.T, b *Builder, name string, f FactoryFunc[T]) {
	t.Helper()
	if err := Register(b, name, f); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
}
