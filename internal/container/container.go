// Package container implements the component runtime (C2): a
// dependency-injection container that instantiates a fixed set of named
// singleton components with acyclic dependencies, resolved concurrently and
// torn down in reverse-dependency order. Grounded on the Rust original's
// libraries/component_store/src/component_store.rs.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fedormatantsev/candlerunner/internal/config"
)

// DestroyFunc tears a component down. Destructor errors are logged, not
// propagated (spec.md §4.2: "tear-down is best-effort").
type DestroyFunc func(ctx context.Context) error

// FactoryFunc builds a component of type T, given a Resolver bound to this
// factory's type-tag and the component's own config sub-scope.
type FactoryFunc[T any] func(ctx context.Context, r *Resolver, cfg config.Provider) (T, DestroyFunc, error)

type registryEntry struct {
	typ  reflect.Type
	name string
	// build is the type-erased factory. The returned value has dynamic type
	// T (see FactoryFunc); erased to `any` so heterogeneous factories can
	// share one slice.
	build func(ctx context.Context, r *Resolver, cfg config.Provider) (any, DestroyFunc, error)
}

// Builder accumulates component registrations before Build is called.
type Builder struct {
	mu      sync.Mutex
	known   map[reflect.Type]string
	entries []registryEntry
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{known: make(map[reflect.Type]string)}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register adds a component type to the builder under the given stable
// name. Duplicate registration of the same type fails.
func Register[T any](b *Builder, name string, factory FactoryFunc[T]) error {
	t := typeOf[T]()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.known[t]; exists {
		return &DuplicateRegistrationError{Name: name}
	}
	b.known[t] = name
	b.entries = append(b.entries, registryEntry{
		typ:  t,
		name: name,
		build: func(ctx context.Context, r *Resolver, cfg config.Provider) (any, DestroyFunc, error) {
			return factory(ctx, r, cfg)
		},
	})
	return nil
}

// pendingEntry tracks one in-flight (or completed) component construction.
type pendingEntry struct {
	done  chan struct{}
	value any
	dtor  DestroyFunc
	err   error
}

// buildState is shared by every factory goroutine during one Build call.
type buildState struct {
	mu      sync.Mutex
	known   map[reflect.Type]string
	edges   map[reflect.Type]map[reflect.Type]bool // source -> set of resolved dependencies
	pending map[reflect.Type]*pendingEntry
}

func newBuildState(known map[reflect.Type]string, types []reflect.Type) *buildState {
	s := &buildState{
		known:   known,
		edges:   make(map[reflect.Type]map[reflect.Type]bool),
		pending: make(map[reflect.Type]*pendingEntry, len(types)),
	}
	for _, t := range types {
		s.pending[t] = &pendingEntry{done: make(chan struct{})}
	}
	return s
}

// reaches reports whether from can reach to via recorded edges (DFS). Caller
// must hold s.mu.
func (s *buildState) reaches(from, to reflect.Type, visited map[reflect.Type]bool) bool {
	if from == to {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	for next := range s.edges[from] {
		if s.reaches(next, to, visited) {
			return true
		}
	}
	return false
}

// addEdge records that sourceType resolves depType, failing if that would
// close a cycle with already-known edges.
func (s *buildState) addEdge(sourceType, depType reflect.Type, sourceName, depName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A cycle forms iff depType can already reach sourceType: that path plus
	// the new edge source->dep closes the loop.
	if s.reaches(depType, sourceType, map[reflect.Type]bool{}) {
		return &DependencyCycleError{Source: sourceName, Dependency: depName}
	}

	if s.edges[sourceType] == nil {
		s.edges[sourceType] = make(map[reflect.Type]bool)
	}
	s.edges[sourceType][depType] = true
	return nil
}

func (s *buildState) entry(t reflect.Type) *pendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[t]
}

func (s *buildState) publish(t reflect.Type, value any, dtor DestroyFunc) {
	e := s.entry(t)
	e.value, e.dtor = value, dtor
	close(e.done)
}

func (s *buildState) fail(t reflect.Type, err error) {
	e := s.entry(t)
	e.err = err
	close(e.done)
}

// transitiveDeps returns the set of all types reachable from t via edges
// (i.e. everything t depends on, directly or indirectly).
func (s *buildState) transitiveDeps(t reflect.Type) map[reflect.Type]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[reflect.Type]bool)
	var visit func(reflect.Type)
	visit = func(cur reflect.Type) {
		for next := range s.edges[cur] {
			if !out[next] {
				out[next] = true
				visit(next)
			}
		}
	}
	visit(t)
	return out
}

// Resolver is handed to one factory during Build, bound to that factory's
// own type-tag so resolve calls can be attributed to it in the dependency
// DAG and in error messages.
type Resolver struct {
	sourceType reflect.Type
	sourceName string
	state      *buildState
}

// Resolve looks up component type U from within a factory for component T,
// blocking until U's construction publishes or fails.
func Resolve[U any](ctx context.Context, r *Resolver) (U, error) {
	var zero U
	depType := typeOf[U]()

	depName, ok := r.state.known[depType]
	if !ok {
		return zero, &UnknownComponentError{Source: r.sourceName, Dependency: depType.String()}
	}

	if err := r.state.addEdge(r.sourceType, depType, r.sourceName, depName); err != nil {
		return zero, err
	}

	entry := r.state.entry(depType)
	select {
	case <-entry.done:
		if entry.err != nil {
			return zero, entry.err
		}
		return entry.value.(U), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// destructor pairs a component's name and teardown function with its
// transitive-dependency count, used only to sort teardown order.
type destructor struct {
	name       string
	fn         DestroyFunc
	depthCount int
}

// Container holds built component singletons and their teardown order.
type Container struct {
	components map[reflect.Type]any
	destroyers []destructor
	logger     *slog.Logger
	destroyed  sync.Once
}

// Build launches every registered factory concurrently, resolving
// dependencies against each other through Resolver.Resolve, and returns a
// populated Container. Build is all-or-nothing: the first factory failure
// fails the whole build.
func (b *Builder) Build(ctx context.Context, cfg config.Provider, logger *slog.Logger) (*Container, error) {
	b.mu.Lock()
	entries := append([]registryEntry(nil), b.entries...)
	known := make(map[reflect.Type]string, len(b.known))
	for k, v := range b.known {
		known[k] = v
	}
	b.mu.Unlock()

	if logger == nil {
		logger = slog.Default()
	}

	types := make([]reflect.Type, len(entries))
	for i, e := range entries {
		types[i] = e.typ
	}
	state := newBuildState(known, types)

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			subcfg, err := cfg.SubConfig(e.name)
			if err != nil {
				wrapped := &InitializationError{Name: e.name, Err: fmt.Errorf("resolving config sub-scope: %w", err)}
				state.fail(e.typ, wrapped)
				return wrapped
			}

			logger.Info("creating component", "component", e.name)
			resolver := &Resolver{sourceType: e.typ, sourceName: e.name, state: state}
			value, dtor, err := e.build(gctx, resolver, subcfg)
			if err != nil {
				state.fail(e.typ, err)
				return err
			}
			state.publish(e.typ, value, dtor)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	components := make(map[reflect.Type]any, len(entries))
	destroyers := make([]destructor, 0, len(entries))
	for _, e := range entries {
		entry := state.entry(e.typ)
		components[e.typ] = entry.value
		if entry.dtor != nil {
			destroyers = append(destroyers, destructor{
				name:       e.name,
				fn:         entry.dtor,
				depthCount: len(state.transitiveDeps(e.typ)),
			})
		}
	}

	// Descending transitive-dependency count: dependents die first.
	sort.SliceStable(destroyers, func(i, j int) bool {
		return destroyers[i].depthCount > destroyers[j].depthCount
	})

	return &Container{components: components, destroyers: destroyers, logger: logger}, nil
}

// Get looks up a built component by type. It is only valid after a
// successful Build.
func Get[T any](c *Container) (T, bool) {
	var zero T
	v, ok := c.components[typeOf[T]()]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Destroy tears down every component in reverse-dependency order,
// sequentially. It is idempotent: calling it twice is a no-op. Destructor
// errors are logged, not propagated.
func (c *Container) Destroy(ctx context.Context) {
	c.destroyed.Do(func() {
		for _, d := range c.destroyers {
			c.logger.Info("shutting down component", "component", d.name)
			if err := d.fn(ctx); err != nil {
				c.logger.Error("component teardown failed", "component", d.name, "error", err)
			}
		}
	})
}
