package container

import "fmt"

// UnknownComponentError is returned when a factory resolves a type that was
// never registered with the Builder.
type UnknownComponentError struct {
	Source     string
	Dependency string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("container: %q depends on unregistered component %q", e.Source, e.Dependency)
}

// DependencyCycleError is returned when recording a resolve edge would close
// a cycle in the dependency DAG.
type DependencyCycleError struct {
	Source     string
	Dependency string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf(
		"container: %q requires %q, but %q is already a (transitive) dependency of %q",
		e.Source, e.Dependency, e.Source, e.Dependency,
	)
}

// DuplicateRegistrationError is returned by Register when the same
// component type is registered twice.
type DuplicateRegistrationError struct {
	Name string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("container: component %q is already registered", e.Name)
}

// InitializationError wraps an arbitrary factory failure with the
// component's declared name.
type InitializationError struct {
	Name string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("container: failed to initialize %q: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
