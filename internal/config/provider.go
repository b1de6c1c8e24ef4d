// Package config implements the typed, keyed configuration surface the core
// components read from: a tree of named scopes decoded from TOML, exposed
// through typed getters and nested sub-scopes.
package config

import (
	"fmt"
)

// NotFoundError is returned when a requested path has no value.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config: not found: %s", e.Path)
}

// TypeMismatchError is returned when a requested path holds a value of a
// different type than the caller expected.
type TypeMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("config: type mismatch at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Provider is the typed keyed-lookup surface. Implementations must carry
// their current path prefix so that error messages (and SubConfig results)
// report fully-qualified paths.
type Provider interface {
	GetString(key string) (string, error)
	GetInt64(key string) (int64, error)
	GetUint64(key string) (uint64, error)
	GetFloat64(key string) (float64, error)
	GetBool(key string) (bool, error)
	SubConfig(key string) (Provider, error)
}

// treeProvider is a Provider backed by a decoded map[string]any tree. prefix
// is the dotted path from the root, used only for error messages.
type treeProvider struct {
	tree   map[string]any
	prefix string
}

// NewProvider wraps a decoded configuration tree as a root Provider.
func NewProvider(tree map[string]any) Provider {
	return &treeProvider{tree: tree}
}

func (p *treeProvider) path(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "." + key
}

func (p *treeProvider) lookup(key string) (any, bool) {
	v, ok := p.tree[key]
	return v, ok
}

func (p *treeProvider) GetString(key string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return "", &NotFoundError{Path: p.path(key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeMismatchError{Path: p.path(key), Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

func (p *treeProvider) GetInt64(key string) (int64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, &NotFoundError{Path: p.path(key)}
	}
	n, ok := v.(int64)
	if !ok {
		return 0, &TypeMismatchError{Path: p.path(key), Expected: "int64", Actual: typeName(v)}
	}
	return n, nil
}

// GetUint64 reads a signed integer value and rejects negatives, per
// spec.md §4.1 ("unsigned 64-bit (reject on negative)").
func (p *treeProvider) GetUint64(key string) (uint64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, &NotFoundError{Path: p.path(key)}
	}
	n, ok := v.(int64)
	if !ok {
		return 0, &TypeMismatchError{Path: p.path(key), Expected: "uint64", Actual: typeName(v)}
	}
	if n < 0 {
		return 0, &TypeMismatchError{Path: p.path(key), Expected: "uint64", Actual: "negative int64"}
	}
	return uint64(n), nil
}

func (p *treeProvider) GetFloat64(key string) (float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, &NotFoundError{Path: p.path(key)}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, &TypeMismatchError{Path: p.path(key), Expected: "float64", Actual: typeName(v)}
	}
}

func (p *treeProvider) GetBool(key string) (bool, error) {
	v, ok := p.lookup(key)
	if !ok {
		return false, &NotFoundError{Path: p.path(key)}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeMismatchError{Path: p.path(key), Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

func (p *treeProvider) SubConfig(key string) (Provider, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, &NotFoundError{Path: p.path(key)}
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil, &TypeMismatchError{Path: p.path(key), Expected: "table", Actual: typeName(v)}
	}
	return &treeProvider{tree: sub, prefix: p.path(key)}, nil
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "bool"
	case map[string]any:
		return "table"
	case []any:
		return "array"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}
