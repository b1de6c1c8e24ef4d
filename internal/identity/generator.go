// Package identity computes deterministic UUIDv5 fingerprints for strategy
// and position-manager instance definitions (C12), grounded on the Rust
// original's utils/id_generator.rs and models/namespaces.rs.
package identity

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Generator builds the canonical byte serialization consumed by UUIDv5, per
// spec.md §4.7: for each field, the field name bytes, an ASCII ':', the
// value bytes, and a NUL terminator.
type Generator struct {
	bytes []byte
}

// Add appends a key:value\0 record.
func (g *Generator) Add(key string, value []byte) {
	g.bytes = append(g.bytes, key...)
	g.bytes = append(g.bytes, ':')
	g.bytes = append(g.bytes, value...)
	g.bytes = append(g.bytes, 0)
}

// sentinel used for absent optional fields, per spec.md §4.7.
const noneSentinel = "<None>"

// AddOptional appends value if present, or the literal <None> sentinel.
func (g *Generator) AddOptional(key string, value []byte, present bool) {
	if present {
		g.Add(key, value)
		return
	}
	g.Add(key, []byte(noneSentinel))
}

// AddRaw appends raw bytes with no key/terminator framing, for composite
// fields (e.g. the sorted strategy-id list) that build their own internal
// structure.
func (g *Generator) AddRaw(b []byte) {
	g.bytes = append(g.bytes, b...)
}

// Generate produces the UUIDv5 of the accumulated bytes under ns.
func (g *Generator) Generate(ns uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(ns, g.bytes)
}

// Namespace constants, one per id kind, matching the Rust original's
// Uuid::new_v5(&Uuid::NAMESPACE_OID, "<tag>") pattern.
var (
	StrategyInstanceNamespace     = uuid.NewSHA1(uuid.NameSpaceOID, []byte("strategyInstanceId"))
	PositionManagerInstanceNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("Position Manager Instance Id"))
	PlaceOrderSettingsNamespace   = uuid.NewSHA1(uuid.NameSpaceOID, []byte("placeOrderSettings"))
	ParamsSetNamespace            = uuid.NewSHA1(uuid.NameSpaceOID, []byte("paramsSet"))
)

// LittleEndianInt64 encodes a signed 64-bit integer as little-endian
// two's-complement bytes.
func LittleEndianInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

// LittleEndianFloat64 encodes a 64-bit real as its little-endian IEEE-754
// bit pattern.
func LittleEndianFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

// Bool encodes a boolean as one byte, 0 or 1.
func Bool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
