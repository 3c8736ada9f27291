package model

import (
	"fmt"
	"strconv"
)

// ProxyID is the storage-assigned handle of a proxy.
//
// Backends allocate ids starting at 1. Two proxies of the same subject map
// denote the same subject iff their ids are equal.
type ProxyID uint64

// NoProxy is never allocated. Lookups use it as the "any key" wildcard.
const NoProxy ProxyID = 0

// String returns the blank-node style name of the id.
func (id ProxyID) String() string {
	return "_:" + strconv.FormatUint(uint64(id), 10)
}

// Literal is an immutable (value, datatype) pair.
type Literal struct {
	value    string
	datatype string
}

// NewLiteral creates a literal. The datatype is an arbitrary URI.
func NewLiteral(value, datatype string) Literal {
	return Literal{value: value, datatype: datatype}
}

// Value returns the lexical value.
func (l Literal) Value() string { return l.value }

// Datatype returns the datatype URI.
func (l Literal) Datatype() string { return l.datatype }

// Equal reports whether both value and datatype match.
func (l Literal) Equal(o Literal) bool {
	return l.value == o.value && l.datatype == o.datatype
}

// String returns the literal in "value"^^<datatype> notation.
func (l Literal) String() string {
	return fmt.Sprintf("%q^^<%s>", l.value, l.datatype)
}

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	// KindProxy marks a proxy-valued property.
	KindProxy ValueKind = iota + 1
	// KindLiteral marks a literal-valued property.
	KindLiteral
)

func (k ValueKind) String() string {
	switch k {
	case KindProxy:
		return "proxy"
	case KindLiteral:
		return "literal"
	default:
		return "invalid"
	}
}

// Value is the tagged union of proxy and literal property values.
// The zero Value is invalid.
type Value struct {
	kind    ValueKind
	proxy   ProxyID
	literal Literal
}

// ProxyValue wraps a proxy id.
func ProxyValue(id ProxyID) Value {
	return Value{kind: KindProxy, proxy: id}
}

// LiteralValue wraps a literal.
func LiteralValue(l Literal) Value {
	return Value{kind: KindLiteral, literal: l}
}

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v holds either variant.
func (v Value) IsValid() bool {
	return v.kind == KindProxy || v.kind == KindLiteral
}

// Proxy returns the proxy id and true if v is proxy-valued.
func (v Value) Proxy() (ProxyID, bool) {
	return v.proxy, v.kind == KindProxy
}

// Literal returns the literal and true if v is literal-valued.
func (v Value) Literal() (Literal, bool) {
	return v.literal, v.kind == KindLiteral
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindProxy:
		return v.proxy == o.proxy
	case KindLiteral:
		return v.literal.Equal(o.literal)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindProxy:
		return v.proxy.String()
	case KindLiteral:
		return v.literal.String()
	default:
		return "<invalid>"
	}
}

// Property is a directed edge (Source, Key, Value).
//
// Keys are always proxies. Properties are multi-valued: the same
// (Source, Key) pair may carry any number of values, duplicates included.
type Property struct {
	Source ProxyID
	Key    ProxyID
	Value  Value
}

// String returns a debug representation of the property.
func (p Property) String() string {
	return fmt.Sprintf("(%s, %s, %s)", p.Source, p.Key, p.Value)
}
