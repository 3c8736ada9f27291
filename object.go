package tmrm

import (
	"fmt"

	"github.com/hupe1980/tmrm/model"
)

// ObjectType discriminates the variants of an Object.
type ObjectType int

const (
	TypeProxy ObjectType = iota + 1
	TypeLiteral
	TypeProperty
)

func (t ObjectType) String() string {
	switch t {
	case TypeProxy:
		return "proxy"
	case TypeLiteral:
		return "literal"
	case TypeProperty:
		return "property"
	default:
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
}

// Object is one element yielded by an Iterator.
type Object struct {
	typ      ObjectType
	proxy    *Proxy
	literal  model.Literal
	property *Property
}

// ProxyObject wraps p.
func ProxyObject(p *Proxy) Object { return Object{typ: TypeProxy, proxy: p} }

// LiteralObject wraps l.
func LiteralObject(l model.Literal) Object { return Object{typ: TypeLiteral, literal: l} }

// PropertyObject wraps p.
func PropertyObject(p *Property) Object { return Object{typ: TypeProperty, property: p} }

// Type returns the variant held by o. The zero Object has type 0.
func (o Object) Type() ObjectType { return o.typ }

// Proxy returns the proxy held by o.
func (o Object) Proxy() (*Proxy, error) {
	if o.typ != TypeProxy {
		return nil, &TypeMismatchError{Want: TypeProxy, Got: o.typ}
	}
	return o.proxy, nil
}

// Literal returns the literal held by o.
func (o Object) Literal() (model.Literal, error) {
	if o.typ != TypeLiteral {
		return model.Literal{}, &TypeMismatchError{Want: TypeLiteral, Got: o.typ}
	}
	return o.literal, nil
}

// Property returns the property held by o.
func (o Object) Property() (*Property, error) {
	if o.typ != TypeProperty {
		return nil, &TypeMismatchError{Want: TypeProperty, Got: o.typ}
	}
	return o.property, nil
}

func (o Object) String() string {
	switch o.typ {
	case TypeProxy:
		return o.proxy.id.String()
	case TypeLiteral:
		return o.literal.String()
	case TypeProperty:
		return o.property.raw.String()
	default:
		return "<invalid>"
	}
}

// Property is a typed view of a stored (source, key, value) edge.
type Property struct {
	m   *SubjectMap
	raw model.Property
}

func newProperty(m *SubjectMap, raw model.Property) *Property {
	return &Property{m: m, raw: raw}
}

// Source returns the proxy the property belongs to.
func (p *Property) Source() *Proxy { return p.m.handle(p.raw.Source) }

// Key returns the key proxy.
func (p *Property) Key() *Proxy { return p.m.handle(p.raw.Key) }

// Value returns the value as a proxy or literal Object.
func (p *Property) Value() Object { return valueObject(p.m, p.raw.Value) }

// Raw returns the stored edge.
func (p *Property) Raw() model.Property { return p.raw }

func valueObject(m *SubjectMap, v model.Value) Object {
	if id, ok := v.Proxy(); ok {
		return ProxyObject(m.handle(id))
	}
	l, _ := v.Literal()
	return LiteralObject(l)
}
