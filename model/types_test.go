package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteral_Equal(t *testing.T) {
	a := NewLiteral("Terje", "http://www.w3.org/2001/XMLSchema#string")
	b := NewLiteral("Terje", "http://www.w3.org/2001/XMLSchema#string")
	c := NewLiteral("Terje", "urn:other")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "Terje", a.Value())
	assert.Equal(t, "urn:other", c.Datatype())
}

func TestValue(t *testing.T) {
	t.Run("Proxy", func(t *testing.T) {
		v := ProxyValue(7)
		assert.Equal(t, KindProxy, v.Kind())
		id, ok := v.Proxy()
		assert.True(t, ok)
		assert.Equal(t, ProxyID(7), id)
		_, ok = v.Literal()
		assert.False(t, ok)
		assert.Equal(t, "_:7", v.String())
	})

	t.Run("Literal", func(t *testing.T) {
		v := LiteralValue(NewLiteral("x", "urn:dt"))
		assert.Equal(t, KindLiteral, v.Kind())
		l, ok := v.Literal()
		assert.True(t, ok)
		assert.Equal(t, "x", l.Value())
		_, ok = v.Proxy()
		assert.False(t, ok)
	})

	t.Run("Equal", func(t *testing.T) {
		assert.True(t, ProxyValue(1).Equal(ProxyValue(1)))
		assert.False(t, ProxyValue(1).Equal(ProxyValue(2)))
		assert.False(t, ProxyValue(1).Equal(LiteralValue(NewLiteral("1", ""))))
		assert.True(t, LiteralValue(NewLiteral("a", "b")).Equal(LiteralValue(NewLiteral("a", "b"))))
	})

	t.Run("Zero", func(t *testing.T) {
		var v Value
		assert.False(t, v.IsValid())
		assert.Equal(t, "invalid", v.Kind().String())
	})
}
