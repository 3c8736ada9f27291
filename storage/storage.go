package storage

import (
	"context"

	"github.com/hupe1980/tmrm/model"
)

// Storage persists proxies and properties for exactly one subject map.
//
// Mutations are durable on return for durable backends. A backend may buffer
// writes as long as reads through the same handle observe them.
type Storage interface {
	// AllocateProxy returns a fresh handle, distinct from every handle
	// previously returned by this storage.
	AllocateProxy(ctx context.Context) (model.ProxyID, error)

	// AddProperty appends a property. Existing properties are never replaced.
	AddProperty(ctx context.Context, p model.Property) error

	// Properties streams the properties of source in insertion order.
	// If key is model.NoProxy all properties of source are returned.
	Properties(ctx context.Context, source, key model.ProxyID) (Cursor[model.Property], error)

	// Proxies streams every allocated handle. The order is stable for the
	// duration of one pass.
	Proxies(ctx context.Context) (Cursor[model.ProxyID], error)

	// Close releases the backend. It is safe to call more than once.
	Close() error
}

// Factory opens a storage from an opaque connection descriptor.
// Failures must be reported as *ConnectionError.
type Factory func(ctx context.Context, descriptor string) (Storage, error)

// ReverseIndex is implemented by backends that can find properties by value.
type ReverseIndex interface {
	// Referrers streams properties whose value equals v. If key is not
	// model.NoProxy only properties with that key are returned.
	Referrers(ctx context.Context, v model.Value, key model.ProxyID) (Cursor[model.Property], error)
}

// DatatypeIndex is implemented by backends that index literals by datatype.
type DatatypeIndex interface {
	// PropertiesByDatatype streams literal-valued properties whose literal
	// has the given datatype.
	PropertiesByDatatype(ctx context.Context, datatype string) (Cursor[model.Property], error)
}

// ProxyLookup is implemented by backends that can test handle existence.
type ProxyLookup interface {
	HasProxy(ctx context.Context, id model.ProxyID) (bool, error)
}
