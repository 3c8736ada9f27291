package tmrm

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/ontology"
	"github.com/hupe1980/tmrm/storage"
)

var (
	// ErrIteratorExhausted is returned by Iterator.Next and Iterator.Object
	// past the last element.
	ErrIteratorExhausted = errors.New("iterator exhausted")

	// ErrSubjectMapClosed is returned by operations on a closed subject map
	// and by a second Close.
	ErrSubjectMapClosed = errors.New("subject map closed")

	// ErrSphereClosed is returned by operations on a closed sphere.
	ErrSphereClosed = errors.New("sphere closed")

	// ErrProxyReleased is returned by operations on a freed proxy handle.
	ErrProxyReleased = errors.New("proxy released")

	// ErrUnknownStorage is returned when no factory is registered for a
	// backend name.
	ErrUnknownStorage = errors.New("unknown storage backend")

	// ErrResetUnsupported is returned by Iterator.Reset when the backend
	// cursor cannot rewind.
	ErrResetUnsupported = errors.New("iterator reset not supported")

	// ErrNotFound is returned when an alias, label or handle does not resolve.
	ErrNotFound = errors.New("not found")
)

// Errors defined by the storage and ontology packages.
type (
	// ConnectionError reports a storage that could not be opened.
	ConnectionError = storage.ConnectionError
	// StorageError reports a failed backend operation.
	StorageError = storage.Error
	// OntologyParseError reports a malformed ontology document.
	OntologyParseError = ontology.ParseError
	// UndefinedAliasError reports a reference to an alias that is not bound.
	UndefinedAliasError = ontology.UndefinedAliasError
)

// CrossMapReferenceError reports a proxy used in a subject map it does not
// belong to. Nothing is recorded when it is returned.
type CrossMapReferenceError struct {
	Op string
	// Map is the subject map of the source proxy.
	Map string
	// Other is the subject map of the offending proxy.
	Other string
	Proxy model.ProxyID
}

func (e *CrossMapReferenceError) Error() string {
	return fmt.Sprintf("%s: proxy %s of subject map %q used in subject map %q", e.Op, e.Proxy, e.Other, e.Map)
}

// TypeMismatchError reports a downcast of an Object to the wrong variant.
type TypeMismatchError struct {
	Want ObjectType
	Got  ObjectType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

// DuplicateNameError reports a subject map name or backend name that is
// already taken in a sphere.
type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate %s name %q", e.Kind, e.Name)
}

func aliasNotFound(alias string) error {
	return fmt.Errorf("alias %q: %w", alias, ErrNotFound)
}
