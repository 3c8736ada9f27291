package tmrm

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/hupe1980/tmrm/storage"
	"github.com/hupe1980/tmrm/storage/memory"
)

// Sphere is the root of ownership: it holds named subject maps and the
// storage backends they can be opened with.
//
// A Sphere is safe for concurrent use.
type Sphere struct {
	opts options

	mu        sync.Mutex
	closed    bool
	maps      map[string]*SubjectMap
	loading   map[string]bool
	factories map[string]storage.Factory
}

// NewSphere creates an empty sphere. The "memory" backend is always
// registered.
func NewSphere(optFns ...Option) *Sphere {
	opts := applyOptions(optFns)

	factories := map[string]storage.Factory{memory.Name: memory.Open}
	for name, f := range opts.factories {
		factories[name] = f
	}

	return &Sphere{
		opts:      opts,
		maps:      make(map[string]*SubjectMap),
		loading:   make(map[string]bool),
		factories: factories,
	}
}

// RegisterStorage adds a storage backend. Registering a taken name fails
// with *DuplicateNameError.
func (s *Sphere) RegisterStorage(name string, f storage.Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSphereClosed
	}
	if _, ok := s.factories[name]; ok {
		return &DuplicateNameError{Kind: "storage", Name: name}
	}
	s.factories[name] = f
	return nil
}

// Backends returns the registered backend names in sorted order.
func (s *Sphere) Backends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OpenStorage opens a backend with an opaque connection descriptor. Every
// failure is a *ConnectionError.
func (s *Sphere) OpenStorage(ctx context.Context, backend, descriptor string) (storage.Storage, error) {
	s.mu.Lock()
	closed := s.closed
	f, ok := s.factories[backend]
	s.mu.Unlock()

	var (
		st  storage.Storage
		err error
	)
	switch {
	case closed:
		err = &ConnectionError{Backend: backend, Err: ErrSphereClosed}
	case !ok:
		err = &ConnectionError{Backend: backend, Err: ErrUnknownStorage}
	default:
		st, err = f(ctx, descriptor)
		var ce *ConnectionError
		if err != nil && !errors.As(err, &ce) {
			err = &ConnectionError{Backend: backend, Err: err}
		}
	}

	s.opts.logger.LogStorageOpen(ctx, backend, err)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewSubjectMap creates a subject map named name that owns st. The alias
// registry is loaded from st, so reopening a durable storage restores its
// bottom proxies.
//
// If the name is taken the call fails with *DuplicateNameError and st is
// left open.
func (s *Sphere) NewSubjectMap(ctx context.Context, st storage.Storage, name string) (*SubjectMap, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSphereClosed
	}
	if _, ok := s.maps[name]; ok || s.loading[name] {
		s.mu.Unlock()
		return nil, &DuplicateNameError{Kind: "subject map", Name: name}
	}
	s.loading[name] = true
	s.mu.Unlock()

	// The registry is loaded without the sphere lock; the reservation keeps
	// concurrent creations of name out.
	m := newSubjectMap(s, st, name)
	err := m.loadRegistry(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.loading, name)
	if err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrSphereClosed
	}
	s.maps[name] = m
	return m, nil
}

// SubjectMap returns the open subject map named name.
func (s *Sphere) SubjectMap(name string) (*SubjectMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.maps[name]
	return m, ok
}

// Names returns the names of all open subject maps in sorted order.
func (s *Sphere) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.maps))
	for name := range s.maps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Sphere) remove(name string, m *SubjectMap) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maps[name] == m {
		delete(s.maps, name)
	}
}

// Close closes every subject map in the sphere. Closing a closed sphere is
// a no-op.
func (s *Sphere) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	maps := make([]*SubjectMap, 0, len(s.maps))
	for _, m := range s.maps {
		maps = append(maps, m)
	}
	s.mu.Unlock()

	var errs []error
	for _, m := range maps {
		if err := m.Close(); err != nil && !errors.Is(err, ErrSubjectMapClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
