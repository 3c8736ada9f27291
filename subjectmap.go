package tmrm

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
)

const (
	// XSDString is the conventional datatype of plain string literals.
	XSDString = "http://www.w3.org/2001/XMLSchema#string"

	// AliasDatatype marks literals that bind an alias to a bottom proxy.
	AliasDatatype = "urn:x-tmrm:alias"

	// LocalNameDatatype marks literals that name the key proxies created
	// for ontology local names.
	LocalNameDatatype = "urn:x-tmrm:local-name"
)

// SubjectMap is a named graph of proxies backed by one storage.
//
// The alias registry is guarded by a mutex, but sequences of calls are not
// atomic: two goroutines importing into the same map may both allocate a
// proxy for the same alias unless the caller serializes them.
type SubjectMap struct {
	sphere     *Sphere
	name       string
	st         storage.Storage
	logger     *Logger
	metrics    MetricsCollector
	labelAlias string

	importMu sync.Mutex

	mu         sync.RWMutex
	closed     bool
	root       model.ProxyID
	aliases    map[string]model.ProxyID
	aliasOrder []string
	localNames map[string]model.ProxyID
}

func newSubjectMap(s *Sphere, st storage.Storage, name string) *SubjectMap {
	return &SubjectMap{
		sphere:     s,
		name:       name,
		st:         st,
		logger:     s.opts.logger.WithSubjectMap(name),
		metrics:    s.opts.metricsCollector,
		labelAlias: s.opts.labelAlias,
		aliases:    make(map[string]model.ProxyID),
		localNames: make(map[string]model.ProxyID),
	}
}

// Name returns the name of the map within its sphere.
func (m *SubjectMap) Name() string { return m.name }

// Sphere returns the owning sphere.
func (m *SubjectMap) Sphere() *Sphere { return m.sphere }

// Storage returns the backend owned by the map.
func (m *SubjectMap) Storage() storage.Storage { return m.st }

func (m *SubjectMap) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrSubjectMapClosed
	}
	return nil
}

func (m *SubjectMap) handle(id model.ProxyID) *Proxy {
	return &Proxy{m: m, id: id}
}

// loadRegistry rebuilds aliases and local names from their marker literals.
func (m *SubjectMap) loadRegistry(ctx context.Context) error {
	var aliasProps, nameProps []model.Property
	var err error
	if di, ok := m.st.(storage.DatatypeIndex); ok {
		aliasProps, err = collect(di.PropertiesByDatatype(ctx, AliasDatatype))
		if err == nil {
			nameProps, err = collect(di.PropertiesByDatatype(ctx, LocalNameDatatype))
		}
	} else {
		err = m.scan(ctx, func(p model.Property) bool {
			if l, ok := p.Value.Literal(); ok {
				switch l.Datatype() {
				case AliasDatatype:
					aliasProps = append(aliasProps, p)
				case LocalNameDatatype:
					nameProps = append(nameProps, p)
				}
			}
			return true
		})
	}
	if err != nil {
		m.logger.LogRegistryLoad(ctx, 0, 0, err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range aliasProps {
		l, _ := p.Value.Literal()
		if p.Key == p.Source && m.root == model.NoProxy {
			m.root = p.Source
		}
		m.bindLocked(l.Value(), p.Source)
	}
	for _, p := range nameProps {
		l, _ := p.Value.Literal()
		if _, ok := m.localNames[l.Value()]; !ok {
			m.localNames[l.Value()] = p.Source
		}
	}

	m.logger.LogRegistryLoad(ctx, len(m.aliases), len(m.localNames), nil)
	return nil
}

func (m *SubjectMap) bindLocked(alias string, id model.ProxyID) {
	if _, ok := m.aliases[alias]; ok {
		return
	}
	m.aliases[alias] = id
	m.aliasOrder = append(m.aliasOrder, alias)
}

func (m *SubjectMap) isBound(alias string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.aliases[alias]
	return ok
}

// BottomProxies returns a copy of the alias registry.
func (m *SubjectMap) BottomProxies() map[string]model.ProxyID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.aliases)
}

// Aliases returns the bound aliases in binding order.
func (m *SubjectMap) Aliases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.aliasOrder...)
}

// Bottom returns a handle to the proxy bound to alias.
func (m *SubjectMap) Bottom(alias string) (*Proxy, error) {
	id, err := m.lookupAlias(alias)
	if err != nil {
		return nil, err
	}
	return m.handle(id), nil
}

func (m *SubjectMap) lookupAlias(alias string) (model.ProxyID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return model.NoProxy, ErrSubjectMapClosed
	}
	id, ok := m.aliases[alias]
	if !ok {
		return model.NoProxy, aliasNotFound(alias)
	}
	return id, nil
}

// aliasOf returns the first alias bound to id.
func (m *SubjectMap) aliasOf(id model.ProxyID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.aliasOrder {
		if m.aliases[a] == id {
			return a, true
		}
	}
	return "", false
}

// NewProxy allocates a proxy without properties.
func (m *SubjectMap) NewProxy(ctx context.Context) (*Proxy, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	id, err := m.allocate(ctx)
	if err != nil {
		return nil, err
	}
	return m.handle(id), nil
}

// ProxyByID returns a handle for an existing proxy.
func (m *SubjectMap) ProxyByID(ctx context.Context, id model.ProxyID) (*Proxy, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	ok, err := m.hasProxy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StorageError{Op: "proxy_by_id", Proxy: id, Err: ErrNotFound}
	}
	return m.handle(id), nil
}

func (m *SubjectMap) hasProxy(ctx context.Context, id model.ProxyID) (bool, error) {
	if pl, ok := m.st.(storage.ProxyLookup); ok {
		return pl.HasProxy(ctx, id)
	}
	c, err := m.st.Proxies(ctx)
	if err != nil {
		return false, err
	}
	defer c.Close()
	for c.Next() {
		if c.Value() == id {
			return true, nil
		}
	}
	return false, c.Err()
}

// ProxyByLabel returns the first proxy whose label is label.
func (m *SubjectMap) ProxyByLabel(ctx context.Context, label string) (*Proxy, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if key, err := m.lookupAlias(m.labelAlias); err == nil {
		props, err := m.referrers(ctx, model.LiteralValue(model.NewLiteral(label, XSDString)), key)
		if err != nil {
			return nil, err
		}
		// A proxy may carry several label literals; only the first one is
		// its label.
		for _, src := range m.sources(props) {
			l, err := m.label(ctx, src.id)
			if err != nil {
				return nil, err
			}
			if l == label {
				return src, nil
			}
		}
	}

	if id, err := m.lookupAlias(label); err == nil {
		return m.handle(id), nil
	}

	var found model.ProxyID
	err := m.scanProxies(ctx, func(id model.ProxyID) (bool, error) {
		l, err := m.label(ctx, id)
		if err != nil {
			return false, err
		}
		if l == label {
			found = id
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == model.NoProxy {
		return nil, &StorageError{Op: "proxy_by_label", Err: ErrNotFound}
	}
	return m.handle(found), nil
}

// LiteralIsValueByKey returns the proxies that have lit as a value under key.
func (m *SubjectMap) LiteralIsValueByKey(ctx context.Context, lit model.Literal, key *Proxy) ([]*Proxy, error) {
	if err := m.own("literal_is_value_by_key", model.NoProxy, key); err != nil {
		return nil, err
	}
	props, err := m.referrers(ctx, model.LiteralValue(lit), key.id)
	if err != nil {
		return nil, err
	}
	return m.sources(props), nil
}

// Iterator returns an iterator over every proxy in the map.
func (m *SubjectMap) Iterator(ctx context.Context) (*Iterator, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	c, err := m.st.Proxies(ctx)
	if err != nil {
		return nil, err
	}
	return newIterator(c, func(id model.ProxyID) Object {
		return ProxyObject(m.handle(id))
	}), nil
}

// Close closes the storage and invalidates every proxy handle of the map.
// A second Close returns ErrSubjectMapClosed.
func (m *SubjectMap) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrSubjectMapClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.sphere.remove(m.name, m)
	err := m.st.Close()
	m.logger.LogClose(context.Background(), err)
	return err
}

// properties reads the properties of source, recording lookup metrics.
func (m *SubjectMap) properties(ctx context.Context, source, key model.ProxyID) ([]model.Property, error) {
	start := time.Now()
	props, err := collect(m.st.Properties(ctx, source, key))
	m.metrics.RecordPropertyLookup(len(props), time.Since(start), err)
	return props, err
}

// referrers returns properties whose value is v, optionally restricted to
// key. Backends without a reverse index are scanned.
func (m *SubjectMap) referrers(ctx context.Context, v model.Value, key model.ProxyID) ([]model.Property, error) {
	if ri, ok := m.st.(storage.ReverseIndex); ok {
		return collect(ri.Referrers(ctx, v, key))
	}
	var out []model.Property
	err := m.scan(ctx, func(p model.Property) bool {
		if (key == model.NoProxy || p.Key == key) && p.Value.Equal(v) {
			out = append(out, p)
		}
		return true
	})
	return out, err
}

// scan visits every property of every proxy until fn returns false.
func (m *SubjectMap) scan(ctx context.Context, fn func(model.Property) bool) error {
	return m.scanProxies(ctx, func(id model.ProxyID) (bool, error) {
		props, err := collect(m.st.Properties(ctx, id, model.NoProxy))
		if err != nil {
			return false, err
		}
		for _, p := range props {
			if !fn(p) {
				return false, nil
			}
		}
		return true, nil
	})
}

func (m *SubjectMap) scanProxies(ctx context.Context, fn func(model.ProxyID) (bool, error)) error {
	c, err := m.st.Proxies(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	for c.Next() {
		more, err := fn(c.Value())
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return c.Err()
}

func (m *SubjectMap) sources(props []model.Property) []*Proxy {
	out := make([]*Proxy, 0, len(props))
	seen := make(map[model.ProxyID]bool, len(props))
	for _, p := range props {
		if !seen[p.Source] {
			seen[p.Source] = true
			out = append(out, m.handle(p.Source))
		}
	}
	return out
}

// own checks that every proxy is a live handle of m.
func (m *SubjectMap) own(op string, source model.ProxyID, proxies ...*Proxy) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	for _, p := range proxies {
		if err := p.check(); err != nil {
			return err
		}
		if p.m != m {
			return &CrossMapReferenceError{Op: op, Map: m.name, Other: p.m.name, Proxy: p.id}
		}
	}
	return nil
}

func collect[T any](c storage.Cursor[T], err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return storage.Collect(c)
}
