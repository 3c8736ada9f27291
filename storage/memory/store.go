package memory

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
)

// Name is the name the backend is registered under.
const Name = "memory"

// ErrUnknownProxy is returned when a property refers to an unallocated handle.
var ErrUnknownProxy = storage.ErrUnknownProxy

// ErrTooManyProperties is returned when the row log is full.
var ErrTooManyProperties = errors.New("too many properties")

type valueKey struct {
	kind     model.ValueKind
	proxy    model.ProxyID
	value    string
	datatype string
}

func keyOf(v model.Value) valueKey {
	if id, ok := v.Proxy(); ok {
		return valueKey{kind: model.KindProxy, proxy: id}
	}
	l, _ := v.Literal()
	return valueKey{kind: model.KindLiteral, value: l.Value(), datatype: l.Datatype()}
}

// Store is an in-memory storage.Storage.
type Store struct {
	mu     sync.RWMutex
	closed bool

	last    uint64
	proxies *roaring64.Bitmap

	rows       []model.Property
	bySource   map[model.ProxyID]*roaring.Bitmap
	byKey      map[model.ProxyID]*roaring.Bitmap
	byValue    map[valueKey]*roaring.Bitmap
	byDatatype map[string]*roaring.Bitmap
}

var (
	_ storage.Storage       = (*Store)(nil)
	_ storage.ReverseIndex  = (*Store)(nil)
	_ storage.DatatypeIndex = (*Store)(nil)
	_ storage.ProxyLookup   = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		proxies:    roaring64.New(),
		bySource:   make(map[model.ProxyID]*roaring.Bitmap),
		byKey:      make(map[model.ProxyID]*roaring.Bitmap),
		byValue:    make(map[valueKey]*roaring.Bitmap),
		byDatatype: make(map[string]*roaring.Bitmap),
	}
}

// Open is the storage.Factory of the backend. The descriptor is ignored.
func Open(_ context.Context, _ string) (storage.Storage, error) {
	return New(), nil
}

// AllocateProxy implements storage.Storage.
func (s *Store) AllocateProxy(ctx context.Context) (model.ProxyID, error) {
	if err := ctx.Err(); err != nil {
		return model.NoProxy, storage.NewError("allocate_proxy", model.NoProxy, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.NoProxy, storage.NewError("allocate_proxy", model.NoProxy, storage.ErrClosed)
	}

	s.last++
	s.proxies.Add(s.last)
	return model.ProxyID(s.last), nil
}

// RestoreProxy marks id as allocated. Later allocations return larger ids.
// It is used to rebuild a store from a durable log.
func (s *Store) RestoreProxy(id model.ProxyID) error {
	if id == model.NoProxy {
		return storage.NewError("restore_proxy", id, ErrUnknownProxy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.NewError("restore_proxy", id, storage.ErrClosed)
	}

	s.proxies.Add(uint64(id))
	if uint64(id) > s.last {
		s.last = uint64(id)
	}
	return nil
}

// AddProperty implements storage.Storage.
func (s *Store) AddProperty(ctx context.Context, p model.Property) error {
	if err := ctx.Err(); err != nil {
		return storage.NewError("add_property", p.Source, err)
	}
	if !p.Value.IsValid() {
		return storage.NewError("add_property", p.Source, storage.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.NewError("add_property", p.Source, storage.ErrClosed)
	}
	if !s.proxies.Contains(uint64(p.Source)) || !s.proxies.Contains(uint64(p.Key)) {
		return storage.NewError("add_property", p.Source, ErrUnknownProxy)
	}
	if id, ok := p.Value.Proxy(); ok && !s.proxies.Contains(uint64(id)) {
		return storage.NewError("add_property", p.Source, ErrUnknownProxy)
	}
	if len(s.rows) >= math.MaxUint32 {
		return storage.NewError("add_property", p.Source, ErrTooManyProperties)
	}

	row := uint32(len(s.rows))
	s.rows = append(s.rows, p)

	posting(s.bySource, p.Source).Add(row)
	posting(s.byKey, p.Key).Add(row)
	posting(s.byValue, keyOf(p.Value)).Add(row)
	if l, ok := p.Value.Literal(); ok {
		posting(s.byDatatype, l.Datatype()).Add(row)
	}
	return nil
}

func posting[K comparable](m map[K]*roaring.Bitmap, k K) *roaring.Bitmap {
	b, ok := m[k]
	if !ok {
		b = roaring.New()
		m[k] = b
	}
	return b
}

// Properties implements storage.Storage.
func (s *Store) Properties(ctx context.Context, source, key model.ProxyID) (storage.Cursor[model.Property], error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("properties", source, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.NewError("properties", source, storage.ErrClosed)
	}

	rows := s.bySource[source]
	if key != model.NoProxy {
		rows = intersect(rows, s.byKey[key])
	}
	return storage.NewSliceCursor(s.materialize(rows)), nil
}

// Referrers implements storage.ReverseIndex.
func (s *Store) Referrers(ctx context.Context, v model.Value, key model.ProxyID) (storage.Cursor[model.Property], error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("referrers", model.NoProxy, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.NewError("referrers", model.NoProxy, storage.ErrClosed)
	}

	rows := s.byValue[keyOf(v)]
	if key != model.NoProxy {
		rows = intersect(rows, s.byKey[key])
	}
	return storage.NewSliceCursor(s.materialize(rows)), nil
}

// PropertiesByDatatype implements storage.DatatypeIndex.
func (s *Store) PropertiesByDatatype(ctx context.Context, datatype string) (storage.Cursor[model.Property], error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("properties_by_datatype", model.NoProxy, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.NewError("properties_by_datatype", model.NoProxy, storage.ErrClosed)
	}
	return storage.NewSliceCursor(s.materialize(s.byDatatype[datatype])), nil
}

func intersect(a, b *roaring.Bitmap) *roaring.Bitmap {
	if a == nil || b == nil {
		return nil
	}
	return roaring.And(a, b)
}

func (s *Store) materialize(rows *roaring.Bitmap) []model.Property {
	if rows == nil || rows.IsEmpty() {
		return nil
	}
	out := make([]model.Property, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		out = append(out, s.rows[it.Next()])
	}
	return out
}

// Proxies implements storage.Storage. Handles are returned in ascending order.
func (s *Store) Proxies(ctx context.Context) (storage.Cursor[model.ProxyID], error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("proxies", model.NoProxy, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.NewError("proxies", model.NoProxy, storage.ErrClosed)
	}

	ids := make([]model.ProxyID, 0, s.proxies.GetCardinality())
	it := s.proxies.Iterator()
	for it.HasNext() {
		ids = append(ids, model.ProxyID(it.Next()))
	}
	return storage.NewSliceCursor(ids), nil
}

// HasProxy implements storage.ProxyLookup.
func (s *Store) HasProxy(_ context.Context, id model.ProxyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.NewError("has_proxy", id, storage.ErrClosed)
	}
	return s.proxies.Contains(uint64(id)), nil
}

// Stats describes the size of a store.
type Stats struct {
	Proxies    int
	Properties int
	// LastID is the largest handle ever allocated.
	LastID model.ProxyID
}

// Stats returns the current size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Proxies:    int(s.proxies.GetCardinality()),
		Properties: len(s.rows),
		LastID:     model.ProxyID(s.last),
	}
}

// Snapshot returns copies of all handles and all properties in insertion order.
func (s *Store) Snapshot() ([]model.ProxyID, []model.Property) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]model.ProxyID, 0, s.proxies.GetCardinality())
	it := s.proxies.Iterator()
	for it.HasNext() {
		ids = append(ids, model.ProxyID(it.Next()))
	}
	rows := make([]model.Property, len(s.rows))
	copy(rows, s.rows)
	return ids, rows
}

// Close implements storage.Storage.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.rows = nil
	s.proxies.Clear()
	clear(s.bySource)
	clear(s.byKey)
	clear(s.byValue)
	clear(s.byDatatype)
	return nil
}
