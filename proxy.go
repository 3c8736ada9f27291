package tmrm

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
)

// Proxy is a handle to a subject in a subject map.
//
// Several handles may refer to the same proxy; Equals compares subjects, not
// handles. Freeing a handle does not touch the stored graph.
type Proxy struct {
	m        *SubjectMap
	id       model.ProxyID
	released atomic.Bool
}

func (p *Proxy) check() error {
	if p == nil {
		return &StorageError{Op: "proxy", Err: storage.ErrInvalidValue}
	}
	if p.released.Load() {
		return ErrProxyReleased
	}
	return p.m.checkOpen()
}

// ID returns the storage-assigned handle.
func (p *Proxy) ID() model.ProxyID { return p.id }

// SubjectMap returns the map the proxy belongs to.
func (p *Proxy) SubjectMap() *SubjectMap { return p.m }

// Equals reports whether p and o represent the same subject of the same map.
func (p *Proxy) Equals(o *Proxy) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.m == o.m && p.id == o.id
}

// Clone returns an independent handle to the same proxy.
func (p *Proxy) Clone() (*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.m.handle(p.id), nil
}

// Free releases the handle. Stored properties are retained.
func (p *Proxy) Free() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrProxyReleased
	}
	return nil
}

// AddProperty records (p, key, value). Both key and value must belong to
// the map of p.
func (p *Proxy) AddProperty(ctx context.Context, key, value *Proxy) error {
	if err := p.check(); err != nil {
		return err
	}
	if value == nil {
		return &StorageError{Op: "add_property", Proxy: p.id, Err: storage.ErrInvalidValue}
	}
	if err := p.m.own("add_property", p.id, key, value); err != nil {
		return err
	}
	return p.add(ctx, key.id, model.ProxyValue(value.id))
}

// AddPropertyLiteral records (p, key, lit). The key must belong to the map
// of p.
func (p *Proxy) AddPropertyLiteral(ctx context.Context, key *Proxy, lit model.Literal) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.m.own("add_property_literal", p.id, key); err != nil {
		return err
	}
	return p.add(ctx, key.id, model.LiteralValue(lit))
}

func (p *Proxy) add(ctx context.Context, key model.ProxyID, v model.Value) error {
	return p.m.write(ctx, p.id, key, v)
}

// Label returns the first literal under the label key. Bottom proxies and
// ontology key proxies fall back to their alias or local name. A proxy with
// neither has the empty label.
func (p *Proxy) Label(ctx context.Context) (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}
	return p.m.label(ctx, p.id)
}

func (m *SubjectMap) label(ctx context.Context, id model.ProxyID) (string, error) {
	if key, err := m.lookupAlias(m.labelAlias); err == nil {
		props, err := m.properties(ctx, id, key)
		if err != nil {
			return "", err
		}
		for _, prop := range props {
			if l, ok := prop.Value.Literal(); ok {
				return l.Value(), nil
			}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	if alias, ok := m.aliasOf(id); ok {
		return alias, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, k := range m.localNames {
		if k == id {
			return name, nil
		}
	}
	return "", nil
}

// SetLabel records label under the label key. Properties are never
// replaced, so a proxy that already has a label keeps it.
func (p *Proxy) SetLabel(ctx context.Context, label string) error {
	if err := p.check(); err != nil {
		return err
	}
	key, err := p.m.lookupAlias(p.m.labelAlias)
	if err != nil {
		return err
	}
	return p.add(ctx, key, model.LiteralValue(model.NewLiteral(label, XSDString)))
}

// Properties returns an iterator over the properties of p in insertion
// order.
func (p *Proxy) Properties(ctx context.Context) (*Iterator, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	c, err := p.m.st.Properties(ctx, p.id, model.NoProxy)
	if err != nil {
		return nil, err
	}
	return newIterator(c, func(raw model.Property) Object {
		return PropertyObject(newProperty(p.m, raw))
	}), nil
}

// Values returns an iterator over the values of p under key.
func (p *Proxy) Values(ctx context.Context, key *Proxy) (*Iterator, error) {
	if err := p.m.own("values", p.id, p, key); err != nil {
		return nil, err
	}
	c, err := p.m.st.Properties(ctx, p.id, key.id)
	if err != nil {
		return nil, err
	}
	return newIterator(c, func(raw model.Property) Object {
		return valueObject(p.m, raw.Value)
	}), nil
}

// Keys returns the distinct keys of p in order of first use.
func (p *Proxy) Keys(ctx context.Context) ([]*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	props, err := p.m.properties(ctx, p.id, model.NoProxy)
	if err != nil {
		return nil, err
	}
	return p.m.keys(props), nil
}

// KeysByValue returns the distinct keys under which p is a value anywhere
// in the map.
func (p *Proxy) KeysByValue(ctx context.Context) ([]*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	props, err := p.m.referrers(ctx, model.ProxyValue(p.id), model.NoProxy)
	if err != nil {
		return nil, err
	}
	return p.m.keys(props), nil
}

// IsValueByKey returns the proxies that have p as a value under key.
func (p *Proxy) IsValueByKey(ctx context.Context, key *Proxy) ([]*Proxy, error) {
	if err := p.m.own("is_value_by_key", p.id, p, key); err != nil {
		return nil, err
	}
	props, err := p.m.referrers(ctx, model.ProxyValue(p.id), key.id)
	if err != nil {
		return nil, err
	}
	return p.m.sources(props), nil
}

// IsReferenced reports whether p is used as a key or a value by any
// property of the map.
func (p *Proxy) IsReferenced(ctx context.Context) (bool, error) {
	if err := p.check(); err != nil {
		return false, err
	}
	props, err := p.m.referrers(ctx, model.ProxyValue(p.id), model.NoProxy)
	if err != nil {
		return false, err
	}
	if len(props) > 0 {
		return true, nil
	}

	found := false
	err = p.m.scan(ctx, func(prop model.Property) bool {
		found = prop.Key == p.id
		return !found
	})
	return found, err
}

func (p *Proxy) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.m.name + "#" + p.id.String()
}

func (m *SubjectMap) keys(props []model.Property) []*Proxy {
	out := make([]*Proxy, 0, len(props))
	seen := make(map[model.ProxyID]bool, len(props))
	for _, p := range props {
		if !seen[p.Key] {
			seen[p.Key] = true
			out = append(out, m.handle(p.Key))
		}
	}
	return out
}
