package tmrm

import (
	"context"

	"github.com/hupe1980/tmrm/model"
)

// Role aliases used by type-instance and superclass-subclass associations.
// ontology.Classes binds the ones the standard ontology lacks.
const (
	TypeAlias       = "type"
	InstanceAlias   = "instance"
	SuperclassAlias = "superclass"
	SubclassAlias   = "subclass"
)

// AddType makes p an instance of t through an anonymous association proxy
// with the properties type=t and instance=p.
func (p *Proxy) AddType(ctx context.Context, t *Proxy) error {
	return p.associate(ctx, "add_type", t, TypeAlias, InstanceAlias)
}

// AddSuperclass makes p a subclass of s through an anonymous association
// proxy with the properties superclass=s and subclass=p.
func (p *Proxy) AddSuperclass(ctx context.Context, s *Proxy) error {
	return p.associate(ctx, "add_superclass", s, SuperclassAlias, SubclassAlias)
}

func (p *Proxy) associate(ctx context.Context, op string, other *Proxy, otherRole, selfRole string) error {
	if err := p.m.own(op, p.id, p, other); err != nil {
		return err
	}
	or, err := p.m.lookupAlias(otherRole)
	if err != nil {
		return err
	}
	sr, err := p.m.lookupAlias(selfRole)
	if err != nil {
		return err
	}

	assoc, err := p.m.allocate(ctx)
	if err != nil {
		return err
	}
	if err := p.m.write(ctx, assoc, or, model.ProxyValue(other.id)); err != nil {
		return err
	}
	return p.m.write(ctx, assoc, sr, model.ProxyValue(p.id))
}

// DirectTypes returns the types p is an instance of.
func (p *Proxy) DirectTypes(ctx context.Context) ([]*Proxy, error) {
	return p.related(ctx, InstanceAlias, TypeAlias)
}

// DirectInstances returns the proxies whose type is p.
func (p *Proxy) DirectInstances(ctx context.Context) ([]*Proxy, error) {
	return p.related(ctx, TypeAlias, InstanceAlias)
}

// DirectSuperclasses returns the immediate superclasses of p.
func (p *Proxy) DirectSuperclasses(ctx context.Context) ([]*Proxy, error) {
	return p.related(ctx, SubclassAlias, SuperclassAlias)
}

// DirectSubclasses returns the immediate subclasses of p.
func (p *Proxy) DirectSubclasses(ctx context.Context) ([]*Proxy, error) {
	return p.related(ctx, SuperclassAlias, SubclassAlias)
}

// Superclasses returns p and every transitive superclass of p.
func (p *Proxy) Superclasses(ctx context.Context) ([]*Proxy, error) {
	return p.closure(ctx, SubclassAlias, SuperclassAlias)
}

// Subclasses returns p and every transitive subclass of p.
func (p *Proxy) Subclasses(ctx context.Context) ([]*Proxy, error) {
	return p.closure(ctx, SuperclassAlias, SubclassAlias)
}

// IsSubclassOf reports whether s is p or a transitive superclass of p.
func (p *Proxy) IsSubclassOf(ctx context.Context, s *Proxy) (bool, error) {
	if err := p.m.own("is_subclass_of", p.id, p, s); err != nil {
		return false, err
	}
	supers, err := p.Superclasses(ctx)
	if err != nil {
		return false, err
	}
	return contains(supers, s.id), nil
}

// IsA reports whether p is an instance of t or of a subclass of t.
func (p *Proxy) IsA(ctx context.Context, t *Proxy) (bool, error) {
	if err := p.m.own("is_a", p.id, p, t); err != nil {
		return false, err
	}
	types, err := p.DirectTypes(ctx)
	if err != nil {
		return false, err
	}
	for _, typ := range types {
		ok, err := typ.IsSubclassOf(ctx, t)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// related follows associations in which p plays from and returns the
// players of to.
func (p *Proxy) related(ctx context.Context, from, to string) ([]*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	ids, err := p.m.related(ctx, p.id, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]*Proxy, len(ids))
	for i, id := range ids {
		out[i] = p.m.handle(id)
	}
	return out, nil
}

func (p *Proxy) closure(ctx context.Context, from, to string) ([]*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}

	seen := map[model.ProxyID]bool{p.id: true}
	order := []model.ProxyID{p.id}
	for i := 0; i < len(order); i++ {
		next, err := p.m.related(ctx, order[i], from, to)
		if err != nil {
			return nil, err
		}
		for _, id := range next {
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
	}

	out := make([]*Proxy, len(order))
	for i, id := range order {
		out[i] = p.m.handle(id)
	}
	return out, nil
}

func (m *SubjectMap) related(ctx context.Context, id model.ProxyID, from, to string) ([]model.ProxyID, error) {
	fromKey, err := m.lookupAlias(from)
	if err != nil {
		return nil, err
	}
	toKey, err := m.lookupAlias(to)
	if err != nil {
		return nil, err
	}

	assocs, err := m.referrers(ctx, model.ProxyValue(id), fromKey)
	if err != nil {
		return nil, err
	}

	var out []model.ProxyID
	seen := make(map[model.ProxyID]bool)
	for _, a := range assocs {
		props, err := m.properties(ctx, a.Source, toKey)
		if err != nil {
			return nil, err
		}
		for _, prop := range props {
			if v, ok := prop.Value.Proxy(); ok && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func contains(ps []*Proxy, id model.ProxyID) bool {
	for _, p := range ps {
		if p.id == id {
			return true
		}
	}
	return false
}
