package tmrm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tmrm"
	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/ontology"
	"github.com/hupe1980/tmrm/storage"
	"github.com/hupe1980/tmrm/storage/memory"
)

func newMap(t *testing.T, opts ...tmrm.Option) *tmrm.SubjectMap {
	t.Helper()

	sphere := tmrm.NewSphere(opts...)
	t.Cleanup(func() { _ = sphere.Close() })

	m, err := sphere.NewSubjectMap(context.Background(), memory.New(), "mymap")
	require.NoError(t, err)
	return m
}

func bootstrapped(t *testing.T, opts ...tmrm.Option) *tmrm.SubjectMap {
	t.Helper()

	m := newMap(t, opts...)
	_, err := m.Bootstrap(context.Background())
	require.NoError(t, err)
	return m
}

func newProxy(t *testing.T, m *tmrm.SubjectMap) *tmrm.Proxy {
	t.Helper()

	p, err := m.NewProxy(context.Background())
	require.NoError(t, err)
	return p
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	sphere := tmrm.NewSphere()
	defer sphere.Close()

	st, err := sphere.OpenStorage(ctx, "memory", "")
	require.NoError(t, err)

	m, err := sphere.NewSubjectMap(ctx, st, "mymap")
	require.NoError(t, err)

	_, err = m.Bootstrap(ctx)
	require.NoError(t, err)

	bottoms := m.BottomProxies()
	require.Len(t, bottoms, 10)
	for _, alias := range ontology.StandardAliases {
		assert.Contains(t, bottoms, alias)
	}

	p := newProxy(t, m)
	k := newProxy(t, m)
	v := newProxy(t, m)
	require.NoError(t, p.AddProperty(ctx, k, v))
	require.NoError(t, p.AddPropertyLiteral(ctx, k, model.NewLiteral("Terje", tmrm.XSDString)))

	it, err := m.Iterator(ctx)
	require.NoError(t, err)
	defer it.Close()

	seen := make(map[model.ProxyID]int)
	for ; !it.End(); require.NoError(t, it.Next()) {
		obj, err := it.Object()
		require.NoError(t, err)
		require.Equal(t, tmrm.TypeProxy, obj.Type())

		proxy, err := obj.Proxy()
		require.NoError(t, err)
		seen[proxy.ID()]++
	}

	for _, x := range []*tmrm.Proxy{p, k, v} {
		assert.Equal(t, 1, seen[x.ID()], "proxy %s", x)
	}
}

func TestImport_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	first, err := m.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, "base", first.SubjectMap)
	assert.Equal(t, ontology.StandardAliases, first.Bound)
	assert.Empty(t, first.Skipped)

	before := m.BottomProxies()
	stats := m.Storage().(*memory.Store).Stats()

	second, err := m.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Bound)
	assert.Equal(t, ontology.StandardAliases, second.Skipped)

	assert.Equal(t, before, m.BottomProxies())
	assert.Equal(t, stats, m.Storage().(*memory.Store).Stats())
}

func TestImport_Layout(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	// One root plus a key and a value per property rule.
	stats := m.Storage().(*memory.Store).Stats()
	assert.Equal(t, 19, stats.Proxies)

	bottom, err := m.Bottom("bottom")
	require.NoError(t, err)
	member, err := m.Bottom("member")
	require.NoError(t, err)

	label, err := member.Label(ctx)
	require.NoError(t, err)
	assert.Equal(t, "member", label)

	keys, err := bottom.Keys(ctx)
	require.NoError(t, err)

	var names []string
	for _, k := range keys {
		l, err := k.Label(ctx)
		require.NoError(t, err)
		names = append(names, l)
	}
	assert.Contains(t, names, "item-identifier")
	assert.Contains(t, names, "reifier")

	sources, err := member.KeysByValue(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	l, err := sources[0].Label(ctx)
	require.NoError(t, err)
	assert.Equal(t, "member", l)
}

func TestImport_ReusesKeys(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	_, err := m.ImportOntologyString(ctx, `
subject_map: test
proxies:
  root: {root: root}
  name: {root: "name"}
  first: {name: "given"}
  second: {name: "given"}
  third: {root: name}
`)
	require.NoError(t, err)

	root, err := m.Bottom("root")
	require.NoError(t, err)
	name, err := m.Bottom("name")
	require.NoError(t, err)
	third, err := m.Bottom("third")
	require.NoError(t, err)

	keys, err := name.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys[0].Equals(root))
	given, err := keys[1].Label(ctx)
	require.NoError(t, err)
	assert.Equal(t, "given", given)

	values, err := third.IsValueByKey(ctx, name)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.True(t, values[0].Equals(root))
}

func TestImport_SecondRoot(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	res, err := m.ImportOntologyString(ctx, ontology.Classes)
	require.NoError(t, err)
	assert.Equal(t, []string{"instance", "superclass", "subclass"}, res.Bound)
	assert.Equal(t, []string{"bottom", "type"}, res.Skipped)

	_, err = m.ImportOntologyString(ctx, "subject_map: x\nproxies:\n  top: {top: top}\n")
	require.NoError(t, err)

	bottoms := m.BottomProxies()
	assert.Equal(t, bottoms["bottom"], bottoms["top"])
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	_, err := m.ImportOntologyString(ctx, "subject_map: x\nproxies:\n  a: {missing: a}\n")
	var parseErr *tmrm.OntologyParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 3, parseErr.Line)

	var undefined *tmrm.UndefinedAliasError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, "missing", undefined.Alias)

	_, err = m.ImportOntologyString(ctx, "")
	require.ErrorIs(t, err, ontology.ErrEmptyDocument)

	assert.Empty(t, m.BottomProxies())
	assert.Zero(t, m.Storage().(*memory.Store).Stats().Proxies)
}

func TestSubjectMap_Reopen(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	sphere := tmrm.NewSphere()
	defer sphere.Close()

	m, err := sphere.NewSubjectMap(ctx, nopCloser{st}, "first")
	require.NoError(t, err)
	_, err = m.Bootstrap(ctx)
	require.NoError(t, err)
	want := m.BottomProxies()
	require.NoError(t, m.Close())

	reopened, err := sphere.NewSubjectMap(ctx, st, "second")
	require.NoError(t, err)
	assert.Equal(t, want, reopened.BottomProxies())
	assert.Equal(t, ontology.StandardAliases, reopened.Aliases())

	res, err := reopened.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Bound)

	key, err := reopened.Bottom("type")
	require.NoError(t, err)
	keys, err := key.KeysByValue(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	l, err := keys[0].Label(ctx)
	require.NoError(t, err)
	assert.Equal(t, "type", l)
}

func TestSubjectMap_RegistryWithoutIndexes(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	sphere := tmrm.NewSphere()
	defer sphere.Close()

	m, err := sphere.NewSubjectMap(ctx, plainStorage{st}, "plain")
	require.NoError(t, err)
	_, err = m.Bootstrap(ctx)
	require.NoError(t, err)

	reopened, err := sphere.NewSubjectMap(ctx, plainStorage{st}, "reopened")
	require.NoError(t, err)
	assert.Equal(t, m.BottomProxies(), reopened.BottomProxies())

	item, err := reopened.Bottom("item_identifier")
	require.NoError(t, err)
	p := newProxy(t, reopened)
	require.NoError(t, p.SetLabel(ctx, "plain-label"))

	found, err := reopened.ProxyByLabel(ctx, "plain-label")
	require.NoError(t, err)
	assert.True(t, found.Equals(p))

	referenced, err := item.IsReferenced(ctx)
	require.NoError(t, err)
	assert.True(t, referenced)
}

func TestProxy_Identity(t *testing.T) {
	m := newMap(t)

	const n = 100
	seen := make(map[model.ProxyID]bool, n)
	for range n {
		p := newProxy(t, m)
		require.NotEqual(t, model.NoProxy, p.ID())
		require.False(t, seen[p.ID()])
		seen[p.ID()] = true
	}
	assert.Len(t, seen, n)
}

func TestProxy_Multiplicity(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	p, k, v1, v2 := newProxy(t, m), newProxy(t, m), newProxy(t, m), newProxy(t, m)
	require.NoError(t, p.AddProperty(ctx, k, v1))
	require.NoError(t, p.AddProperty(ctx, k, v2))
	require.NoError(t, p.AddProperty(ctx, k, v1))
	require.NoError(t, p.AddPropertyLiteral(ctx, k, model.NewLiteral("x", tmrm.XSDString)))

	it, err := p.Values(ctx, k)
	require.NoError(t, err)

	var got []string
	for obj, err := range it.All() {
		require.NoError(t, err)
		got = append(got, obj.String())
	}
	assert.Equal(t, []string{v1.ID().String(), v2.ID().String(), v1.ID().String(), `"x"^^<` + tmrm.XSDString + `>`}, got)

	keys, err := p.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Equals(k))
}

func TestProxy_CrossMapReference(t *testing.T) {
	ctx := context.Background()
	sphere := tmrm.NewSphere()
	defer sphere.Close()

	a, err := sphere.NewSubjectMap(ctx, memory.New(), "a")
	require.NoError(t, err)
	b, err := sphere.NewSubjectMap(ctx, memory.New(), "b")
	require.NoError(t, err)

	p, k := newProxy(t, a), newProxy(t, a)
	foreign := newProxy(t, b)

	var crossErr *tmrm.CrossMapReferenceError

	err = p.AddProperty(ctx, foreign, k)
	require.ErrorAs(t, err, &crossErr)
	assert.Equal(t, "a", crossErr.Map)
	assert.Equal(t, "b", crossErr.Other)
	assert.Equal(t, foreign.ID(), crossErr.Proxy)

	err = p.AddProperty(ctx, k, foreign)
	require.ErrorAs(t, err, &crossErr)

	err = p.AddPropertyLiteral(ctx, foreign, model.NewLiteral("x", tmrm.XSDString))
	require.ErrorAs(t, err, &crossErr)

	it, err := p.Properties(ctx)
	require.NoError(t, err)
	n, err := it.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, a.Storage().(*memory.Store).Stats().Properties)
	assert.Zero(t, b.Storage().(*memory.Store).Stats().Properties)
}

func TestProxy_FreeAndClose(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	p, k := newProxy(t, m), newProxy(t, m)
	require.NoError(t, p.AddPropertyLiteral(ctx, k, model.NewLiteral("kept", tmrm.XSDString)))

	clone, err := p.Clone()
	require.NoError(t, err)
	require.NoError(t, p.Free())
	require.ErrorIs(t, p.Free(), tmrm.ErrProxyReleased)

	_, err = p.Label(ctx)
	require.ErrorIs(t, err, tmrm.ErrProxyReleased)
	require.ErrorIs(t, p.AddProperty(ctx, k, k), tmrm.ErrProxyReleased)
	require.ErrorIs(t, k.AddProperty(ctx, p, k), tmrm.ErrProxyReleased)

	it, err := clone.Values(ctx, k)
	require.NoError(t, err)
	n, err := it.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Close(), tmrm.ErrSubjectMapClosed)

	_, err = clone.Properties(ctx)
	require.ErrorIs(t, err, tmrm.ErrSubjectMapClosed)
	_, err = m.NewProxy(ctx)
	require.ErrorIs(t, err, tmrm.ErrSubjectMapClosed)
	_, err = m.Iterator(ctx)
	require.ErrorIs(t, err, tmrm.ErrSubjectMapClosed)
}

func TestProxy_Label(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	p := newProxy(t, m)
	label, err := p.Label(ctx)
	require.NoError(t, err)
	assert.Empty(t, label)

	require.NoError(t, p.SetLabel(ctx, "Terje"))
	require.NoError(t, p.SetLabel(ctx, "ignored"))

	label, err = p.Label(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Terje", label)

	found, err := m.ProxyByLabel(ctx, "Terje")
	require.NoError(t, err)
	assert.True(t, found.Equals(p))

	found, err = m.ProxyByLabel(ctx, "scope")
	require.NoError(t, err)
	scope, err := m.Bottom("scope")
	require.NoError(t, err)
	assert.True(t, found.Equals(scope))

	_, err = m.ProxyByLabel(ctx, "nobody")
	require.ErrorIs(t, err, tmrm.ErrNotFound)

	item, err := m.Bottom(tmrm.DefaultLabelAlias)
	require.NoError(t, err)
	holders, err := m.LiteralIsValueByKey(ctx, model.NewLiteral("Terje", tmrm.XSDString), item)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.True(t, holders[0].Equals(p))
}

func TestProxyByLabel_SecondaryLabels(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	p := newProxy(t, m)
	require.NoError(t, p.SetLabel(ctx, "alpha"))
	require.NoError(t, p.SetLabel(ctx, "beta"))

	_, err := m.ProxyByLabel(ctx, "beta")
	require.ErrorIs(t, err, tmrm.ErrNotFound)

	q := newProxy(t, m)
	require.NoError(t, q.SetLabel(ctx, "beta"))

	found, err := m.ProxyByLabel(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, found.Equals(q))

	found, err = m.ProxyByLabel(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, found.Equals(p))
}

func TestProxy_LabelAliasOption(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t, tmrm.WithLabelAlias("subject_identifier"))

	p := newProxy(t, m)
	require.NoError(t, p.SetLabel(ctx, "http://example.org/"))

	sid, err := m.Bottom("subject_identifier")
	require.NoError(t, err)
	it, err := p.Values(ctx, sid)
	require.NoError(t, err)
	n, err := it.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unlabeled := newMap(t)
	err = newProxy(t, unlabeled).SetLabel(ctx, "x")
	require.ErrorIs(t, err, tmrm.ErrNotFound)
}

func TestProxy_References(t *testing.T) {
	ctx := context.Background()
	m := newMap(t)

	p, k, v, lonely := newProxy(t, m), newProxy(t, m), newProxy(t, m), newProxy(t, m)
	require.NoError(t, p.AddProperty(ctx, k, v))

	for _, tc := range []struct {
		proxy *tmrm.Proxy
		want  bool
	}{
		{p, false},
		{k, true},
		{v, true},
		{lonely, false},
	} {
		got, err := tc.proxy.IsReferenced(ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "proxy %s", tc.proxy)
	}

	sources, err := v.IsValueByKey(ctx, k)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Equals(p))

	keys, err := v.KeysByValue(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Equals(k))

	byID, err := m.ProxyByID(ctx, v.ID())
	require.NoError(t, err)
	assert.True(t, byID.Equals(v))
	assert.NotSame(t, byID, v)

	_, err = m.ProxyByID(ctx, 999)
	require.ErrorIs(t, err, tmrm.ErrNotFound)
}

func TestBottom_Unknown(t *testing.T) {
	m := bootstrapped(t)

	_, err := m.Bottom("nope")
	require.ErrorIs(t, err, tmrm.ErrNotFound)
}

// nopCloser keeps the wrapped storage open when a subject map closes it.
type nopCloser struct{ storage.Storage }

func (nopCloser) Close() error { return nil }

// plainStorage hides every optional capability of the wrapped storage.
type plainStorage struct{ s storage.Storage }

func (p plainStorage) AllocateProxy(ctx context.Context) (model.ProxyID, error) {
	return p.s.AllocateProxy(ctx)
}

func (p plainStorage) AddProperty(ctx context.Context, prop model.Property) error {
	return p.s.AddProperty(ctx, prop)
}

func (p plainStorage) Properties(ctx context.Context, source, key model.ProxyID) (storage.Cursor[model.Property], error) {
	return p.s.Properties(ctx, source, key)
}

func (p plainStorage) Proxies(ctx context.Context) (storage.Cursor[model.ProxyID], error) {
	return p.s.Proxies(ctx)
}

func (plainStorage) Close() error { return nil }

func TestImport_ExternalBase(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	res, err := m.ImportOntologyString(ctx, "subject_map: x\nproxies:\n  person: {bottom: person}\n  name: {person: name}\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "name"}, res.Bound)

	stats := m.Storage().(*memory.Store).Stats()
	_, err = m.ImportOntologyString(ctx, "subject_map: x\nproxies:\n  fresh: {bottom: fresh}\n  other: {unknown: other}\n")
	var undefined *tmrm.UndefinedAliasError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, "unknown", undefined.Alias)
	assert.Equal(t, 4, undefined.Line)

	_, err = m.Bottom("fresh")
	require.ErrorIs(t, err, tmrm.ErrNotFound)
	assert.Equal(t, stats, m.Storage().(*memory.Store).Stats())
}
