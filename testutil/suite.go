package testutil

import (
	"context"
	"testing"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OpenFunc returns a fresh, empty storage for one subtest.
type OpenFunc func(t *testing.T) storage.Storage

// RunStorageSuite checks the storage.Storage contract against a backend.
func RunStorageSuite(t *testing.T, open OpenFunc) {
	t.Helper()

	t.Run("DistinctHandles", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		seen := make(map[model.ProxyID]struct{})
		for range 50 {
			id, err := st.AllocateProxy(ctx)
			require.NoError(t, err)
			assert.NotEqual(t, model.NoProxy, id)
			_, dup := seen[id]
			assert.False(t, dup, "handle %s allocated twice", id)
			seen[id] = struct{}{}
		}

		ids, err := storage.Collect(mustProxies(t, st))
		require.NoError(t, err)
		assert.Len(t, ids, 50)
	})

	t.Run("EmptyProxies", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		c := mustProxies(t, st)
		defer c.Close()
		assert.False(t, c.Next())
		assert.NoError(t, c.Err())
	})

	t.Run("Multiplicity", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		p := alloc(t, st)
		k := alloc(t, st)
		v := alloc(t, st)

		prop := model.Property{Source: p, Key: k, Value: model.ProxyValue(v)}
		require.NoError(t, st.AddProperty(ctx, prop))
		require.NoError(t, st.AddProperty(ctx, prop))

		c, err := st.Properties(ctx, p, k)
		require.NoError(t, err)
		got, err := storage.Collect(c)
		require.NoError(t, err)
		assert.Equal(t, []model.Property{prop, prop}, got)
	})

	t.Run("KeyFilterAndOrder", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		p := alloc(t, st)
		k1 := alloc(t, st)
		k2 := alloc(t, st)

		want := []model.Property{
			{Source: p, Key: k1, Value: model.LiteralValue(model.NewLiteral("a", XSDString))},
			{Source: p, Key: k2, Value: model.ProxyValue(k1)},
			{Source: p, Key: k1, Value: model.LiteralValue(model.NewLiteral("b", "urn:other"))},
		}
		for _, prop := range want {
			require.NoError(t, st.AddProperty(ctx, prop))
		}

		c, err := st.Properties(ctx, p, model.NoProxy)
		require.NoError(t, err)
		all, err := storage.Collect(c)
		require.NoError(t, err)
		assert.Equal(t, want, all)

		c, err = st.Properties(ctx, p, k1)
		require.NoError(t, err)
		byKey, err := storage.Collect(c)
		require.NoError(t, err)
		assert.Equal(t, []model.Property{want[0], want[2]}, byKey)

		c, err = st.Properties(ctx, k2, model.NoProxy)
		require.NoError(t, err)
		none, err := storage.Collect(c)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("RandomGraph", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		g, err := NewRNG(4711).Graph(ctx, st, 30, 300)
		require.NoError(t, err)

		for _, id := range g.Proxies {
			c, err := st.Properties(ctx, id, model.NoProxy)
			require.NoError(t, err)
			got, err := storage.Collect(c)
			require.NoError(t, err)
			assert.Equal(t, len(g.BySource(id)), len(got))
			for i, p := range g.BySource(id) {
				assert.Equal(t, p.Key, got[i].Key)
				assert.True(t, p.Value.Equal(got[i].Value), "property %d of %s", i, id)
			}
		}
	})

	t.Run("ReverseIndex", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		ri, ok := st.(storage.ReverseIndex)
		if !ok {
			t.Skip("backend has no reverse index")
		}

		a := alloc(t, st)
		b := alloc(t, st)
		k := alloc(t, st)
		target := alloc(t, st)
		lit := model.NewLiteral("x", XSDString)

		require.NoError(t, st.AddProperty(ctx, model.Property{Source: a, Key: k, Value: model.ProxyValue(target)}))
		require.NoError(t, st.AddProperty(ctx, model.Property{Source: b, Key: a, Value: model.ProxyValue(target)}))
		require.NoError(t, st.AddProperty(ctx, model.Property{Source: b, Key: k, Value: model.LiteralValue(lit)}))

		c, err := ri.Referrers(ctx, model.ProxyValue(target), model.NoProxy)
		require.NoError(t, err)
		got, err := storage.Collect(c)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		c, err = ri.Referrers(ctx, model.ProxyValue(target), k)
		require.NoError(t, err)
		got, err = storage.Collect(c)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a, got[0].Source)

		c, err = ri.Referrers(ctx, model.LiteralValue(lit), model.NoProxy)
		require.NoError(t, err)
		got, err = storage.Collect(c)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b, got[0].Source)
	})

	t.Run("DatatypeIndex", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		defer st.Close()

		di, ok := st.(storage.DatatypeIndex)
		if !ok {
			t.Skip("backend has no datatype index")
		}

		a := alloc(t, st)
		k := alloc(t, st)
		require.NoError(t, st.AddProperty(ctx, model.Property{Source: a, Key: k, Value: model.LiteralValue(model.NewLiteral("one", "urn:dt:a"))}))
		require.NoError(t, st.AddProperty(ctx, model.Property{Source: k, Key: k, Value: model.LiteralValue(model.NewLiteral("two", "urn:dt:b"))}))
		require.NoError(t, st.AddProperty(ctx, model.Property{Source: a, Key: k, Value: model.ProxyValue(k)}))

		c, err := di.PropertiesByDatatype(ctx, "urn:dt:a")
		require.NoError(t, err)
		got, err := storage.Collect(c)
		require.NoError(t, err)
		require.Len(t, got, 1)
		l, ok := got[0].Value.Literal()
		require.True(t, ok)
		assert.Equal(t, "one", l.Value())
	})

	t.Run("CursorReset", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		alloc(t, st)
		alloc(t, st)

		c := mustProxies(t, st)
		defer c.Close()
		r, ok := c.(storage.Resetter)
		if !ok {
			t.Skip("cursor cannot reset")
		}

		var first []model.ProxyID
		for c.Next() {
			first = append(first, c.Value())
		}
		require.NoError(t, r.Reset())
		var second []model.ProxyID
		for c.Next() {
			second = append(second, c.Value())
		}
		assert.Equal(t, first, second)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		p := alloc(t, st)
		err := st.AddProperty(context.Background(), model.Property{Source: p, Key: p})
		var se *storage.Error
		assert.ErrorAs(t, err, &se)
	})

	t.Run("CloseIdempotent", func(t *testing.T) {
		st := open(t)
		require.NoError(t, st.Close())
		require.NoError(t, st.Close())

		_, err := st.AllocateProxy(context.Background())
		assert.ErrorIs(t, err, storage.ErrClosed)
	})
}

func alloc(t *testing.T, st storage.Storage) model.ProxyID {
	t.Helper()
	id, err := st.AllocateProxy(context.Background())
	require.NoError(t, err)
	return id
}

func mustProxies(t *testing.T, st storage.Storage) storage.Cursor[model.ProxyID] {
	t.Helper()
	c, err := st.Proxies(context.Background())
	require.NoError(t, err)
	return c
}
