package testutil

import (
	"context"
	"math/rand"
	"sync"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
)

// XSDString is the datatype used for generated literals.
const XSDString = "http://www.w3.org/2001/XMLSchema#string"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// String returns a random alphanumeric string of length n.
func (r *RNG) String(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.rand.Intn(len(letters))]
	}
	return string(b)
}

// Literal returns a random xsd:string literal.
func (r *RNG) Literal() model.Literal {
	return model.NewLiteral(r.String(1+r.Intn(16)), XSDString)
}

// Graph is the ground truth of a randomly generated graph.
type Graph struct {
	Proxies    []model.ProxyID
	Properties []model.Property
}

// BySource returns the properties of source in insertion order.
func (g *Graph) BySource(source model.ProxyID) []model.Property {
	var out []model.Property
	for _, p := range g.Properties {
		if p.Source == source {
			out = append(out, p)
		}
	}
	return out
}

// Graph allocates numProxies handles in st and writes numProperties random
// properties between them. Roughly half the values are literals.
func (r *RNG) Graph(ctx context.Context, st storage.Storage, numProxies, numProperties int) (*Graph, error) {
	g := &Graph{
		Proxies:    make([]model.ProxyID, 0, numProxies),
		Properties: make([]model.Property, 0, numProperties),
	}
	for range numProxies {
		id, err := st.AllocateProxy(ctx)
		if err != nil {
			return nil, err
		}
		g.Proxies = append(g.Proxies, id)
	}
	if numProxies == 0 {
		return g, nil
	}

	pick := func() model.ProxyID { return g.Proxies[r.Intn(len(g.Proxies))] }

	for range numProperties {
		p := model.Property{Source: pick(), Key: pick()}
		if r.Intn(2) == 0 {
			p.Value = model.ProxyValue(pick())
		} else {
			p.Value = model.LiteralValue(r.Literal())
		}
		if err := st.AddProperty(ctx, p); err != nil {
			return nil, err
		}
		g.Properties = append(g.Properties, p)
	}
	return g, nil
}
