// Package testutil provides testing utilities for tmrm.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Graphs
//
//	rng := testutil.NewRNG(seed)
//	g, err := rng.Graph(ctx, st, 100, 1000)
//	// g.Proxies and g.Properties are the ground truth written to st.
//
// # Storage Conformance
//
// Every backend runs the same suite:
//
//	testutil.RunStorageSuite(t, func(t *testing.T) storage.Storage { ... })
package testutil
