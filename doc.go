// Package tmrm provides a subject-centric proxy graph store.
//
// Every addressable subject is a proxy. Proxies are connected by properties
// whose keys are proxies themselves and whose values are either proxies or
// typed literals. Proxies live in subject maps, and subject maps live in a
// sphere. Each subject map owns one storage backend.
//
// # Quick Start
//
//	ctx := context.Background()
//	sphere := tmrm.NewSphere()
//	defer sphere.Close()
//
//	st, _ := sphere.OpenStorage(ctx, "memory", "")
//	m, _ := sphere.NewSubjectMap(ctx, st, "mymap")
//
//	// Bind the bottom proxies: bottom, item_identifier, type, scope, ...
//	_, _ = m.Bootstrap(ctx)
//
//	p, _ := m.NewProxy(ctx)
//	k, _ := m.NewProxy(ctx)
//	_ = p.AddPropertyLiteral(ctx, k, model.NewLiteral("Terje", tmrm.XSDString))
//
// # Iteration
//
// Iterators are positioned on their first element when created:
//
//	it, _ := m.Iterator(ctx)
//	defer it.Close()
//	for !it.End() {
//	    obj, _ := it.Object()
//	    if obj.Type() == tmrm.TypeProxy {
//	        p, _ := obj.Proxy()
//	        label, _ := p.Label(ctx)
//	        fmt.Println(p.ID(), label)
//	    }
//	    _ = it.Next()
//	}
//
// # Storage
//
// Backends implement storage.Storage. The sphere knows the in-memory backend
// by default; durable backends register through WithStorageFactory:
//
//	sphere := tmrm.NewSphere(
//	    tmrm.WithStorageFactory(logstore.Name, logstore.Open),
//	    tmrm.WithStorageFactory(sqlstore.Name, sqlstore.Open),
//	)
//	st, _ := sphere.OpenStorage(ctx, "sql", "driver='sqlite' path='map.db'")
//
// # Lifetimes
//
// A Proxy is a handle. Free releases the handle, not the subject: the data
// stays in storage. Closing a subject map closes its storage and invalidates
// every handle created from it. Closing the sphere closes all of its maps.
package tmrm
