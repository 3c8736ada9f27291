// Package sqlstore implements storage.Storage on a relational database.
//
// Two dialects are supported: SQLite through the pure Go modernc.org/sqlite
// driver and PostgreSQL through github.com/lib/pq. Proxies and properties
// live in two tables:
//
//	tmrm_proxy    (id)
//	tmrm_property (seq, source, pkey, vproxy, vliteral, vdatatype)
//
// Insertion order is the order of seq. Every mutation commits before it
// returns.
package sqlstore
