// Package storage defines the contract between a subject map and the
// backend persisting its proxies and properties.
//
// A backend allocates opaque proxy handles, appends properties and streams
// them back through cursors. The subject map layer owns all graph semantics
// (aliases, ontology import, labels); backends only store and retrieve.
//
// # Backends
//
//   - storage/memory: process-local, bitmap indexed
//   - storage/logstore: append-only record log persisted to a blobstore.BlobStore
//   - storage/sqlstore: SQLite and PostgreSQL through database/sql
//
// # Optional capabilities
//
// Backends may implement ReverseIndex, DatatypeIndex and ProxyLookup to
// answer lookups without a full scan. Cursors may implement Resetter.
// Callers check with a type assertion and fall back to scanning.
package storage
