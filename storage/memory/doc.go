// Package memory implements a process-local storage backend.
//
// Proxies are tracked in a 64-bit roaring bitmap. Properties live in an
// append-only row log; posting lists of row numbers (32-bit roaring bitmaps)
// index the log by source, key, value and literal datatype, so
// (source, key) lookups are a bitmap intersection.
//
// Cursors iterate over a snapshot taken when the cursor is opened and can be
// reset. The store is safe for concurrent use.
package memory
