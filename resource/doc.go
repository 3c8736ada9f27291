// Package resource bounds the work the log-structured backend does in the
// background: bytes of segment data held in memory during replay, the number
// of concurrent segment fetches and the I/O rate against the blob store.
package resource
