// Package hash provides the CRC32-Castagnoli checksums that frame log
// records and snapshot blocks.
//
//	sum := hash.CRC32C(payload)
//	if !hash.VerifyCRC32C(payload, sum) { ... }
package hash
