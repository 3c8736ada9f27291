// Package logstore implements a durable storage backend on top of a
// blobstore.BlobStore.
//
// Every mutation is appended to a log segment. Segments are framed records
// with a CRC32-C checksum, grouped into LZ4 or Zstandard compressed blocks.
// Opening a store replays the snapshot named by CURRENT followed by all newer
// log segments into an in-memory index. Compact folds the log into a new
// snapshot.
//
// Layout:
//
//	CURRENT                          name of the live snapshot
//	snap-<seq>-<writer>.snap         full state up to log segment <seq>
//	seg-<seq>-<writer>.log           mutations after the snapshot
//
// The blob store can be local disk, memory, S3 (optionally with DynamoDB
// commits of CURRENT) or MinIO. A store must have a single writer.
package logstore
