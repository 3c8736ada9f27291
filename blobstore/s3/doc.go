// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("maps/people/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Segments written by the log-structured backend are immutable, so the only
// blob that is ever overwritten is the CURRENT snapshot pointer. S3 offers no
// compare-and-swap for it; DDBCommitStore routes CURRENT through a DynamoDB
// conditional write so concurrent compactions cannot silently lose a commit.
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large segments via the s3 manager
//   - CRC32C checksums on single-part puts
//   - Automatic pagination for listing
package s3
