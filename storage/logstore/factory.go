package logstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hupe1980/tmrm/blobstore"
	"github.com/hupe1980/tmrm/blobstore/minio"
	"github.com/hupe1980/tmrm/blobstore/s3"
	"github.com/hupe1980/tmrm/storage"
)

// Name is the backend name used in a sphere registry.
const Name = "logstore"

// Open is a storage.Factory. The descriptor selects the blob store:
//
//	store='memory'
//	store='local' dir='/var/lib/tmrm'
//	store='s3' bucket='b' prefix='maps/one' region='eu-west-1' ddb_table='tmrm-commits'
//	store='minio' endpoint='localhost:9000' bucket='b' access_key='k' secret_key='s' secure='false'
//
// Common keys: compression (none|lz4|zstd), flush_every, compact_every,
// io_limit (bytes per second), max_fetchers.
func Open(ctx context.Context, descriptor string) (storage.Storage, error) {
	s, err := open(ctx, descriptor)
	if err != nil {
		return nil, &storage.ConnectionError{Backend: Name, Err: err}
	}
	return s, nil
}

func open(ctx context.Context, descriptor string) (*Store, error) {
	d, err := storage.ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	if v, ok := d["compression"]; ok {
		if opts.Compression, err = ParseCompression(v); err != nil {
			return nil, err
		}
	}
	if opts.FlushEvery, err = d.Int("flush_every", opts.FlushEvery); err != nil {
		return nil, err
	}
	if opts.CompactEvery, err = d.Int("compact_every", opts.CompactEvery); err != nil {
		return nil, err
	}
	ioLimit, err := d.Int("io_limit", 0)
	if err != nil {
		return nil, err
	}
	fetchers, err := d.Int("max_fetchers", 0)
	if err != nil {
		return nil, err
	}
	opts.Resources.IOLimitBytesPerSec = int64(ioLimit)
	opts.Resources.MaxFetchers = int64(fetchers)

	bs, err := openBlobStore(ctx, d)
	if err != nil {
		return nil, err
	}
	return New(ctx, bs, func(o *Options) { *o = opts })
}

func openBlobStore(ctx context.Context, d storage.Descriptor) (blobstore.BlobStore, error) {
	switch kind := d.Get("store", "memory"); kind {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "local":
		dir := d.Get("dir", "")
		if dir == "" {
			return nil, &storage.DescriptorError{Msg: "store 'local' requires dir"}
		}
		return blobstore.NewLocalStore(dir), nil
	case "s3":
		bucket := d.Get("bucket", "")
		if bucket == "" {
			return nil, &storage.DescriptorError{Msg: "store 's3' requires bucket"}
		}
		prefix := d.Get("prefix", "")
		region := d.Get("region", "")
		st, err := s3.New(ctx, bucket, s3.WithPrefix(prefix), s3.WithRegion(region))
		if err != nil {
			return nil, err
		}
		table := d.Get("ddb_table", "")
		if table == "" {
			return st, nil
		}
		var cfgOpts []func(*config.LoadOptions) error
		if region != "" {
			cfgOpts = append(cfgOpts, config.WithRegion(region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
		if err != nil {
			return nil, err
		}
		baseURI := "s3://" + bucket
		if p := strings.Trim(prefix, "/"); p != "" {
			baseURI += "/" + p
		}
		return s3.NewDDBCommitStore(st, dynamodb.NewFromConfig(cfg), table, baseURI), nil
	case "minio":
		secure, err := d.Bool("secure", false)
		if err != nil {
			return nil, err
		}
		create, err := d.Bool("create_bucket", false)
		if err != nil {
			return nil, err
		}
		return minio.Dial(ctx, minio.Config{
			Endpoint:     d.Get("endpoint", ""),
			AccessKey:    d.Get("access_key", ""),
			SecretKey:    d.Get("secret_key", ""),
			Region:       d.Get("region", ""),
			Secure:       secure,
			Bucket:       d.Get("bucket", ""),
			Prefix:       d.Get("prefix", ""),
			CreateBucket: create,
		})
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
