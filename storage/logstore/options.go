package logstore

import (
	"log/slog"

	"github.com/hupe1980/tmrm/resource"
)

// Options configures a Store.
type Options struct {
	// Compression is the block codec for new segments.
	// Default: CompressionLZ4
	Compression Compression

	// FlushEvery is the number of mutations buffered before a segment is
	// written. 1 makes every mutation durable on return.
	// Default: 1
	FlushEvery int

	// BlockSize is the uncompressed size of a segment block, at most 64MB.
	// Default: 256KB
	BlockSize int

	// CompactEvery triggers a compaction once this many log segments exist
	// beyond the current snapshot. 0 disables automatic compaction.
	// Default: 0
	CompactEvery int

	// Resources bounds replay memory, fetch concurrency and blob I/O.
	Resources resource.Config

	// Logger receives replay and compaction events. nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionLZ4,
		FlushEvery:  1,
		BlockSize:   256 * 1024,
	}
}

func (o *Options) normalize() {
	if o.FlushEvery <= 0 {
		o.FlushEvery = 1
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 256 * 1024
	}
	if o.BlockSize > maxBlockSize {
		o.BlockSize = maxBlockSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}
