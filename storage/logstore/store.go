package logstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/tmrm/blobstore"
	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/resource"
	"github.com/hupe1980/tmrm/storage"
	"github.com/hupe1980/tmrm/storage/memory"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Store is a durable storage.Storage that logs every mutation to a blob store.
//
// Reads are served from an in-memory index rebuilt on open. Writes append a
// record to the pending buffer, which is written as a log segment once
// FlushEvery records have accumulated. A record is applied to the index only
// after it was accepted into the buffer, so a failed flush leaves no trace.
type Store struct {
	bs     blobstore.BlobStore
	mem    *memory.Store
	opts   Options
	rc     *resource.Controller
	logger *slog.Logger
	writer string

	mu       sync.Mutex
	closed   bool
	pending  []byte
	pendingN int
	seq      uint64 // next log segment
	snapshot string
	snapSeq  uint64
	logs     []string

	compact singleflight.Group
}

var (
	_ storage.Storage       = (*Store)(nil)
	_ storage.ReverseIndex  = (*Store)(nil)
	_ storage.DatatypeIndex = (*Store)(nil)
	_ storage.ProxyLookup   = (*Store)(nil)
)

// New opens the store persisted in bs, replaying the current snapshot and
// all newer log segments.
func New(ctx context.Context, bs blobstore.BlobStore, optFns ...func(*Options)) (*Store, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	s := &Store{
		bs:     bs,
		mem:    memory.New(),
		opts:   opts,
		rc:     resource.NewController(opts.Resources),
		logger: opts.Logger,
		writer: uuid.NewString(),
		seq:    1,
	}
	if err := s.replay(ctx); err != nil {
		_ = s.mem.Close()
		return nil, err
	}
	return s, nil
}

type fetched struct {
	name    string
	header  segmentHeader
	records []record
}

func (s *Store) replay(ctx context.Context) error {
	current, err := blobstore.ReadAll(ctx, s.bs, currentName)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read %s: %w", currentName, err)
	default:
		s.snapshot = strings.TrimSpace(string(current))
		snap, err := s.fetch(ctx, s.snapshot)
		if err != nil {
			return err
		}
		if snap.header.kind != kindSnapshot {
			return fmt.Errorf("%s: %w: not a snapshot", s.snapshot, errBadSegment)
		}
		if err := s.apply(ctx, snap); err != nil {
			return err
		}
		s.snapSeq = snap.header.seq
		s.seq = s.snapSeq + 1
	}

	names, err := s.bs.List(ctx, logPrefix)
	if err != nil {
		return fmt.Errorf("list segments: %w", err)
	}

	type ref struct {
		name string
		seq  uint64
	}
	var refs []ref
	for _, name := range names {
		seq, ok := parseSeq(name, logPrefix)
		if !ok {
			s.logger.WarnContext(ctx, "ignoring foreign blob", "name", name)
			continue
		}
		if seq <= s.snapSeq {
			// Covered by the snapshot; a compaction was interrupted before cleanup.
			if err := s.bs.Delete(ctx, name); err != nil {
				s.logger.WarnContext(ctx, "stale segment cleanup failed", "name", name, "error", err)
			}
			continue
		}
		refs = append(refs, ref{name: name, seq: seq})
	}
	slices.SortFunc(refs, func(a, b ref) int {
		if a.seq != b.seq {
			if a.seq < b.seq {
				return -1
			}
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	segs := make([]*fetched, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range refs {
		g.Go(func() error {
			if err := s.rc.AcquireFetch(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseFetch()

			f, err := s.fetch(gctx, r.name)
			if err != nil {
				return err
			}
			segs[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range segs {
		if err := s.apply(ctx, f); err != nil {
			return err
		}
		s.logs = append(s.logs, f.name)
		s.seq = max(s.seq, f.header.seq+1)
	}

	st := s.mem.Stats()
	s.logger.InfoContext(ctx, "log store replayed",
		"snapshot", s.snapshot,
		"segments", len(segs),
		"proxies", st.Proxies,
		"properties", st.Properties,
	)
	return nil
}

// fetch reads and decodes one segment.
func (s *Store) fetch(ctx context.Context, name string) (*fetched, error) {
	b, err := s.bs.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	size := b.Size()
	if err := s.rc.AcquireMemory(ctx, size); err != nil {
		return nil, err
	}
	defer s.rc.ReleaseMemory(size)

	var data []byte
	if size > 0 {
		rc, err := b.ReadRange(ctx, 0, size)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		data, err = io.ReadAll(resource.NewRateLimitedReader(ctx, rc, s.rc))
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}

	h, payload, err := decodeSegment(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f := &fetched{name: name, header: h, records: make([]record, 0, h.records)}
	if err := decodeRecords(payload, func(r record) error {
		f.records = append(f.records, r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if uint32(len(f.records)) != h.records {
		return nil, fmt.Errorf("%s: %w: %d of %d records", name, errBadSegment, len(f.records), h.records)
	}
	return f, nil
}

func (s *Store) apply(ctx context.Context, f *fetched) error {
	for _, r := range f.records {
		var err error
		switch r.typ {
		case recordAlloc:
			err = s.mem.RestoreProxy(r.id)
		case recordProperty:
			err = s.mem.AddProperty(ctx, r.prop)
		}
		if err != nil {
			return fmt.Errorf("replay %s: %w", f.name, err)
		}
	}
	return nil
}

// AllocateProxy implements storage.Storage.
func (s *Store) AllocateProxy(ctx context.Context) (model.ProxyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.NoProxy, storage.NewError("allocate_proxy", model.NoProxy, storage.ErrClosed)
	}

	id := s.mem.Stats().LastID + 1
	if err := s.logLocked(ctx, record{typ: recordAlloc, id: id}); err != nil {
		return model.NoProxy, storage.NewError("allocate_proxy", model.NoProxy, err)
	}
	if err := s.mem.RestoreProxy(id); err != nil {
		return model.NoProxy, err
	}
	return id, nil
}

// AddProperty implements storage.Storage.
func (s *Store) AddProperty(ctx context.Context, p model.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.NewError("add_property", p.Source, storage.ErrClosed)
	}
	if !p.Value.IsValid() {
		return storage.NewError("add_property", p.Source, storage.ErrInvalidValue)
	}

	refs := []model.ProxyID{p.Source, p.Key}
	if id, ok := p.Value.Proxy(); ok {
		refs = append(refs, id)
	}
	for _, id := range refs {
		ok, err := s.mem.HasProxy(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return storage.NewError("add_property", p.Source, storage.ErrUnknownProxy)
		}
	}

	if err := s.logLocked(ctx, record{typ: recordProperty, prop: p}); err != nil {
		return storage.NewError("add_property", p.Source, err)
	}
	return s.mem.AddProperty(ctx, p)
}

// logLocked buffers r and flushes when the buffer is full. If the flush
// fails, r is removed from the buffer again.
func (s *Store) logLocked(ctx context.Context, r record) error {
	mark := len(s.pending)
	s.pending = appendRecord(s.pending, r)
	s.pendingN++

	if s.pendingN < s.opts.FlushEvery {
		return nil
	}
	if err := s.flushLocked(ctx); err != nil {
		s.pending = s.pending[:mark]
		s.pendingN--
		return err
	}
	return nil
}

// Flush writes buffered mutations as a log segment.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if s.pendingN == 0 {
		return nil
	}

	seg := encodeSegment(segmentHeader{
		kind:        kindLog,
		compression: s.opts.Compression,
		seq:         s.seq,
		records:     uint32(s.pendingN),
	}, s.pending, s.opts.BlockSize)

	if err := s.rc.AcquireIO(ctx, len(seg)); err != nil {
		return err
	}
	name := logName(s.seq, s.writer)
	if err := s.bs.Put(ctx, name, seg); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "segment written", "name", name, "records", s.pendingN, "bytes", len(seg))
	s.logs = append(s.logs, name)
	s.seq++
	s.pending = s.pending[:0]
	s.pendingN = 0

	if s.opts.CompactEvery > 0 && len(s.logs) >= s.opts.CompactEvery {
		if _, err := s.compactLocked(ctx); err != nil {
			// The segment is durable; compaction is retried on the next flush.
			s.logger.WarnContext(ctx, "automatic compaction failed", "error", err)
		}
	}
	return nil
}

// CompactionResult describes a finished compaction.
type CompactionResult struct {
	Snapshot       string
	Proxies        int
	Properties     int
	SegmentsMerged int
}

// Compact folds the current snapshot and all log segments into a new
// snapshot, commits it as CURRENT and deletes what it replaced. Concurrent
// calls share one compaction.
func (s *Store) Compact(ctx context.Context) (*CompactionResult, error) {
	v, err, _ := s.compact.Do("compact", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed {
			return nil, storage.ErrClosed
		}
		if err := s.flushLocked(ctx); err != nil {
			return nil, err
		}
		return s.compactLocked(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompactionResult), nil
}

func (s *Store) compactLocked(ctx context.Context) (*CompactionResult, error) {
	if len(s.logs) == 0 {
		st := s.mem.Stats()
		return &CompactionResult{Snapshot: s.snapshot, Proxies: st.Proxies, Properties: st.Properties}, nil
	}

	ids, props := s.mem.Snapshot()
	payload := make([]byte, 0, len(ids)*(frameHeaderSize+8)+len(props)*(frameHeaderSize+32))
	for _, id := range ids {
		payload = appendRecord(payload, record{typ: recordAlloc, id: id})
	}
	for _, p := range props {
		payload = appendRecord(payload, record{typ: recordProperty, prop: p})
	}

	covered := s.seq - 1
	seg := encodeSegment(segmentHeader{
		kind:        kindSnapshot,
		compression: s.opts.Compression,
		seq:         covered,
		records:     uint32(len(ids) + len(props)),
	}, payload, s.opts.BlockSize)

	name := snapshotName(covered, s.writer)
	if err := s.writeStreaming(ctx, name, seg); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.bs.Put(ctx, currentName, []byte(name)); err != nil {
		_ = s.bs.Delete(ctx, name)
		return nil, fmt.Errorf("commit %s: %w", name, err)
	}

	replaced := s.logs
	if s.snapshot != "" {
		replaced = append(replaced, s.snapshot)
	}
	for _, old := range replaced {
		if err := s.bs.Delete(ctx, old); err != nil {
			s.logger.WarnContext(ctx, "segment cleanup failed", "name", old, "error", err)
		}
	}

	res := &CompactionResult{
		Snapshot:       name,
		Proxies:        len(ids),
		Properties:     len(props),
		SegmentsMerged: len(s.logs),
	}
	s.snapshot = name
	s.snapSeq = covered
	s.logs = nil

	s.logger.InfoContext(ctx, "compaction completed",
		"snapshot", name,
		"segments_merged", res.SegmentsMerged,
		"bytes", len(seg),
	)
	return res, nil
}

// writeStreaming uploads data through a rate limited streaming writer.
func (s *Store) writeStreaming(ctx context.Context, name string, data []byte) error {
	w, err := s.bs.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(resource.NewRateLimitedWriter(ctx, w, s.rc), bytes.NewReader(data)); err != nil {
		_ = w.Close()
		_ = s.bs.Delete(ctx, name)
		return err
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Properties implements storage.Storage.
func (s *Store) Properties(ctx context.Context, source, key model.ProxyID) (storage.Cursor[model.Property], error) {
	return s.mem.Properties(ctx, source, key)
}

// Proxies implements storage.Storage.
func (s *Store) Proxies(ctx context.Context) (storage.Cursor[model.ProxyID], error) {
	return s.mem.Proxies(ctx)
}

// Referrers implements storage.ReverseIndex.
func (s *Store) Referrers(ctx context.Context, v model.Value, key model.ProxyID) (storage.Cursor[model.Property], error) {
	return s.mem.Referrers(ctx, v, key)
}

// PropertiesByDatatype implements storage.DatatypeIndex.
func (s *Store) PropertiesByDatatype(ctx context.Context, datatype string) (storage.Cursor[model.Property], error) {
	return s.mem.PropertiesByDatatype(ctx, datatype)
}

// HasProxy implements storage.ProxyLookup.
func (s *Store) HasProxy(ctx context.Context, id model.ProxyID) (bool, error) {
	return s.mem.HasProxy(ctx, id)
}

// Stats describes the persisted state of a Store.
type Stats struct {
	memory.Stats
	Snapshot string
	Segments int
	Pending  int
	IOBytes  int64
}

// Stats returns the current state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Stats:    s.mem.Stats(),
		Snapshot: s.snapshot,
		Segments: len(s.logs),
		Pending:  s.pendingN,
		IOBytes:  s.rc.IOBytes(),
	}
}

// Close flushes pending mutations and releases the store. It is safe to
// call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flushLocked(context.Background())
	return errors.Join(err, s.mem.Close())
}
