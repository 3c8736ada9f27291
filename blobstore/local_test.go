package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStores(t *testing.T) {
	stores := map[string]func(t *testing.T) BlobStore{
		"Memory": func(t *testing.T) BlobStore { return NewMemoryStore() },
		"Local":  func(t *testing.T) BlobStore { return NewLocalStore(t.TempDir()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("Lifecycle", func(t *testing.T) {
				testLifecycle(t, newStore(t))
			})
			t.Run("ReadRange", func(t *testing.T) {
				testReadRange(t, newStore(t))
			})
			t.Run("PutOverwrite", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				require.NoError(t, s.Put(ctx, "CURRENT", []byte("seg-1")))
				require.NoError(t, s.Put(ctx, "CURRENT", []byte("seg-22")))

				data, err := ReadAll(ctx, s, "CURRENT")
				require.NoError(t, err)
				assert.Equal(t, "seg-22", string(data))
			})
			t.Run("EmptyBlob", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				require.NoError(t, s.Put(ctx, "empty", nil))

				data, err := ReadAll(ctx, s, "empty")
				require.NoError(t, err)
				assert.Empty(t, data)
			})
			t.Run("NotFound", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				_, err := s.Open(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
				assert.NoError(t, s.Delete(ctx, "missing"))
			})
		})
	}
}

func testLifecycle(t *testing.T, store BlobStore) {
	ctx := context.Background()
	data := []byte("hello world, this is a test blob for tmrm")

	w, err := store.Create(ctx, "seg-001.seg")
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Sync())

	// Not visible before Close.
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	assert.Error(t, w.Close())

	blob, err := store.Open(ctx, "seg-001.seg")
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	require.NoError(t, store.Put(ctx, "seg-002.seg", []byte("x")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("seg-002.seg")))

	names, err = store.List(ctx, "seg-")
	require.NoError(t, err)
	require.Equal(t, []string{"seg-001.seg", "seg-002.seg"}, names)

	require.NoError(t, store.Delete(ctx, "seg-001.seg"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"CURRENT", "seg-002.seg"}, names)
}

func testReadRange(t *testing.T, store BlobStore) {
	ctx := context.Background()
	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "boundary.bin", data))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, data, content)

	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "89", string(content))

	_, err = blob.ReadRange(ctx, 20, 5)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocalStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "maps/a/seg-1.seg", []byte("abc")))

	_, err := os.Stat(filepath.Join(dir, "maps", "a", "seg-1.seg"))
	require.NoError(t, err)

	names, err := store.List(ctx, "maps/")
	require.NoError(t, err)
	assert.Equal(t, []string{"maps/a/seg-1.seg"}, names)

	entries, err := os.ReadDir(filepath.Join(dir, "maps", "a"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not survive a write")
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "not-yet"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", data))
	data[0] = 'z'

	got, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
