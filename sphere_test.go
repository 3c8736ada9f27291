package tmrm_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tmrm"
	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
	"github.com/hupe1980/tmrm/storage/memory"
)

func TestSphere_Storage(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("down")

	sphere := tmrm.NewSphere(tmrm.WithStorageFactory("broken", func(context.Context, string) (storage.Storage, error) {
		return nil, errDown
	}))
	defer sphere.Close()

	assert.Equal(t, []string{"broken", "memory"}, sphere.Backends())

	var dup *tmrm.DuplicateNameError
	require.ErrorAs(t, sphere.RegisterStorage("memory", memory.Open), &dup)
	assert.Equal(t, "storage", dup.Kind)

	var connErr *tmrm.ConnectionError
	_, err := sphere.OpenStorage(ctx, "nosuch", "")
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "nosuch", connErr.Backend)
	require.ErrorIs(t, err, tmrm.ErrUnknownStorage)

	_, err = sphere.OpenStorage(ctx, "broken", "whatever")
	require.ErrorAs(t, err, &connErr)
	require.ErrorIs(t, err, errDown)

	require.NoError(t, sphere.RegisterStorage("extra", memory.Open))
	st, err := sphere.OpenStorage(ctx, "extra", "")
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestSphere_SubjectMaps(t *testing.T) {
	ctx := context.Background()
	sphere := tmrm.NewSphere()

	a, err := sphere.NewSubjectMap(ctx, memory.New(), "a")
	require.NoError(t, err)
	_, err = sphere.NewSubjectMap(ctx, memory.New(), "b")
	require.NoError(t, err)

	var dup *tmrm.DuplicateNameError
	_, err = sphere.NewSubjectMap(ctx, memory.New(), "a")
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "subject map", dup.Kind)
	assert.Equal(t, "a", dup.Name)

	got, ok := sphere.SubjectMap("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Same(t, sphere, a.Sphere())
	assert.Equal(t, "a", a.Name())
	assert.Equal(t, []string{"a", "b"}, sphere.Names())

	require.NoError(t, a.Close())
	_, ok = sphere.SubjectMap("a")
	assert.False(t, ok)

	// The name is free again once the map is closed.
	_, err = sphere.NewSubjectMap(ctx, memory.New(), "a")
	require.NoError(t, err)

	require.NoError(t, sphere.Close())
	require.NoError(t, sphere.Close())
	assert.Empty(t, sphere.Names())

	_, err = sphere.NewSubjectMap(ctx, memory.New(), "c")
	require.ErrorIs(t, err, tmrm.ErrSphereClosed)
	_, err = sphere.OpenStorage(ctx, "memory", "")
	require.ErrorIs(t, err, tmrm.ErrSphereClosed)
	require.ErrorIs(t, sphere.RegisterStorage("late", memory.Open), tmrm.ErrSphereClosed)
}

func TestSphere_CloseClosesMaps(t *testing.T) {
	ctx := context.Background()
	sphere := tmrm.NewSphere()

	m, err := sphere.NewSubjectMap(ctx, memory.New(), "m")
	require.NoError(t, err)
	p := newProxy(t, m)

	require.NoError(t, sphere.Close())
	require.ErrorIs(t, m.Close(), tmrm.ErrSubjectMapClosed)

	_, err = p.Label(ctx)
	require.ErrorIs(t, err, tmrm.ErrSubjectMapClosed)
}

func TestSphere_LoggingAndMetrics(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	metrics := &tmrm.BasicMetricsCollector{}

	sphere := tmrm.NewSphere(
		tmrm.WithLogger(tmrm.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		tmrm.WithMetricsCollector(metrics),
	)
	defer sphere.Close()

	m, err := sphere.NewSubjectMap(ctx, memory.New(), "logged")
	require.NoError(t, err)
	_, err = m.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = m.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = m.ImportOntologyString(ctx, "proxies: {}")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"ontology imported"`)
	assert.Contains(t, out, `"subject_map":"logged"`)
	assert.Contains(t, out, `"msg":"ontology import failed"`)
	assert.Contains(t, out, `"msg":"alias registry loaded"`)

	stats := metrics.GetStats()
	assert.Equal(t, int64(19), stats.ProxyCreateCount)
	assert.Equal(t, int64(28), stats.PropertyAddCount)
	assert.Equal(t, int64(3), stats.ImportCount)
	assert.Equal(t, int64(1), stats.ImportErrors)
	assert.Equal(t, int64(10), stats.ImportBound)
	assert.Equal(t, int64(10), stats.ImportSkipped)
}

func TestSphere_LogsFailedWrites(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	metrics := &tmrm.BasicMetricsCollector{}

	sphere := tmrm.NewSphere(
		tmrm.WithLogger(tmrm.NewLogger(slog.NewJSONHandler(&buf, nil))),
		tmrm.WithMetricsCollector(metrics),
	)
	defer sphere.Close()

	st := &readOnlyStorage{Storage: memory.New()}
	m, err := sphere.NewSubjectMap(ctx, st, "readonly")
	require.NoError(t, err)

	p, err := m.NewProxy(ctx)
	require.NoError(t, err)
	st.denied = true

	err = p.AddProperty(ctx, p, p)
	require.ErrorIs(t, err, errReadOnly)

	out := buf.String()
	assert.Contains(t, out, `"msg":"property add failed"`)
	assert.Contains(t, out, fmt.Sprintf(`"proxy":%d`, uint64(p.ID())))
	assert.Contains(t, out, `"subject_map":"readonly"`)
	assert.Equal(t, int64(1), metrics.GetStats().PropertyAddErrors)
}

var errReadOnly = errors.New("read only")

// readOnlyStorage rejects property writes once denied is set.
type readOnlyStorage struct {
	storage.Storage
	denied bool
}

func (s *readOnlyStorage) AddProperty(ctx context.Context, p model.Property) error {
	if s.denied {
		return errReadOnly
	}
	return s.Storage.AddProperty(ctx, p)
}

func TestSphere_NewSubjectMapLoadsUnlocked(t *testing.T) {
	ctx := context.Background()
	sphere := tmrm.NewSphere()
	defer sphere.Close()

	st := &blockingStorage{
		Storage: memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	done := make(chan error, 1)
	go func() {
		_, err := sphere.NewSubjectMap(ctx, st, "slow")
		done <- err
	}()
	<-st.entered

	assert.Empty(t, sphere.Names())
	_, err := sphere.NewSubjectMap(ctx, memory.New(), "fast")
	require.NoError(t, err)

	var dup *tmrm.DuplicateNameError
	_, err = sphere.NewSubjectMap(ctx, memory.New(), "slow")
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"fast"}, sphere.Names())

	close(st.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"fast", "slow"}, sphere.Names())
}

// blockingStorage parks the first proxy scan until release is closed.
type blockingStorage struct {
	storage.Storage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStorage) Proxies(ctx context.Context) (storage.Cursor[model.ProxyID], error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Storage.Proxies(ctx)
}

func TestSphere_NilOptions(t *testing.T) {
	sphere := tmrm.NewSphere(tmrm.WithLogger(nil), tmrm.WithMetricsCollector(nil), tmrm.WithLogLevel(slog.LevelError))
	defer sphere.Close()

	m, err := sphere.NewSubjectMap(context.Background(), memory.New(), "quiet")
	require.NoError(t, err)
	_, err = m.Bootstrap(context.Background())
	require.NoError(t, err)
}
