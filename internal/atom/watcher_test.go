package atom

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// reloadRecorder collects watcher callbacks for assertions.
type reloadRecorder struct {
	ch chan struct {
		catalog *Catalog
		err     error
	}
}

func newReloadRecorder() *reloadRecorder {
	return &reloadRecorder{
		ch: make(chan struct {
			catalog *Catalog
			err     error
		}, 16),
	}
}

func (r *reloadRecorder) fn(catalog *Catalog, err error) {
	r.ch <- struct {
		catalog *Catalog
		err     error
	}{catalog, err}
}

func (r *reloadRecorder) wait(t *testing.T) (*Catalog, error) {
	t.Helper()
	select {
	case got := <-r.ch:
		return got.catalog, got.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for catalog reload")
		return nil, nil
	}
}

func TestCatalogWatcher_ReloadOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "- id: base\n  content: original\n")

	rec := newReloadRecorder()
	watcher, err := NewCatalogWatcher(dir, rec.fn)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()
	assert.True(t, watcher.IsWatching())

	writeFile(t, dir, "extra.yaml", "- id: extra\n  content: added later\n")

	catalog, reloadErr := rec.wait(t)
	require.NoError(t, reloadErr)
	require.NotNil(t, catalog)
	assert.Equal(t, 2, catalog.Count())

	stats := watcher.GetStats()
	assert.GreaterOrEqual(t, stats.FilesChanged, 1)
	assert.GreaterOrEqual(t, stats.ReloadsAttempted, 1)
}

func TestCatalogWatcher_InvalidReloadReportsError(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "- id: base\n  content: ok\n")

	rec := newReloadRecorder()
	watcher, err := NewCatalogWatcher(dir, rec.fn)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	// Introduce a dangling requires edge; the reload must fail validation
	// and surface the error instead of a catalog.
	writeFile(t, dir, "bad.yaml", "- id: bad\n  content: x\n  requires: [ghost]\n")

	catalog, reloadErr := rec.wait(t)
	assert.Nil(t, catalog)
	require.Error(t, reloadErr)

	stats := watcher.GetStats()
	assert.GreaterOrEqual(t, stats.ReloadsFailed, 1)
}

func TestCatalogWatcher_IgnoresNonYAML(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "- id: base\n  content: ok\n")

	rec := newReloadRecorder()
	watcher, err := NewCatalogWatcher(dir, rec.fn)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	select {
	case <-rec.ch:
		t.Fatal("non-YAML change should not trigger a reload")
	case <-time.After(1 * time.Second):
	}
	assert.Zero(t, watcher.GetStats().FilesChanged)
}

func TestCatalogWatcher_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	watcher, err := NewCatalogWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))

	watcher.Stop()
	watcher.Stop()
	assert.False(t, watcher.IsWatching())
}

func TestCatalogWatcher_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	watcher, err := NewCatalogWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	require.NoError(t, watcher.Start(context.Background()))
	watcher.Stop()
}
