package atom

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"atomgate/internal/logging"
)

// ReloadFunc receives the freshly loaded catalog after a file change settles.
// A reload that fails validation is reported through err with a nil catalog;
// the previous catalog stays current.
type ReloadFunc func(catalog *Catalog, err error)

// CatalogWatcher watches a catalog directory for YAML changes and reloads
// the catalog once changes settle past a debounce window.
type CatalogWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	catalogDir  string
	onReload    ReloadFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	FilesChanged     int
	ReloadsAttempted int
	ReloadsFailed    int
	Errors           int
	LastEventTime    time.Time
	LastEventPath    string
}

// NewCatalogWatcher creates a watcher for the given catalog directory.
func NewCatalogWatcher(catalogDir string, onReload ReloadFunc) (*CatalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &CatalogWatcher{
		watcher:     watcher,
		catalogDir:  catalogDir,
		onReload:    onReload,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the catalog directory for changes.
// This method is non-blocking; it starts the watcher in a goroutine.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil // Already running
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(cw.catalogDir); err != nil {
		logging.Get(logging.CategoryWatch).Warn(
			"CatalogWatcher: initial watch failed (dir may not exist): %v", err,
		)
	} else {
		logging.Get(logging.CategoryWatch).Info(
			"CatalogWatcher: watching directory: %s", cw.catalogDir,
		)
	}

	go cw.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (cw *CatalogWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("CatalogWatcher: error closing watcher: %v", err)
	}
	logging.Get(logging.CategoryWatch).Info("CatalogWatcher: stopped")
}

// run is the main event loop for the watcher.
func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("CatalogWatcher error: %v", err)
			cw.mu.Lock()
			cw.stats.Errors++
			cw.mu.Unlock()

		case <-debounceTicker.C:
			cw.processDebouncedEvents()
		}
	}
}

// handleEvent records a single filesystem event for debounced processing.
func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".yaml" && ext != ".yml" {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return // Ignore chmod, etc.
	}

	logging.Get(logging.CategoryWatch).Debug("CatalogWatcher: event %s for %s", event.Op, event.Name)

	cw.mu.Lock()
	cw.stats.FilesChanged++
	cw.stats.LastEventTime = time.Now()
	cw.stats.LastEventPath = event.Name
	cw.debounceMap[event.Name] = time.Now()
	cw.mu.Unlock()
}

// processDebouncedEvents reloads the catalog once changes have settled.
func (cw *CatalogWatcher) processDebouncedEvents() {
	cw.mu.Lock()
	now := time.Now()
	settled := 0
	for path, eventTime := range cw.debounceMap {
		if now.Sub(eventTime) >= cw.debounceDur {
			delete(cw.debounceMap, path)
			settled++
		}
	}
	cw.mu.Unlock()

	if settled == 0 {
		return
	}

	// One reload covers all settled files: the catalog is rebuilt whole.
	cw.reload()
}

// reload rebuilds the catalog from the watched directory and notifies.
func (cw *CatalogWatcher) reload() {
	cw.mu.Lock()
	cw.stats.ReloadsAttempted++
	cw.mu.Unlock()

	if _, err := os.Stat(cw.catalogDir); os.IsNotExist(err) {
		logging.Get(logging.CategoryWatch).Debug(
			"CatalogWatcher: catalog dir gone, skipping reload: %s", cw.catalogDir,
		)
		return
	}

	catalog, err := LoadCatalogDir(cw.catalogDir)
	if err != nil {
		logging.Get(logging.CategoryWatch).Warn("CatalogWatcher: reload failed: %v", err)
		cw.mu.Lock()
		cw.stats.ReloadsFailed++
		cw.mu.Unlock()
		if cw.onReload != nil {
			cw.onReload(nil, err)
		}
		return
	}

	logging.Get(logging.CategoryWatch).Info(
		"CatalogWatcher: reloaded catalog with %d atoms", catalog.Count(),
	)
	if cw.onReload != nil {
		cw.onReload(catalog, nil)
	}
}

// GetStats returns the current watcher statistics.
func (cw *CatalogWatcher) GetStats() WatcherStats {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.stats
}

// IsWatching returns true if the watcher is currently running.
func (cw *CatalogWatcher) IsWatching() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.running
}
