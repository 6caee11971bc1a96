// Package indexer drives the radix index from the filesystem: it walks
// folders, schedules per-document tasks on the worker pool, reacts to
// watcher events and answers searches.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"otterlive/internal/core/cache"
	"otterlive/internal/core/radix"
	"otterlive/internal/core/walk"
	"otterlive/internal/core/watch"
	"otterlive/internal/core/workpool"
	"otterlive/internal/errs"
	"otterlive/internal/index/store"
	"otterlive/internal/logger"
	"otterlive/internal/metrics"
	"otterlive/internal/model"
)

type Manager struct {
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
	store   store.Store

	index    *radix.Index
	reg      *registry
	watcher  *watch.Watcher
	pool     *workpool.Pool
	debounce *watch.Debouncer
	cache    *cache.LRU[searchKey, []string]

	// schedCtx is cancelled by StopScheduling.
	schedCtx  context.Context
	stopSched context.CancelFunc

	mu         sync.Mutex
	pending    int
	batchTotal int
	batchDone  int
	finishing  int
	idle       chan struct{}
	idleClosed bool
	listeners  []ProgressListener

	saveMu sync.Mutex

	runMu   sync.Mutex
	cancel  context.CancelFunc
	g       *errgroup.Group
	started atomic.Bool
	closed  atomic.Bool
}

func New(opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("indexer")
	}
	if opts.SchedulerWorkers <= 0 {
		opts.SchedulerWorkers = DefaultSchedulerWorkers
	}
	if opts.Workers <= 0 {
		opts.Workers = workpool.DefaultWorkers(opts.SchedulerWorkers)
	}
	if opts.SearchCacheSize <= 0 {
		opts.SearchCacheSize = DefaultSearchCacheSize
	}

	w, err := watch.New(watch.Options{
		PollInterval: opts.PollInterval,
		Ignore:       opts.Ignore,
		Logger:       log.With("component", "watch"),
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	schedCtx, stop := context.WithCancel(context.Background())
	m := &Manager{
		opts:       opts,
		log:        log,
		metrics:    opts.Metrics,
		store:      opts.Store,
		index:      radix.New(),
		reg:        newRegistry(),
		watcher:    w,
		cache:      cache.NewLRU[searchKey, []string](opts.SearchCacheSize),
		schedCtx:   schedCtx,
		stopSched:  stop,
		idle:       make(chan struct{}),
		idleClosed: true,
	}
	close(m.idle)

	m.pool = workpool.New(context.Background(), workpool.Options{
		Workers: opts.Workers,
		Logger:  log,
	})
	if opts.Debounce > 0 {
		m.debounce = watch.NewDebouncer(opts.Debounce)
		m.debounce.OnFire(func(paths []string) {
			for _, p := range paths {
				m.scheduleUpdate(p)
			}
		})
	}
	w.AddListener(m)
	return m, nil
}

// Index exposes the underlying index for read-only use.
func (m *Manager) Index() *radix.Index { return m.index }

func (m *Manager) Watcher() *watch.Watcher { return m.watcher }

func (m *Manager) AddListener(l ProgressListener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Start runs the watcher poll loop until ctx is cancelled or Close is
// called.
func (m *Manager) Start(ctx context.Context) error {
	if m.closed.Load() {
		return fmt.Errorf("manager is closed")
	}
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return m.watcher.Run(gctx) })

	m.runMu.Lock()
	m.cancel = cancel
	m.g = g
	m.runMu.Unlock()
	m.log.Info("indexer started", "workers", m.pool.Workers())
	return nil
}

// Close stops the poll loop, lets queued tasks finish and releases the
// watcher. Pending debounced updates are flushed first.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errList []error
	if m.debounce != nil {
		m.debounce.Flush()
		m.debounce.Stop()
	}

	m.runMu.Lock()
	cancel, g := m.cancel, m.g
	m.runMu.Unlock()
	if cancel != nil {
		cancel()
		if err := g.Wait(); err != nil {
			errList = append(errList, err)
		}
	}

	if err := m.pool.Close(); err != nil {
		errList = append(errList, err)
	}
	if err := m.watcher.Close(); err != nil {
		errList = append(errList, err)
	}
	m.stopSched()
	m.log.Info("indexer stopped")
	return errors.Join(errList...)
}

// StopScheduling asks folder walks to stop handing out new files. Tasks
// already queued still run.
func (m *Manager) StopScheduling() {
	m.stopSched()
}

// IndexFolder walks path and schedules an index task for every eligible
// file. A missing or non-directory root is logged and skipped. Every visited folder is registered with the watcher once its
// entries were handled.
func (m *Manager) IndexFolder(path string) error {
	root, err := cleanPath("index folder", path)
	if err != nil {
		return err
	}
	st, err := os.Stat(root)
	if err == nil && !st.IsDir() {
		err = fmt.Errorf("not a directory")
	}
	if err != nil {
		m.log.Warn("skip folder", "path", root, "error", errs.E(errs.ErrNotAccessible, "index folder", root, err))
		return nil
	}

	scheduled := 0
	err = walk.Walk(m.schedCtx, root, m.opts.Walk, walk.Visitor{
		File: func(p string, info fs.FileInfo) error {
			if m.indexFile(p, info, false) {
				scheduled++
			}
			return nil
		},
		DirDone: func(dir string) error {
			_ = m.watcher.RegisterFolder(dir)
			return nil
		},
		OnError: func(p string, err error) {
			m.log.Debug("skip unreadable entry", "path", p, "error", err)
		},
	})
	if errors.Is(err, context.Canceled) {
		m.log.Info("folder walk stopped", "path", root, "scheduled", scheduled)
		return nil
	}
	if err != nil {
		return errs.E(errs.ErrIO, "index folder", root, err)
	}
	m.log.Info("folder scheduled", "path", root, "files", scheduled)
	return nil
}

// IndexFile schedules path as a tracked document. It reports whether a task
// was scheduled; ineligible files are skipped.
func (m *Manager) IndexFile(path string) (bool, error) {
	p, err := cleanPath("index file", path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		m.log.Debug("skip file", "path", p, "error", err)
		return false, nil
	}
	return m.indexFile(p, info, true), nil
}

func (m *Manager) indexFile(path string, info fs.FileInfo, tracked bool) bool {
	switch {
	case m.schedCtx.Err() != nil:
		return false
	case !info.Mode().IsRegular():
		m.log.Debug("skip file", "path", path, "reason", "not a regular file")
		return false
	case !m.opts.Walk.ScanAll && walk.IsHidden(filepath.Base(path)):
		m.log.Debug("skip file", "path", path, "reason", "hidden")
		return false
	}

	id, ok := m.reg.reserve(path)
	if !ok {
		m.log.Debug("skip file", "path", path, "reason", "already indexed")
		return false
	}
	doc := newDocument(id, path, tracked, info.ModTime())
	if !m.submit("index", func(ctx context.Context) error { return m.runIndex(doc) }) {
		m.reg.release(path)
		return false
	}
	return true
}

func (m *Manager) scheduleUpdate(path string) {
	if _, ok := m.reg.byPathLookup(path); !ok {
		return
	}
	m.submit("update", func(ctx context.Context) error { return m.runUpdate(path) })
}

func (m *Manager) scheduleRemove(id int) {
	m.submit("remove", func(ctx context.Context) error { return m.runRemove(id) })
}

// FileChanged implements watch.Listener.
func (m *Manager) FileChanged(kind watch.Kind, path string) {
	switch kind {
	case watch.Created:
		if _, ok := m.reg.byPathLookup(path); ok {
			return
		}
		if info, err := os.Stat(path); err == nil {
			m.indexFile(path, info, false)
		}
	case watch.Modified:
		if _, ok := m.reg.byPathLookup(path); !ok {
			return
		}
		if m.debounce != nil {
			m.debounce.Push(path)
			return
		}
		m.scheduleUpdate(path)
	case watch.Deleted:
		if doc, ok := m.reg.byPathLookup(path); ok {
			m.scheduleRemove(doc.ID)
		}
	}
}

// FolderChanged implements watch.Listener.
func (m *Manager) FolderChanged(kind watch.Kind, path string) {
	switch kind {
	case watch.Created:
		m.submit("folder", func(ctx context.Context) error {
			return m.IndexFolder(path)
		})
	case watch.Deleted:
		for _, doc := range m.reg.under(path) {
			m.scheduleRemove(doc.ID)
			m.watcher.UnregisterFolder(doc.ParentFolder)
		}
	}
}

func (m *Manager) Stats() model.Stats {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	return model.Stats{
		Documents:      m.reg.len(),
		Keys:           m.index.Size(),
		Pending:        pending,
		TrackedFiles:   len(m.watcher.TrackedFiles()),
		TrackedFolders: len(m.watcher.TrackedFolders()),
		WatchedFolders: m.watcher.Registered(),
	}
}

// Documents returns every indexed document ordered by id.
func (m *Manager) Documents() []model.Document {
	return m.reg.all()
}

func cleanPath(op string, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errs.Invalid(op, "path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.E(errs.ErrInvalidArgument, op, path, err)
	}
	return filepath.Clean(abs), nil
}
