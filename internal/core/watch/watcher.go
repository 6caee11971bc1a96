// Package watch keeps tracked files and folders live: it wraps fsnotify,
// polls for change batches on a fixed delay and fans classified events out
// to listeners.
//
// Registered folders are the ones the OS watches. Tracked files and tracked
// folders are the ones listeners care about. A folder can be registered
// without being tracked when it only holds a tracked file.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"otterlive/internal/logger"
	"otterlive/internal/metrics"
)

const DefaultPollInterval = 2 * time.Second

type Kind int

const (
	Created Kind = iota + 1
	Modified
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Listener receives forwarded events. Paths are absolute and clean. Calls
// come from the poll loop goroutine, one at a time.
type Listener interface {
	FileChanged(kind Kind, path string)
	FolderChanged(kind Kind, path string)
}

type Options struct {
	PollInterval time.Duration
	// Ignore drops events for matching paths before classification.
	Ignore  func(path string) bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Watcher struct {
	fsw      *fsnotify.Watcher
	interval time.Duration
	ignore   func(string) bool
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	registered map[string]struct{}
	files      map[string]struct{}
	filesIn    map[string]int
	folders    map[string]struct{}
	listeners  []Listener

	closeOnce sync.Once
	closed    chan struct{}
}

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewBufferedWatcher(1024)
	if err != nil {
		return nil, err
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("watch")
	}
	return &Watcher{
		fsw:        fsw,
		interval:   interval,
		ignore:     opts.Ignore,
		log:        log,
		metrics:    opts.Metrics,
		registered: map[string]struct{}{},
		files:      map[string]struct{}{},
		filesIn:    map[string]int{},
		folders:    map[string]struct{}{},
		closed:     make(chan struct{}),
	}, nil
}

func (w *Watcher) AddListener(l Listener) {
	if l == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, l)
	w.mu.Unlock()
}

// RegisterFile tracks path and watches its parent folder.
func (w *Watcher) RegisterFile(path string) error {
	path, err := absPath(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; ok {
		return nil
	}
	parent := filepath.Dir(path)
	if err := w.registerLocked(parent); err != nil {
		return err
	}
	w.files[path] = struct{}{}
	w.filesIn[parent]++
	return nil
}

// RegisterFolder tracks path and watches it.
func (w *Watcher) RegisterFolder(path string) error {
	path, err := absPath(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.registerLocked(path); err != nil {
		return err
	}
	w.folders[path] = struct{}{}
	return nil
}

func (w *Watcher) UnregisterFile(path string) {
	path, err := absPath(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.untrackFileLocked(path)
}

func (w *Watcher) UnregisterFolder(path string) {
	path, err := absPath(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.folders, path)
	w.releaseLocked(path)
}

func (w *Watcher) registerLocked(dir string) error {
	if _, ok := w.registered[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		w.log.Warn("watch folder failed", "path", dir, "error", err)
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.registered[dir] = struct{}{}
	return nil
}

func (w *Watcher) untrackFileLocked(path string) {
	if _, ok := w.files[path]; !ok {
		return
	}
	delete(w.files, path)
	parent := filepath.Dir(path)
	if w.filesIn[parent]--; w.filesIn[parent] <= 0 {
		delete(w.filesIn, parent)
	}
	w.releaseLocked(parent)
}

// releaseLocked drops the OS watch on dir once neither dir nor a tracked
// file inside it needs it.
func (w *Watcher) releaseLocked(dir string) {
	if _, ok := w.registered[dir]; !ok {
		return
	}
	if _, tracked := w.folders[dir]; tracked || w.filesIn[dir] > 0 {
		return
	}
	delete(w.registered, dir)
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		w.log.Debug("unwatch folder", "path", dir, "error", err)
	}
}

func (w *Watcher) IsRegistered(path string) bool {
	return w.has(w.registered, path)
}

func (w *Watcher) IsTrackedFile(path string) bool {
	return w.has(w.files, path)
}

func (w *Watcher) IsTrackedFolder(path string) bool {
	return w.has(w.folders, path)
}

func (w *Watcher) has(set map[string]struct{}, path string) bool {
	path, err := absPath(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := set[path]
	return ok
}

func (w *Watcher) TrackedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedKeys(w.files)
}

func (w *Watcher) TrackedFolders() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedKeys(w.folders)
}

// Registered returns the number of folders under OS watch.
func (w *Watcher) Registered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.registered)
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.fsw.Close()
	})
	return err
}

func absPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// exists is swapped in tests.
var exists = func(path string) (isDir bool, ok bool) {
	st, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return st.IsDir(), true
}
