package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type change struct {
	kind Kind
	path string
}

// Run is the poll loop. It blocks for the next batch of OS events, drains
// whatever else is queued, dispatches the batch and sleeps for the poll
// interval. It returns nil when ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w.log.Info("watcher started", "interval", w.interval)
	defer w.log.Info("watcher stopped")

	for {
		var batch []fsnotify.Event
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			batch = append(batch, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)
			continue
		}

	drain:
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					break drain
				}
				batch = append(batch, ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					break drain
				}
				w.log.Error("watch error", "error", err)
			default:
				break drain
			}
		}

		w.dispatch(coalesce(batch))

		t := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-w.closed:
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// coalesce maps raw events to changes, drops duplicates and keeps the
// first-seen order.
func coalesce(batch []fsnotify.Event) []change {
	seen := make(map[change]struct{}, len(batch))
	out := make([]change, 0, len(batch))
	for _, ev := range batch {
		kind, ok := kindOf(ev.Op)
		if !ok || ev.Name == "" {
			continue
		}
		c := change{kind: kind, path: filepath.Clean(ev.Name)}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func kindOf(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write):
		return Modified, true
	default:
		return 0, false
	}
}

func (w *Watcher) dispatch(changes []change) {
	for _, c := range changes {
		abs, err := absPath(c.path)
		if err != nil {
			continue
		}
		if w.ignore != nil && w.ignore(abs) {
			continue
		}
		if w.classifyDir(c.kind, abs) {
			w.onFolderChanged(c.kind, abs)
		} else {
			w.onFileChanged(c.kind, abs)
		}
	}
}

// classifyDir decides whether path names a folder. A vanished path is a
// folder when it was registered or tracked as one; a vanished registered
// folder is dropped from the registered set.
func (w *Watcher) classifyDir(kind Kind, path string) bool {
	if isDir, ok := exists(path); ok {
		return isDir
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, registered := w.registered[path]
	_, tracked := w.folders[path]
	if registered && kind == Deleted {
		delete(w.registered, path)
		_ = w.fsw.Remove(path)
	}
	return registered || tracked
}

func (w *Watcher) onFolderChanged(kind Kind, path string) {
	parent := filepath.Dir(path)

	w.mu.Lock()
	_, tracked := w.folders[path]
	_, parentTracked := w.folders[parent]
	var orphans []string
	if kind == Deleted {
		if tracked {
			delete(w.folders, path)
			w.releaseLocked(path)
		} else {
			for f := range w.files {
				if filepath.Dir(f) == path {
					orphans = append(orphans, f)
				}
			}
		}
	}
	listeners := w.snapshotListenersLocked()
	w.mu.Unlock()

	for _, f := range orphans {
		w.onFileChanged(Deleted, f)
	}
	if !tracked && !parentTracked {
		return
	}
	w.metrics.WatchEvent(kind.String(), "folder")
	for _, l := range listeners {
		l.FolderChanged(kind, path)
	}
}

func (w *Watcher) onFileChanged(kind Kind, path string) {
	parent := filepath.Dir(path)

	w.mu.Lock()
	_, tracked := w.files[path]
	_, parentTracked := w.folders[parent]
	if !tracked && !parentTracked {
		w.mu.Unlock()
		return
	}
	if kind == Deleted && tracked {
		w.untrackFileLocked(path)
	}
	listeners := w.snapshotListenersLocked()
	w.mu.Unlock()

	w.metrics.WatchEvent(kind.String(), "file")
	for _, l := range listeners {
		l.FileChanged(kind, path)
	}
}

func (w *Watcher) snapshotListenersLocked() []Listener {
	out := make([]Listener, len(w.listeners))
	copy(out, w.listeners)
	return out
}
