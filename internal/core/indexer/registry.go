package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"otterlive/internal/model"
)

// registry owns the documents known to the manager. A path is either
// reserved (an index task is pending for it) or indexed, never both.
type registry struct {
	mu       sync.RWMutex
	byID     map[int]model.Document
	byPath   map[string]int
	reserved map[string]struct{}
	nextID   int
	gen      uint64

	lockMu sync.Mutex
	locks  map[int]*docLock
}

// docLock serializes the update and remove tasks of one document.
type docLock struct {
	mu   sync.Mutex
	refs int
}

func newRegistry() *registry {
	return &registry{
		byID:     map[int]model.Document{},
		byPath:   map[string]int{},
		reserved: map[string]struct{}{},
		nextID:   1,
		locks:    map[int]*docLock{},
	}
}

// reserve claims path for indexing and hands out the next id. It fails when
// path is already indexed or pending.
func (r *registry) reserve(path string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPath[path]; ok {
		return 0, false
	}
	if _, ok := r.reserved[path]; ok {
		return 0, false
	}
	r.reserved[path] = struct{}{}
	id := r.nextID
	r.nextID++
	return id, true
}

// lock blocks until no other task holds id and returns the unlock func.
func (r *registry) lock(id int) func() {
	r.lockMu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &docLock{}
		r.locks[id] = l
	}
	l.refs++
	r.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.lockMu.Unlock()
	}
}

func (r *registry) release(path string) {
	r.mu.Lock()
	delete(r.reserved, path)
	r.mu.Unlock()
}

func (r *registry) add(doc model.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, doc.Path)
	r.byID[doc.ID] = doc
	r.byPath[doc.Path] = doc.ID
	if doc.ID >= r.nextID {
		r.nextID = doc.ID + 1
	}
	r.gen++
}

func (r *registry) remove(id int) (model.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return model.Document{}, false
	}
	delete(r.byID, id)
	if r.byPath[doc.Path] == id {
		delete(r.byPath, doc.Path)
	}
	r.gen++
	return doc, true
}

func (r *registry) touch(id int, mod time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.byID[id]; ok {
		doc.ModTime = mod
		r.byID[id] = doc
	}
}

func (r *registry) get(id int) (model.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	return doc, ok
}

func (r *registry) byPathLookup(path string) (model.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPath[path]
	if !ok {
		return model.Document{}, false
	}
	return r.byID[id], true
}

// under returns the documents at or below folder.
func (r *registry) under(folder string) []model.Document {
	prefix := strings.TrimSuffix(folder, string(os.PathSeparator)) + string(os.PathSeparator)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Document
	for _, doc := range r.byID {
		if doc.ParentFolder == folder || strings.HasPrefix(doc.Path, prefix) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) all() []model.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Document, 0, len(r.byID))
	for _, doc := range r.byID {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// generation changes whenever a document is added or removed.
func (r *registry) generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

func newDocument(id int, path string, tracked bool, mod time.Time) model.Document {
	return model.Document{
		ID:           id,
		Path:         path,
		Tracked:      tracked,
		ParentFolder: filepath.Dir(path),
		ModTime:      mod,
	}
}
