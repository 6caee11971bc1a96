package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"otterlive/internal/logger"
)

type event struct {
	kind   Kind
	path   string
	folder bool
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) FileChanged(kind Kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: kind, path: path})
}

func (r *recorder) FolderChanged(kind Kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: kind, path: path, folder: true})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) has(want event) bool {
	for _, e := range r.all() {
		if e == want {
			return true
		}
	}
	return false
}

func newWatcher(t *testing.T) (*Watcher, *recorder) {
	t.Helper()
	w, err := New(Options{PollInterval: 10 * time.Millisecond, Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	rec := &recorder{}
	w.AddListener(rec)
	return w, rec
}

func touch(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x\n"), 0o644))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "created", Created.String())
	require.Equal(t, "modified", Modified.String())
	require.Equal(t, "deleted", Deleted.String())
}

func TestRegisterFile_WatchesParent(t *testing.T) {
	w, _ := newWatcher(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	touch(t, file)

	require.NoError(t, w.RegisterFile(file))
	require.True(t, w.IsTrackedFile(file))
	require.True(t, w.IsRegistered(dir))
	require.False(t, w.IsTrackedFolder(dir))
	require.Equal(t, []string{file}, w.TrackedFiles())
}

func TestRegisterFolder_MissingPathStaysUntracked(t *testing.T) {
	w, _ := newWatcher(t)
	missing := filepath.Join(t.TempDir(), "nope")

	require.Error(t, w.RegisterFolder(missing))
	require.False(t, w.IsRegistered(missing))
	require.False(t, w.IsTrackedFolder(missing))
}

func TestDeletedTrackedFile_UnregistersLonelyParent(t *testing.T) {
	w, rec := newWatcher(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	touch(t, file)
	require.NoError(t, w.RegisterFile(file))

	w.onFileChanged(Deleted, file)

	require.False(t, w.IsTrackedFile(file))
	require.False(t, w.IsRegistered(dir))
	require.Equal(t, []event{{kind: Deleted, path: file}}, rec.all())
}

func TestDeletedTrackedFile_KeepsParentWithSibling(t *testing.T) {
	w, _ := newWatcher(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")
	touch(t, a)
	touch(t, b)
	require.NoError(t, w.RegisterFile(a))
	require.NoError(t, w.RegisterFile(b))

	w.onFileChanged(Deleted, a)

	require.True(t, w.IsRegistered(dir))
	require.True(t, w.IsTrackedFile(b))
}

func TestDeletedTrackedFile_KeepsTrackedParent(t *testing.T) {
	w, _ := newWatcher(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	touch(t, file)
	require.NoError(t, w.RegisterFolder(dir))
	require.NoError(t, w.RegisterFile(file))

	w.onFileChanged(Deleted, file)

	require.True(t, w.IsRegistered(dir))
	require.True(t, w.IsTrackedFolder(dir))
}

func TestFileEvents_Filtering(t *testing.T) {
	w, rec := newWatcher(t)
	tracked := t.TempDir()
	other := t.TempDir()
	lone := filepath.Join(other, "lone.txt")
	sibling := filepath.Join(other, "sibling.txt")
	touch(t, lone)
	touch(t, sibling)
	require.NoError(t, w.RegisterFolder(tracked))
	require.NoError(t, w.RegisterFile(lone))

	w.onFileChanged(Created, filepath.Join(tracked, "new.txt"))
	w.onFileChanged(Modified, lone)
	w.onFileChanged(Modified, sibling)

	require.Equal(t, []event{
		{kind: Created, path: filepath.Join(tracked, "new.txt")},
		{kind: Modified, path: lone},
	}, rec.all())
}

func TestFolderEvents_Filtering(t *testing.T) {
	w, rec := newWatcher(t)
	root := t.TempDir()
	require.NoError(t, w.RegisterFolder(root))

	sub := filepath.Join(root, "sub")
	w.onFolderChanged(Created, sub)
	w.onFolderChanged(Created, filepath.Join(t.TempDir(), "elsewhere"))

	require.Equal(t, []event{{kind: Created, path: sub, folder: true}}, rec.all())
}

func TestDeletedTrackedFolder_Unregisters(t *testing.T) {
	w, rec := newWatcher(t)
	root := t.TempDir()
	require.NoError(t, w.RegisterFolder(root))

	w.onFolderChanged(Deleted, root)

	require.False(t, w.IsTrackedFolder(root))
	require.False(t, w.IsRegistered(root))
	require.Equal(t, []event{{kind: Deleted, path: root, folder: true}}, rec.all())
}

func TestDeletedUntrackedFolder_SynthesizesFileEvents(t *testing.T) {
	w, rec := newWatcher(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")
	touch(t, a)
	touch(t, b)
	require.NoError(t, w.RegisterFile(a))
	require.NoError(t, w.RegisterFile(b))

	w.onFolderChanged(Deleted, dir)

	require.ElementsMatch(t, []event{
		{kind: Deleted, path: a},
		{kind: Deleted, path: b},
	}, rec.all())
	require.Empty(t, w.TrackedFiles())
	require.Zero(t, w.Registered())
}

func TestClassify_VanishedRegisteredFolder(t *testing.T) {
	w, _ := newWatcher(t)
	dir := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, w.RegisterFolder(dir))
	require.NoError(t, os.RemoveAll(dir))

	require.True(t, w.classifyDir(Deleted, dir))
	require.False(t, w.IsRegistered(dir))
	require.False(t, w.classifyDir(Deleted, filepath.Join(dir, "x.txt")))
}

func TestRun_DeliversEvents(t *testing.T) {
	w, rec := newWatcher(t)
	root := t.TempDir()
	require.NoError(t, w.RegisterFolder(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	file := filepath.Join(root, "a.txt")
	touch(t, file)
	require.Eventually(t, func() bool {
		return rec.has(event{kind: Created, path: file})
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(file))
	require.Eventually(t, func() bool {
		return rec.has(event{kind: Deleted, path: file})
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_IgnoreFunc(t *testing.T) {
	root := t.TempDir()
	skip := filepath.Join(root, "snapshot.db")
	w, err := New(Options{
		PollInterval: 10 * time.Millisecond,
		Logger:       logger.Discard(),
		Ignore:       func(p string) bool { return p == skip },
	})
	require.NoError(t, err)
	rec := &recorder{}
	w.AddListener(rec)
	require.NoError(t, w.RegisterFolder(root))

	go func() { _ = w.Run(context.Background()) }()
	t.Cleanup(func() { _ = w.Close() })

	touch(t, skip)
	keep := filepath.Join(root, "keep.txt")
	touch(t, keep)
	require.Eventually(t, func() bool {
		return rec.has(event{kind: Created, path: keep})
	}, 3*time.Second, 10*time.Millisecond)
	for _, e := range rec.all() {
		require.NotEqual(t, skip, e.path)
	}
}

func TestCoalesce(t *testing.T) {
	got := coalesce([]fsnotify.Event{
		{Name: "/w/a.txt", Op: fsnotify.Create},
		{Name: "/w/a.txt", Op: fsnotify.Write},
		{Name: "/w/a.txt", Op: fsnotify.Write},
		{Name: "/w/a.txt", Op: fsnotify.Chmod},
		{Name: "/w/b.txt", Op: fsnotify.Rename},
		{Name: "/w/c.txt", Op: fsnotify.Remove | fsnotify.Write},
	})
	require.Equal(t, []change{
		{kind: Created, path: "/w/a.txt"},
		{kind: Modified, path: "/w/a.txt"},
		{kind: Deleted, path: "/w/b.txt"},
		{kind: Deleted, path: "/w/c.txt"},
	}, got)
}
