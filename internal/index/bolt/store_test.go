package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"otterlive/internal/index/store"
	"otterlive/internal/model"
)

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".otlive", "snapshot.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if _, err := s.Load(ctx); !errors.Is(err, store.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	mod := time.Unix(1700000000, 0)
	snap := &store.Snapshot{
		Entries: []store.Entry{
			{Token: "alpha", Docs: []int{1, 2}},
			{Token: "beta", Docs: []int{2}},
		},
		Documents: []model.Document{
			{ID: 2, Path: "/w/b.txt", ParentFolder: "/w", ModTime: mod},
			{ID: 1, Path: "/w/a.txt", Tracked: true, ParentFolder: "/w", ModTime: mod},
		},
		TrackedFiles:   []string{"/w/a.txt"},
		TrackedFolders: []string{"/w"},
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.ID == "" {
		t.Fatalf("expected generated snapshot id")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != snap.ID {
		t.Fatalf("id=%q want %q", got.ID, snap.ID)
	}
	if len(got.Entries) != 2 || got.Entries[0].Token != "alpha" || len(got.Entries[0].Docs) != 2 {
		t.Fatalf("entries=%+v", got.Entries)
	}
	if len(got.Documents) != 2 || got.Documents[0].ID != 1 || !got.Documents[0].Tracked {
		t.Fatalf("documents=%+v", got.Documents)
	}
	if !got.Documents[1].ModTime.Equal(mod) {
		t.Fatalf("modtime=%v want %v", got.Documents[1].ModTime, mod)
	}
	if len(got.TrackedFiles) != 1 || len(got.TrackedFolders) != 1 {
		t.Fatalf("tracked files=%v folders=%v", got.TrackedFiles, got.TrackedFolders)
	}
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	_ = s.Save(ctx, &store.Snapshot{Entries: []store.Entry{{Token: "old", Docs: []int{1}}}})
	if err := s.Save(ctx, &store.Snapshot{Entries: []store.Entry{{Token: "new", Docs: []int{2}}}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Token != "new" {
		t.Fatalf("entries=%+v", got.Entries)
	}
}
