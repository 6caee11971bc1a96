package indexer

import (
	"context"
	"errors"
	"os"
	"time"

	"otterlive/internal/index/store"
)

// Save writes the index, the documents and the tracked paths to the
// configured store. Without a store it does nothing.
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	snap := &store.Snapshot{SavedAt: time.Now()}
	m.index.Walk(func(token string, docs []int) bool {
		snap.Entries = append(snap.Entries, store.Entry{Token: token, Docs: docs})
		return true
	})
	snap.Documents = m.reg.all()
	snap.TrackedFiles = m.watcher.TrackedFiles()
	snap.TrackedFolders = m.watcher.TrackedFolders()

	if err := m.store.Save(ctx, snap); err != nil {
		return err
	}
	m.log.Info("snapshot saved",
		"backend", m.store.Backend(),
		"id", snap.ID,
		"documents", len(snap.Documents),
		"keys", len(snap.Entries),
	)
	return nil
}

// Restore loads the last snapshot into an empty manager. Tracked paths are
// registered again and documents that changed on disk since the snapshot are
// scheduled for update or removal.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snap, err := m.store.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		m.log.Info("no snapshot to restore", "backend", m.store.Backend())
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range snap.Entries {
		for _, id := range e.Docs {
			if err := m.index.Insert(e.Token, id); err != nil {
				return err
			}
		}
	}
	for _, doc := range snap.Documents {
		m.reg.add(doc)
	}
	for _, p := range snap.TrackedFolders {
		_ = m.watcher.RegisterFolder(p)
	}
	for _, p := range snap.TrackedFiles {
		_ = m.watcher.RegisterFile(p)
	}
	m.metrics.SetKeys(m.index.Size())

	stale := 0
	for _, doc := range snap.Documents {
		st, err := os.Stat(doc.Path)
		switch {
		case err != nil:
			m.scheduleRemove(doc.ID)
			stale++
		case !st.ModTime().Equal(doc.ModTime):
			m.scheduleUpdate(doc.Path)
			stale++
		}
	}
	m.log.Info("snapshot restored",
		"id", snap.ID,
		"saved_at", snap.SavedAt,
		"documents", len(snap.Documents),
		"keys", len(snap.Entries),
		"stale", stale,
	)
	return nil
}
