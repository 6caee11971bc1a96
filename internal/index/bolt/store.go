// Package bolt persists index snapshots in a bbolt file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"otterlive/internal/index/store"
)

type Store struct {
	path string
	db   *bbolt.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{path: path, db: db}, nil
}

func (s *Store) Backend() string { return "bolt" }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range snapshotBuckets {
			if tx.Bucket([]byte(name)) != nil {
				if err := tx.DeleteBucket([]byte(name)); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}

		tb := tx.Bucket([]byte(bucketTokens))
		for i, e := range snap.Entries {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			buf, err := store.EncodePostings(e.Docs)
			if err != nil {
				return fmt.Errorf("token %q: %w", e.Token, err)
			}
			if err := tb.Put([]byte(e.Token), buf); err != nil {
				return err
			}
		}

		db := tx.Bucket([]byte(bucketDocuments))
		for _, d := range snap.Documents {
			buf, err := encodeDocument(d)
			if err != nil {
				return err
			}
			if err := db.Put(docKey(d.ID), buf); err != nil {
				return err
			}
		}

		if err := putPaths(tx.Bucket([]byte(bucketTrackedFiles)), snap.TrackedFiles); err != nil {
			return err
		}
		if err := putPaths(tx.Bucket([]byte(bucketTrackedFolders)), snap.TrackedFolders); err != nil {
			return err
		}

		mb := tx.Bucket([]byte(bucketMeta))
		if err := mb.Put([]byte(keySnapshotID), []byte(snap.ID)); err != nil {
			return err
		}
		return mb.Put([]byte(keySavedAt), []byte(snap.SavedAt.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}

	var snap *store.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket([]byte(bucketMeta))
		if mb == nil || mb.Get([]byte(keySnapshotID)) == nil {
			return store.ErrNoSnapshot
		}
		out := &store.Snapshot{ID: string(mb.Get([]byte(keySnapshotID)))}
		if raw := mb.Get([]byte(keySavedAt)); raw != nil {
			if t, err := time.Parse(time.RFC3339Nano, string(raw)); err == nil {
				out.SavedAt = t
			}
		}

		if err := tx.Bucket([]byte(bucketTokens)).ForEach(func(k, v []byte) error {
			docs, err := store.DecodePostings(v)
			if err != nil {
				return fmt.Errorf("token %q: %w", k, err)
			}
			out.Entries = append(out.Entries, store.Entry{Token: string(k), Docs: docs})
			return ctx.Err()
		}); err != nil {
			return err
		}

		if err := tx.Bucket([]byte(bucketDocuments)).ForEach(func(k, v []byte) error {
			d, err := decodeDocument(docID(k), v)
			if err != nil {
				return err
			}
			out.Documents = append(out.Documents, d)
			return nil
		}); err != nil {
			return err
		}

		out.TrackedFiles = listPaths(tx.Bucket([]byte(bucketTrackedFiles)))
		out.TrackedFolders = listPaths(tx.Bucket([]byte(bucketTrackedFolders)))
		snap = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func putPaths(b *bbolt.Bucket, paths []string) error {
	for _, p := range paths {
		if err := b.Put([]byte(p), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func listPaths(b *bbolt.Bucket) []string {
	if b == nil {
		return nil
	}
	var out []string
	_ = b.ForEach(func(k, _ []byte) error {
		out = append(out, string(k))
		return nil
	})
	return out
}
