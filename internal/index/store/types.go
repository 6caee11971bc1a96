// Package store defines the snapshot handed to and from persistence
// backends.
package store

import (
	"context"
	"errors"
	"time"

	"otterlive/internal/model"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Entry is one key of the index with its posted document ids.
type Entry struct {
	Token string
	Docs  []int
}

type Snapshot struct {
	ID             string
	SavedAt        time.Time
	Entries        []Entry
	Documents      []model.Document
	TrackedFiles   []string
	TrackedFolders []string
}

type Store interface {
	Backend() string
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}
