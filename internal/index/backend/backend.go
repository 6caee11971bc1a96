// Package backend selects the snapshot store implementation by name.
package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	"otterlive/internal/index/bolt"
	"otterlive/internal/index/sqlite"
	"otterlive/internal/index/store"
)

const (
	Bolt   = "bolt"
	SQLite = "sqlite"
	None   = "none"
)

func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Bolt
	}
	switch name {
	case "bolt", "bbolt", "boltdb":
		return Bolt
	case "sqlite", "sqlite3":
		return SQLite
	case "none", "off", "memory":
		return None
	default:
		return name
	}
}

func DefaultPath(root string, backend string) string {
	switch NormalizeName(backend) {
	case SQLite:
		return filepath.Join(root, ".otlive", "snapshot.sqlite")
	default:
		return filepath.Join(root, ".otlive", "snapshot.db")
	}
}

// Open returns (nil, nil) for the "none" backend: the manager then runs
// without persistence.
func Open(backend string, path string) (store.Store, error) {
	backend = NormalizeName(backend)
	if backend == None {
		return nil, nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required for backend %s", backend)
	}
	path = filepath.Clean(path)

	switch backend {
	case Bolt:
		return bolt.Open(path)
	case SQLite:
		return sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

// SideFiles returns a matcher for the snapshot file at path and the files
// the engines keep next to it. It returns nil for an empty path.
func SideFiles(path string) func(string) bool {
	if path == "" {
		return nil
	}
	return func(p string) bool {
		switch p {
		case path, path + "-wal", path + "-shm", path + "-journal", path + ".lock":
			return true
		default:
			return false
		}
	}
}
