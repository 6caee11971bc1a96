// Package sqlite persists index snapshots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"otterlive/internal/index/store"
	"otterlive/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const (
	trackedFile   = "file"
	trackedFolder = "folder"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Backend() string { return "sqlite" }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"meta", "tokens", "documents", "tracked"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	tokStmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens (token, postings) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer tokStmt.Close()
	for _, e := range snap.Entries {
		buf, err := store.EncodePostings(e.Docs)
		if err != nil {
			return fmt.Errorf("token %q: %w", e.Token, err)
		}
		if _, err := tokStmt.ExecContext(ctx, e.Token, buf); err != nil {
			return err
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, path, tracked, parent_folder, mtime) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for _, d := range snap.Documents {
		if _, err := docStmt.ExecContext(ctx, d.ID, d.Path, d.Tracked, d.ParentFolder, d.ModTime.UnixNano()); err != nil {
			return err
		}
	}

	for kind, paths := range map[string][]string{trackedFile: snap.TrackedFiles, trackedFolder: snap.TrackedFolders} {
		for _, p := range paths {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tracked (kind, path) VALUES (?, ?)`, kind, p); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('snapshot_id', ?), ('saved_at', ?)`,
		snap.ID, snap.SavedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}

	snap := &store.Snapshot{}
	var savedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT value FROM meta WHERE key = 'snapshot_id'),
		   COALESCE((SELECT value FROM meta WHERE key = 'saved_at'), '')`,
	).Scan(&snap.ID, &savedAt)
	if err != nil {
		return nil, store.ErrNoSnapshot
	}
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		snap.SavedAt = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT token, postings FROM tokens ORDER BY token`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var tok string
		var buf []byte
		if err := rows.Scan(&tok, &buf); err != nil {
			_ = rows.Close()
			return nil, err
		}
		docs, err := store.DecodePostings(buf)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("token %q: %w", tok, err)
		}
		snap.Entries = append(snap.Entries, store.Entry{Token: tok, Docs: docs})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, path, tracked, parent_folder, mtime FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d model.Document
		var mtime int64
		if err := rows.Scan(&d.ID, &d.Path, &d.Tracked, &d.ParentFolder, &mtime); err != nil {
			_ = rows.Close()
			return nil, err
		}
		d.ModTime = time.Unix(0, mtime)
		snap.Documents = append(snap.Documents, d)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT kind, path FROM tracked ORDER BY kind, path`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var kind, p string
		if err := rows.Scan(&kind, &p); err != nil {
			_ = rows.Close()
			return nil, err
		}
		switch kind {
		case trackedFile:
			snap.TrackedFiles = append(snap.TrackedFiles, p)
		case trackedFolder:
			snap.TrackedFolders = append(snap.TrackedFolders, p)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return snap, nil
}

// connPragmas suit a database that is rewritten whole on every save.
var connPragmas = []string{
	"busy_timeout = 5000",
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"temp_store = MEMORY",
}

func (s *Store) init() error {
	for _, p := range connPragmas {
		if _, err := s.db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	return execStatements(s.db, schemaSQL)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func execStatements(db *sql.DB, sqlText string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	sqlText = strings.ReplaceAll(sqlText, "\r\n", "\n")

	var cleaned strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	for _, raw := range strings.Split(cleaned.String(), ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
