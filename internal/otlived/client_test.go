package otlived

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"otterlive/internal/core/indexer"
	"otterlive/internal/logger"
)

func TestClient_MinLoop(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	_ = os.WriteFile(file, []byte("hello\nworld\n"), 0o644)

	m, err := indexer.New(indexer.Options{Workers: 2, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	s := startServer(t, m)
	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if v, err := c.Version(); err != nil || v == "" {
		t.Fatalf("version=%q err=%v", v, err)
	}

	res, err := c.IndexFolder(root)
	if err != nil || !res.Scheduled {
		t.Fatalf("index.folder res=%+v err=%v", res, err)
	}
	idle, err := c.Wait(5 * time.Second)
	if err != nil || !idle {
		t.Fatalf("index.wait idle=%v err=%v", idle, err)
	}

	paths, err := c.Search("hello")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(paths) != 1 || paths[0] != file {
		t.Fatalf("paths=%v", paths)
	}
	paths, err = c.Search("absent")
	if err != nil || paths == nil || len(paths) != 0 {
		t.Fatalf("absent paths=%v err=%v", paths, err)
	}

	res, err = c.IndexFile(file)
	if err != nil || res.Scheduled {
		t.Fatalf("index.file on indexed path res=%+v err=%v", res, err)
	}

	st, err := c.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Documents != 1 || st.Keys != 2 {
		t.Fatalf("stats=%+v", st)
	}

	if _, err := c.IndexFolder(filepath.Join(root, "missing")); err != nil {
		t.Fatalf("index.folder on a missing folder: %v", err)
	}
	paths, err = c.Search(" ")
	if err != nil || len(paths) != 0 {
		t.Fatalf("empty search paths=%v err=%v", paths, err)
	}

	_, err = c.IndexFolder("")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params, got %v", err)
	}
}
