package otlived

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"otterlive/internal/errs"
	"otterlive/internal/logger"
	"otterlive/internal/model"
)

type fakeEngine struct {
	mu      sync.Mutex
	folders []string
	block   chan struct{}
}

func (f *fakeEngine) IndexFolder(path string) error {
	if path == "" {
		return errs.Invalid("index folder", "path is required")
	}
	if path == "/broken" {
		return errs.E(errs.ErrIO, "index folder", path, nil)
	}
	f.mu.Lock()
	f.folders = append(f.folders, path)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) IndexFile(path string) (bool, error) {
	return path == "/w/a.txt", nil
}

func (f *fakeEngine) Wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeEngine) Search(q string) []string {
	if q == "hello" {
		return []string{"/w/a.txt"}
	}
	return nil
}

func (f *fakeEngine) Stats() model.Stats {
	return model.Stats{Documents: 1, Keys: 2}
}

func startServer(t *testing.T, engine Engine) *Server {
	t.Helper()
	s := NewServer(Options{Listen: "127.0.0.1:0", Logger: logger.Discard()}, engine)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()
	waitAddr(t, s, time.Second)
	t.Cleanup(func() {
		_ = s.Close()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("server did not stop within 1s after Close")
		}
	})
	return s
}

func TestServerPingAndVersion(t *testing.T) {
	s := startServer(t, &fakeEngine{})

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	if err := enc.Encode(Request{JSONRPC: "2.0", Method: "ping", ID: json.RawMessage("1")}); err != nil {
		t.Fatalf("encode ping: %v", err)
	}
	var pingResp Response
	if err := dec.Decode(&pingResp); err != nil {
		t.Fatalf("decode ping: %v", err)
	}
	if string(pingResp.ID) != "1" || pingResp.Error != nil || pingResp.Result != "pong" {
		t.Fatalf("ping resp=%+v", pingResp)
	}

	if err := enc.Encode(Request{JSONRPC: "2.0", Method: "version", ID: json.RawMessage("2")}); err != nil {
		t.Fatalf("encode version: %v", err)
	}
	var versionResp Response
	if err := dec.Decode(&versionResp); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if v, ok := versionResp.Result.(string); !ok || v == "" {
		t.Fatalf("version result=%v", versionResp.Result)
	}
}

func TestServerErrors(t *testing.T) {
	s := startServer(t, &fakeEngine{})

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	r := bufio.NewReader(conn)

	cases := []struct {
		line string
		code int
	}{
		{`{not json`, CodeParseError},
		{`{"jsonrpc":"1.0","id":1,"method":"ping"}`, CodeInvalidRequest},
		{`{"jsonrpc":"2.0","id":2,"method":"nope"}`, CodeMethodNotFound},
		{`{"jsonrpc":"2.0","id":4,"method":"search","params":[1]}`, CodeInvalidParams},
		{`{"jsonrpc":"2.0","id":5,"method":"index.folder","params":{"path":""}}`, CodeInvalidParams},
		{`{"jsonrpc":"2.0","id":6,"method":"index.folder","params":{"path":"/broken"}}`, CodeServerError},
		{`{"jsonrpc":"2.0","id":7,"method":"index.wait","params":{"timeout_ms":-1}}`, CodeInvalidParams},
	}
	for _, tc := range cases {
		if _, err := conn.Write([]byte(tc.line + "\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		line, err := ReadLine(r)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			t.Fatalf("decode %s: %v", line, err)
		}
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("%s: resp=%s want code %d", tc.line, line, tc.code)
		}
	}
}

func TestHandlersSearchEmptyQuery(t *testing.T) {
	h := NewHandlers(&fakeEngine{})
	for _, q := range []string{"", "  "} {
		res, err := h.Search(SearchParams{Q: q})
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if res.Paths == nil || len(res.Paths) != 0 {
			t.Fatalf("search %q: paths=%#v, want empty slice", q, res.Paths)
		}
	}
	res, err := h.Search(SearchParams{Q: "hello"})
	if err != nil || len(res.Paths) != 1 {
		t.Fatalf("search hello: res=%+v err=%v", res, err)
	}
}

func TestServerNotificationHasNoResponse(t *testing.T) {
	engine := &fakeEngine{}
	s := startServer(t, engine)

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_, _ = conn.Write([]byte(`{"jsonrpc":"2.0","method":"index.folder","params":{"path":"/w"}}` + "\n"))
	_, _ = conn.Write([]byte(`{"jsonrpc":"2.0","id":9,"method":"ping"}` + "\n"))

	line, err := ReadLine(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(line), `"id":9`) {
		t.Fatalf("expected only the ping response, got %s", line)
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.folders) != 1 {
		t.Fatalf("notification not dispatched: %v", engine.folders)
	}
}

func TestServerCloseUnblocksWait(t *testing.T) {
	s := startServer(t, &fakeEngine{block: make(chan struct{})})

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	done := make(chan struct{})
	go func() {
		_, _ = c.Wait(time.Minute)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	_ = s.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait call did not return after Close")
	}
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\n  \n{\"a\":1}\r\nlast"))
	line, err := ReadLine(r)
	if err != nil || string(line) != `{"a":1}` {
		t.Fatalf("line=%q err=%v", line, err)
	}
	line, err = ReadLine(r)
	if err != nil || string(line) != "last" {
		t.Fatalf("line=%q err=%v", line, err)
	}
	if _, err := ReadLine(r); err == nil {
		t.Fatal("expected EOF")
	}
}

func waitAddr(t *testing.T, s *Server, timeout time.Duration) string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if addr := s.Addr(); addr != "" {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start listening in time")
	return ""
}
