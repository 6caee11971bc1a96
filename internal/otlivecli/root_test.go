package otlivecli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"otterlive/internal/model"
)

func TestHelpContainsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s := out.String()
	for _, want := range []string{"otlive", "index", "search", "watch", "stats"} {
		if !strings.Contains(s, want) {
			t.Fatalf("help missing %q: %s", want, s)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"-v"})
	out, _, err := ExecuteForTest(cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected version output")
	}
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":     "hello world\n",
		"sub/b.txt": "hello again\n",
		"sub/c.md":  "nothing here\n",
	}
	for rel, body := range files {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestIndexThenSearch(t *testing.T) {
	for _, be := range []string{"bolt", "sqlite"} {
		t.Run(be, func(t *testing.T) {
			dir := writeTree(t)
			snap := filepath.Join(t.TempDir(), "snap.db")

			cmd := NewRootCommand()
			cmd.SetArgs([]string{"index", dir, "--backend", be, "-s", snap, "--jsonl"})
			out, opts, err := ExecuteForTest(cmd)
			if err != nil {
				t.Fatalf("index: %v\n%s", err, out)
			}
			if opts.Config == nil || opts.Config.Snapshot.Backend != be {
				t.Fatalf("backend not applied: %+v", opts.Config)
			}
			var st model.Stats
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &st); err != nil {
				t.Fatalf("stats json: %v\n%s", err, out)
			}
			if st.Documents != 3 {
				t.Fatalf("documents=%d, want 3", st.Documents)
			}

			cmd = NewRootCommand()
			cmd.SetArgs([]string{"search", "hello", "--root", dir, "--backend", be, "-s", snap})
			out, _, err = ExecuteForTest(cmd)
			if err != nil {
				t.Fatalf("search: %v\n%s", err, out)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")
			want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "sub", "b.txt")}
			if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
				t.Fatalf("search output %q, want %q", lines, want)
			}
		})
	}
}

func TestIndex_ExcludeGlob(t *testing.T) {
	dir := writeTree(t)
	snap := filepath.Join(t.TempDir(), "snap.db")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"index", dir, "-s", snap, "-x", "*.md", "--jsonl"})
	out, opts, err := ExecuteForTest(cmd)
	if err != nil {
		t.Fatalf("index: %v\n%s", err, out)
	}
	if got := opts.Config.Indexer.Exclude; len(got) != 1 || got[0] != "*.md" {
		t.Fatalf("exclude=%v", got)
	}
	var st model.Stats
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &st); err != nil {
		t.Fatalf("stats json: %v\n%s", err, out)
	}
	if st.Documents != 2 {
		t.Fatalf("documents=%d, want 2", st.Documents)
	}
}

func TestBackendNone_WritesNothing(t *testing.T) {
	dir := writeTree(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"index", dir, "--backend", "off", "--jsonl"})
	out, opts, err := ExecuteForTest(cmd)
	if err != nil {
		t.Fatalf("index: %v\n%s", err, out)
	}
	if opts.Config.Snapshot.Backend != "none" {
		t.Fatalf("backend=%q", opts.Config.Snapshot.Backend)
	}
	if _, err := os.Stat(filepath.Join(dir, ".otlive")); !os.IsNotExist(err) {
		t.Fatalf("snapshot dir created: %v", err)
	}
}

func TestInvalidFlags(t *testing.T) {
	cases := [][]string{
		{"index", "--backend", "redis"},
		{"index", "--workers", "-2"},
		{"search"},
		{"index", filepath.Join(t.TempDir(), "missing")},
	}
	for _, args := range cases {
		cmd := NewRootCommand()
		cmd.SetArgs(args)
		if _, _, err := ExecuteForTest(cmd); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
