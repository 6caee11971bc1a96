package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 2*time.Second, cfg.Watcher.PollInterval)
	require.Equal(t, "bolt", cfg.Snapshot.Backend)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otlive.yaml")
	data := `
indexer:
  workers: 3
  debounce: 50ms
  exclude: ["*.log", "vendor/*"]
watcher:
  pollInterval: 500ms
snapshot:
  backend: sqlite
  path: /var/lib/otlive/snap.sqlite
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Indexer.Workers)
	require.Equal(t, 50*time.Millisecond, cfg.Indexer.Debounce)
	require.Equal(t, []string{"*.log", "vendor/*"}, cfg.Indexer.Exclude)
	require.Equal(t, 500*time.Millisecond, cfg.Watcher.PollInterval)
	require.Equal(t, "sqlite", cfg.Snapshot.Backend)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 256, cfg.Indexer.SearchCacheSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OTL_INDEXER_WORKERS", "7")
	t.Setenv("OTL_INDEXER_INCLUDE", "*.go, *.md,")
	t.Setenv("OTL_WATCHER_POLL_INTERVAL", "1s")
	t.Setenv("OTL_SNAPSHOT_BACKEND", "none")
	t.Setenv("OTL_METRICS_ENABLED", "true")
	t.Setenv("OTL_DAEMON_LISTEN", "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Indexer.Workers)
	require.Equal(t, []string{"*.go", "*.md"}, cfg.Indexer.Include)
	require.Equal(t, time.Second, cfg.Watcher.PollInterval)
	require.Equal(t, "none", cfg.Snapshot.Backend)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "127.0.0.1:9999", cfg.Daemon.Listen)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("indexer: [oops"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)

	t.Setenv("OTL_INDEXER_WORKERS", "many")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Backend = "postgres"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Watcher.PollInterval = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Indexer.Workers = -1
	require.Error(t, cfg.Validate())
}
