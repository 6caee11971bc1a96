package otlivecli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"otterlive/internal/core/indexer"
	"otterlive/internal/core/walk"
	"otterlive/internal/index/backend"
	"otterlive/internal/index/store"
	"otterlive/internal/logger"
	"otterlive/internal/metrics"
)

// engine bundles a manager with the store and metrics server it owns.
type engine struct {
	*indexer.Manager
	store    store.Store
	snapshot string
	shutdown func(context.Context) error
}

// openEngine builds a manager for root from the prepared options and
// restores the last snapshot.
func openEngine(cmd *cobra.Command, root string) (*engine, error) {
	opts := optionsFrom(cmd)
	if opts == nil || opts.Config == nil {
		return nil, fmt.Errorf("options missing")
	}
	cfg := opts.Config

	e := &engine{}
	if cfg.Snapshot.Backend != backend.None {
		e.snapshot = cfg.Snapshot.Path
		if strings.TrimSpace(e.snapshot) == "" {
			e.snapshot = backend.DefaultPath(root, cfg.Snapshot.Backend)
		}
		abs, err := filepath.Abs(e.snapshot)
		if err != nil {
			return nil, err
		}
		e.snapshot = abs
		s, err := backend.Open(cfg.Snapshot.Backend, e.snapshot)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		e.store = s
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		e.shutdown = metrics.StartServer(cfg.Metrics.Addr, reg)
	}

	mgr, err := indexer.New(indexer.Options{
		Workers:          cfg.Indexer.Workers,
		SchedulerWorkers: cfg.Indexer.SchedulerWorkers,
		Debounce:         cfg.Indexer.Debounce,
		PollInterval:     cfg.Watcher.PollInterval,
		SearchCacheSize:  cfg.Indexer.SearchCacheSize,
		Walk: walk.Options{
			IncludeGlobs: cfg.Indexer.Include,
			ExcludeGlobs: cfg.Indexer.Exclude,
			ScanAll:      cfg.Indexer.ScanAll,
		},
		Store:   e.store,
		Ignore:  backend.SideFiles(e.snapshot),
		Logger:  logger.WithComponent("indexer"),
		Metrics: m,
	})
	if err != nil {
		_ = e.closeStore()
		return nil, err
	}
	e.Manager = mgr

	if err := mgr.Restore(cmd.Context()); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return e, nil
}

func (e *engine) Close() error {
	var first error
	if e.Manager != nil {
		first = e.Manager.Close()
	}
	if err := e.closeStore(); err != nil && first == nil {
		first = err
	}
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.shutdown(ctx)
	}
	return first
}

func (e *engine) closeStore() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
