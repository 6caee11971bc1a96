package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"otterlive/internal/config"
	"otterlive/internal/core/indexer"
	"otterlive/internal/core/walk"
	"otterlive/internal/index/backend"
	"otterlive/internal/index/store"
	"otterlive/internal/logger"
	"otterlive/internal/metrics"
	"otterlive/internal/otlived"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	listen := flag.String("listen", "", "listen address (tcp), overrides daemon.listen")
	root := flag.String("root", "", "folder to index and watch on startup")
	flag.Parse()

	if err := run(*cfgPath, *listen, *root); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_, _ = fmt.Fprintf(os.Stderr, "%v\nTry: -listen 127.0.0.1:7458\n", err)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(cfgPath, listen, root string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Daemon.Listen = listen
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("otlived")

	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return err
		}
	}

	st, snapPath, err := openStore(cfg, root, log)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		shutdown := metrics.StartServer(cfg.Metrics.Addr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
		log.Info("metrics enabled", "addr", cfg.Metrics.Addr)
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
		Store:   st,
		Ignore:  backend.SideFiles(snapPath),
		Logger:  logger.WithComponent("indexer"),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Restore(ctx); err != nil {
		_ = mgr.Close()
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if err := mgr.Start(ctx); err != nil {
		_ = mgr.Close()
		return err
	}
	if root != "" {
		if err := mgr.IndexFolder(root); err != nil {
			_ = mgr.Close()
			return err
		}
	}

	s := otlived.NewServer(otlived.Options{Listen: cfg.Daemon.Listen, Logger: log}, mgr)
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	runErr := s.Run()
	stop()

	mgr.StopScheduling()
	if err := mgr.Close(); err != nil {
		log.Warn("close manager", "err", err)
	}
	if err := mgr.Save(context.Background()); err != nil {
		log.Warn("save snapshot", "err", err)
	}
	return runErr
}

func openStore(cfg *config.Config, root string, log *slog.Logger) (store.Store, string, error) {
	name := backend.NormalizeName(cfg.Snapshot.Backend)
	if name == backend.None {
		return nil, "", nil
	}
	path := cfg.Snapshot.Path
	if path == "" {
		if root == "" {
			log.Warn("no snapshot path and no root; snapshots disabled")
			return nil, "", nil
		}
		path = backend.DefaultPath(root, name)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	st, err := backend.Open(name, path)
	if err != nil {
		return nil, "", fmt.Errorf("open snapshot: %w", err)
	}
	return st, path, nil
}
