package indexer

import (
	"log/slog"
	"time"

	"otterlive/internal/core/walk"
	"otterlive/internal/index/store"
	"otterlive/internal/metrics"
)

const (
	DefaultSchedulerWorkers = 1
	DefaultSearchCacheSize  = 256
)

type Options struct {
	// Workers sizes the task pool. Zero means one per CPU, minus the
	// scheduler workers.
	Workers          int
	SchedulerWorkers int

	// Debounce coalesces bursts of modifications to one file. Zero schedules
	// an update per event.
	Debounce     time.Duration
	PollInterval time.Duration

	SearchCacheSize int
	Walk            walk.Options

	// Store persists snapshots. Nil runs without persistence.
	Store store.Store
	// Ignore drops watcher events for matching paths, e.g. the snapshot file.
	Ignore func(path string) bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// ProgressListener follows the current batch of tasks. Calls come from
// worker goroutines and may overlap.
type ProgressListener interface {
	OnProgress(percent int)
	OnFinished()
}

// ProgressFuncs adapts plain funcs to ProgressListener. Nil fields are
// skipped.
type ProgressFuncs struct {
	Progress func(percent int)
	Finished func()
}

func (p ProgressFuncs) OnProgress(percent int) {
	if p.Progress != nil {
		p.Progress(percent)
	}
}

func (p ProgressFuncs) OnFinished() {
	if p.Finished != nil {
		p.Finished()
	}
}
