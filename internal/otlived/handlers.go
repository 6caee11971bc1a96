package otlived

import (
	"context"
	"errors"
	"strings"
	"time"

	"otterlive/internal/errs"
	"otterlive/internal/model"
)

const defaultWaitTimeout = 30 * time.Second

// Engine is the part of the indexer the daemon serves.
type Engine interface {
	IndexFolder(path string) error
	IndexFile(path string) (bool, error)
	Wait(ctx context.Context) error
	Search(query string) []string
	Stats() model.Stats
}

type Handlers struct {
	engine Engine
}

func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine}
}

func (h *Handlers) IndexFolder(p PathParams) (IndexResult, error) {
	path := strings.TrimSpace(p.Path)
	if err := h.engine.IndexFolder(path); err != nil {
		return IndexResult{}, err
	}
	return IndexResult{Path: path, Scheduled: true}, nil
}

func (h *Handlers) IndexFile(p PathParams) (IndexResult, error) {
	path := strings.TrimSpace(p.Path)
	ok, err := h.engine.IndexFile(path)
	if err != nil {
		return IndexResult{}, err
	}
	return IndexResult{Path: path, Scheduled: ok}, nil
}

// Wait reports idle=false when the timeout passes first.
func (h *Handlers) Wait(ctx context.Context, p WaitParams) (WaitResult, error) {
	if p.TimeoutMS < 0 {
		return WaitResult{}, errs.Invalid("index.wait", "timeout_ms must not be negative")
	}
	timeout := defaultWaitTimeout
	if p.TimeoutMS > 0 {
		timeout = time.Duration(p.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := h.engine.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return WaitResult{Idle: false}, nil
	}
	if err != nil {
		return WaitResult{}, err
	}
	return WaitResult{Idle: true}, nil
}

func (h *Handlers) Search(p SearchParams) (SearchResult, error) {
	paths := h.engine.Search(p.Q)
	if paths == nil {
		paths = []string{}
	}
	return SearchResult{Paths: paths}, nil
}

func (h *Handlers) Stats() StatsResult {
	return h.engine.Stats()
}
