// Package workpool runs independent tasks on a fixed set of workers fed by
// an unbounded FIFO queue. Submitters never block; excess work waits in the
// queue.
package workpool

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work. A returned error is logged and does not affect
// other tasks.
type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
}

type Options struct {
	Workers int
	Logger  *slog.Logger
	// OnDone is called after every task with its result.
	OnDone func(name string, err error)
}

type Pool struct {
	log    *slog.Logger
	onDone func(string, error)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool
	active int

	ctx     context.Context
	workers int
	g       *errgroup.Group
}

// DefaultWorkers sizes the pool from the available parallelism, leaving
// reserve CPUs for the scheduler goroutines.
func DefaultWorkers(reserve int) int {
	n := runtime.GOMAXPROCS(0) - reserve
	if n < 1 {
		n = 1
	}
	return n
}

func New(ctx context.Context, opts Options) *Pool {
	if ctx == nil {
		ctx = context.Background()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers(1)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		log:     log,
		onDone:  opts.OnDone,
		ctx:     gctx,
		workers: workers,
		g:       g,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		g.Go(p.work)
	}
	return p
}

func (p *Pool) Workers() int { return p.workers }

// Submit queues t. It reports false once the pool is closed.
func (p *Pool) Submit(name string, t Task) bool {
	if p == nil || t == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, job{name: name, run: t})
	p.cond.Signal()
	return true
}

// Pending counts queued and running tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.active
}

// Close stops intake, lets the workers drain the queue and waits for them.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return p.g.Wait()
}

func (p *Pool) work() error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		j := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		err := j.run(p.ctx)
		if err != nil {
			p.log.Warn("task failed", "task", j.name, "error", err)
		}

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		if p.onDone != nil {
			p.onDone(j.name, err)
		}
	}
}
