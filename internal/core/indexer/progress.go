package indexer

import (
	"context"
)

func (m *Manager) begin() {
	m.mu.Lock()
	if m.idleClosed {
		m.idle = make(chan struct{})
		m.idleClosed = false
	}
	m.pending++
	m.batchTotal++
	pending := m.pending
	m.mu.Unlock()
	m.metrics.SetPending(pending)
}

// abort undoes begin for a task the pool refused.
func (m *Manager) abort() {
	m.mu.Lock()
	m.pending--
	m.batchTotal--
	if m.pending == 0 {
		m.batchTotal, m.batchDone = 0, 0
	}
	m.maybeIdleLocked()
	pending := m.pending
	m.mu.Unlock()
	m.metrics.SetPending(pending)
}

// end records a finished task, reports progress and, when the batch drained,
// notifies listeners and saves a snapshot.
func (m *Manager) end() {
	m.mu.Lock()
	m.pending--
	m.batchDone++
	percent := 100
	if m.batchTotal > 0 {
		percent = m.batchDone * 100 / m.batchTotal
	}
	finished := m.pending == 0
	if finished {
		m.finishing++
		m.batchTotal, m.batchDone = 0, 0
	}
	listeners := append([]ProgressListener(nil), m.listeners...)
	pending := m.pending
	m.mu.Unlock()

	m.metrics.SetPending(pending)
	for _, l := range listeners {
		l.OnProgress(percent)
	}
	if !finished {
		return
	}

	for _, l := range listeners {
		l.OnFinished()
	}
	if m.store != nil {
		if err := m.Save(context.Background()); err != nil {
			m.log.Error("snapshot save failed", "error", err)
		}
	}

	m.mu.Lock()
	m.finishing--
	m.maybeIdleLocked()
	m.mu.Unlock()
}

func (m *Manager) maybeIdleLocked() {
	if m.pending == 0 && m.finishing == 0 && !m.idleClosed {
		close(m.idle)
		m.idleClosed = true
	}
}

// Wait blocks until no task is pending and the last batch finished.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		idle := m.idle
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}

		m.mu.Lock()
		done := m.pending == 0 && m.finishing == 0
		m.mu.Unlock()
		if done {
			return nil
		}
	}
}
