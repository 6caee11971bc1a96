package indexer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"otterlive/internal/core/tokenize"
	"otterlive/internal/errs"
	"otterlive/internal/model"
)

const (
	sniffLen    = 8000
	maxLineSize = 16 << 20
)

var errBinary = errors.New("binary content")

// submit queues a task and accounts for it in the current batch.
func (m *Manager) submit(name string, task func(ctx context.Context) error) bool {
	m.begin()
	ok := m.pool.Submit(name, func(ctx context.Context) error {
		defer m.end()
		err := task(ctx)
		if err != nil {
			m.metrics.TaskFailed(name)
		}
		return err
	})
	if !ok {
		m.abort()
	}
	return ok
}

func (m *Manager) runIndex(doc model.Document) error {
	tokens, err := readTokens(doc.Path)
	if errors.Is(err, errBinary) {
		m.reg.release(doc.Path)
		m.log.Debug("skip file", "path", doc.Path, "reason", "binary")
		return nil
	}
	if err != nil {
		m.reg.release(doc.Path)
		return errs.E(errs.ErrIO, "index", doc.Path, err)
	}

	for tok := range tokens {
		if err := m.index.Insert(tok, doc.ID); err != nil {
			m.reg.release(doc.Path)
			m.index.RemoveAll(doc.ID)
			return err
		}
	}
	m.reg.add(doc)
	if doc.Tracked {
		_ = m.watcher.RegisterFile(doc.Path)
	}
	m.metrics.DocumentIndexed()
	m.metrics.SetKeys(m.index.Size())
	m.log.Debug("indexed", "path", doc.Path, "doc_id", doc.ID, "tokens", len(tokens))
	return nil
}

// runUpdate re-reads an indexed document and applies the token diff: new
// tokens are inserted, tokens no longer present are removed. Updates and
// removals of one document run one at a time.
func (m *Manager) runUpdate(path string) error {
	doc, ok := m.reg.byPathLookup(path)
	if !ok {
		return nil
	}
	unlock := m.reg.lock(doc.ID)
	defer unlock()
	if cur, ok := m.reg.get(doc.ID); !ok || cur.Path != path {
		return nil
	}
	st, statErr := os.Stat(path)

	observed, err := readTokens(path)
	if errors.Is(err, errBinary) {
		m.removeLocked(doc.ID)
		return nil
	}
	if err != nil {
		return errs.E(errs.ErrIO, "update", path, err)
	}

	stale := map[string]struct{}{}
	for _, tok := range m.index.TokensFor(doc.ID) {
		stale[tok] = struct{}{}
	}
	added := 0
	for tok := range observed {
		if _, ok := stale[tok]; ok {
			delete(stale, tok)
			continue
		}
		if err := m.index.Insert(tok, doc.ID); err != nil {
			return err
		}
		added++
	}
	for tok := range stale {
		if err := m.index.Remove(tok, doc.ID); err != nil {
			return err
		}
	}

	if statErr == nil {
		m.reg.touch(doc.ID, st.ModTime())
	}
	m.metrics.DocumentUpdated()
	m.metrics.SetKeys(m.index.Size())
	m.log.Debug("updated", "path", path, "doc_id", doc.ID, "added", added, "removed", len(stale))
	return nil
}

func (m *Manager) runRemove(id int) error {
	unlock := m.reg.lock(id)
	defer unlock()
	m.removeLocked(id)
	return nil
}

// removeLocked drops id from the index and the registry. The caller holds
// the document lock.
func (m *Manager) removeLocked(id int) {
	if _, ok := m.reg.get(id); !ok {
		return
	}
	removed := m.index.RemoveAll(id)
	doc, ok := m.reg.remove(id)
	if !ok {
		return
	}
	m.metrics.DocumentRemoved()
	m.metrics.SetKeys(m.index.Size())
	m.log.Debug("removed", "path", doc.Path, "doc_id", id, "tokens", removed)
}

// readTokens returns the distinct tokens of the file at path. Files with a
// NUL byte near the start are reported as errBinary.
func readTokens(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64<<10)
	head, err := r.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, errBinary
	}

	out := map[string]struct{}{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineSize)
	for sc.Scan() {
		tokenize.Collect(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
