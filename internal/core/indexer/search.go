package indexer

import (
	"sort"
	"strings"
	"time"

	"otterlive/internal/core/tokenize"
)

type searchKey struct {
	version uint64
	gen     uint64
	query   string
}

// Search returns the paths of the documents containing query as an exact
// token, sorted ascending. The query is trimmed and NFC-normalized.
func (m *Manager) Search(query string) []string {
	start := time.Now()
	q := tokenize.Normalize(strings.TrimSpace(query))
	if q == "" {
		m.metrics.Search("empty", time.Since(start))
		return nil
	}

	key := searchKey{version: m.index.Version(), gen: m.reg.generation(), query: q}
	if paths, ok := m.cache.Get(key); ok {
		m.metrics.Search("cached", time.Since(start))
		return append([]string(nil), paths...)
	}

	ids := m.index.Lookup(q)
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		if doc, ok := m.reg.get(id); ok {
			paths = append(paths, doc.Path)
		}
	}
	sort.Strings(paths)
	m.cache.Put(key, paths)

	result := "hit"
	if len(paths) == 0 {
		result = "miss"
	}
	m.metrics.Search(result, time.Since(start))
	return append([]string(nil), paths...)
}
