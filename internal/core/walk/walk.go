// Package walk enumerates the files of a folder tree for indexing.
package walk

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	ScanAll      bool
}

// Visitor receives the entries of a walk. File is called for every included
// regular file; DirDone is called for every visited directory once all of
// its entries were handled (post-order, the root last). OnError reports
// entries that could not be read; the walk carries on.
type Visitor struct {
	File    func(path string, info fs.FileInfo) error
	DirDone func(dir string) error
	OnError func(path string, err error)
}

// Walk visits root recursively. It returns early with ctx.Err() when ctx is
// cancelled, or with the first error returned by a visitor callback.
func Walk(ctx context.Context, root string, opts Options, v Visitor) error {
	f, err := NewFilter(root, opts)
	if err != nil {
		return err
	}
	w := &walker{ctx: ctx, root: root, filter: f, v: v}
	return w.dir(root)
}

type walker struct {
	ctx    context.Context
	root   string
	filter *Filter
	v      Visitor
}

func (w *walker) dir(dir string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.fail(dir, err)
		return nil
	}

	for _, e := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(dir, e.Name())
		rel, err := filepath.Rel(w.root, full)
		if err != nil {
			w.fail(full, err)
			continue
		}

		if e.IsDir() {
			if !w.filter.ShouldInclude(rel, true) {
				continue
			}
			if err := w.dir(full); err != nil {
				return err
			}
			continue
		}
		if !e.Type().IsRegular() || !w.filter.ShouldInclude(rel, false) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			w.fail(full, err)
			continue
		}
		if w.v.File != nil {
			if err := w.v.File(full, info); err != nil {
				return err
			}
		}
	}

	if w.v.DirDone != nil {
		return w.v.DirDone(dir)
	}
	return nil
}

func (w *walker) fail(p string, err error) {
	if w.v.OnError != nil {
		w.v.OnError(p, err)
	}
}

// IsHidden reports whether a base name is a dot-file.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func isDefaultSkippedDir(name string) bool {
	switch name {
	case ".git", "node_modules", "dist", "target":
		return true
	default:
		return false
	}
}

func anyGlobMatch(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchesGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchesGlob(pattern string, rel string) bool {
	pat := strings.TrimSpace(pattern)
	if pat == "" {
		return false
	}
	pat = strings.ReplaceAll(pat, "\\", "/")
	rel = filepath.ToSlash(rel)

	// Comma separated lists come in through env overrides.
	if strings.Contains(pat, ",") {
		for _, piece := range strings.Split(pat, ",") {
			if matchesGlob(strings.TrimSpace(piece), rel) {
				return true
			}
		}
		return false
	}

	// Patterns without a separator match the base name.
	if !strings.Contains(pat, "/") {
		ok, _ := path.Match(pat, path.Base(rel))
		return ok
	}

	ok, _ := path.Match(pat, rel)
	return ok
}
