package walk

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFile holds extra gitignore-style patterns that apply only to
// indexing. It is read from the walk root.
const IgnoreFile = ".otliveignore"

type ignoreMatcher struct {
	m gitignore.Matcher
}

// loadIgnoreMatcher collects the .gitignore files below root plus the
// root's IgnoreFile. It returns nil when scanAll is set.
func loadIgnoreMatcher(root string, scanAll bool) (*ignoreMatcher, error) {
	if scanAll {
		return nil, nil
	}
	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, err
	}
	extra, err := readIgnoreFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	return &ignoreMatcher{m: gitignore.NewMatcher(append(patterns, extra...))}, nil
}

func readIgnoreFile(p string) ([]gitignore.Pattern, error) {
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, nil))
	}
	return out, sc.Err()
}

func (im *ignoreMatcher) isIgnored(rel string, isDir bool) bool {
	if im == nil || im.m == nil {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	return im.m.Match(strings.Split(rel, "/"), isDir)
}
