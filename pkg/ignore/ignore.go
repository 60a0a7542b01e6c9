// Package ignore implements a gitignore-syntax exclusion filter sourced
// from an ignore-file discovered at or above a tree root. It defaults to
// allowing everything when no ignore-file is found.
package ignore

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/architect-io/mdpack/pkg/tree"
)

// DefaultFileName is the ignore-file name searched for when none is
// configured explicitly (overridable via pkg/config).
const DefaultFileName = ".mdpackignore"

// Matcher filters paths using gitignore-style patterns, negation included.
// A Matcher with no patterns accepts everything (default-allow).
type Matcher struct {
	matcher gitignore.Matcher
}

// New builds a Matcher directly from a set of raw pattern lines (comments
// and blank lines are skipped, matching .gitignore syntax).
func New(lines []string) *Matcher {
	var patterns []gitignore.Pattern
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return &Matcher{matcher: gitignore.NewMatcher(patterns)}
}

// Empty returns a Matcher that accepts every path.
func Empty() *Matcher {
	return &Matcher{matcher: gitignore.NewMatcher(nil)}
}

// Load walks upward from startPath to the tree root, reading the nearest
// ignore-file (fileName) it finds. If none is found, it returns an
// always-allow Matcher.
func Load(t tree.Tree, startPath, fileName string) (*Matcher, error) {
	dir := startPath
	if isDir, err := t.IsDirectory(dir); err == nil && !isDir {
		dir = parentDir(dir)
	}

	for {
		candidate := joinPath(dir, fileName)
		if exists, err := t.Exists(candidate); err == nil && exists {
			data, err := t.ReadFile(context.Background(), candidate)
			if err == nil {
				return New(strings.Split(string(data), "\n")), nil
			}
		}
		if dir == "" {
			break
		}
		dir = parentDir(dir)
	}

	return Empty(), nil
}

// Denies reports whether p is excluded by the matcher's patterns.
func (m *Matcher) Denies(p string) bool {
	segments := splitPath(p)
	return m.matcher.Match(segments, false)
}

// Accepts is the negation of Denies.
func (m *Matcher) Accepts(p string) bool {
	return !m.Denies(p)
}

func splitPath(p string) []string {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func parentDir(p string) string {
	p = strings.Trim(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
