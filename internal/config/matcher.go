package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher applies the include/exclude globs of a pyrightconfig.json to
// workspace-relative paths. Paths are matched with '/' separators
// regardless of platform. A bare directory name is treated as matching
// everything beneath it.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewMatcher compiles the config's include and exclude patterns. A nil
// config produces a matcher that allows everything.
func NewMatcher(cfg *FileConfig) (*Matcher, error) {
	m := &Matcher{}
	if cfg == nil {
		return m, nil
	}

	var err error
	if m.include, err = compilePatterns(cfg.Include); err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if m.exclude, err = compilePatterns(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return m, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			pattern = strings.TrimSuffix(pattern, "/")
			pattern = "**/" + pattern + "/**"
		}
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		out = append(out, compiled)
	}
	return out, nil
}

// Allowed reports whether a workspace-relative path passes the config's
// filters: excluded paths always lose, and when includes are declared the
// path must match one of them.
func (m *Matcher) Allowed(rel string) bool {
	rel = filepath.ToSlash(rel)
	// Patterns like **/x/** only see subdirectory entries when the path is
	// anchored below some root, so match both the bare and rooted forms.
	rooted := "./" + rel

	for _, g := range m.exclude {
		if g.Match(rel) || g.Match(rooted) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, g := range m.include {
		if g.Match(rel) || g.Match(rooted) {
			return true
		}
	}
	return false
}
