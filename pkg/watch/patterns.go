package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
)

const globMeta = "*?[]{}"

// pattern is a compiled glob. Patterns without a separator match the base
// name of a path; anything else matches the slash-separated absolute path.
type pattern struct {
	baseOnly bool
	globs    []glob.Glob
}

func compilePatterns(root string, sources []string) ([]pattern, error) {
	patterns := make([]pattern, 0, len(sources))
	for _, src := range lo.Compact(sources) {
		var p pattern
		expr := filepath.ToSlash(src)
		if !strings.Contains(expr, "/") {
			p.baseOnly = true
		} else if !filepath.IsAbs(src) {
			expr = filepath.ToSlash(filepath.Join(root, src))
		}

		// "a/**/b" also matches "a/b".
		exprs := lo.Uniq([]string{expr, strings.ReplaceAll(expr, "/**/", "/")})
		for _, e := range exprs {
			g, err := glob.Compile(e, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", src, err)
			}
			p.globs = append(p.globs, g)
		}
		patterns = append(patterns, p)
	}

	return patterns, nil
}

func (p pattern) match(absPath string) bool {
	subject := filepath.ToSlash(absPath)
	if p.baseOnly {
		subject = filepath.Base(absPath)
	}
	return lo.SomeBy(p.globs, func(g glob.Glob) bool { return g.Match(subject) })
}

func matchAny(patterns []pattern, absPath string) bool {
	return lo.SomeBy(patterns, func(p pattern) bool { return p.match(absPath) })
}

// staticPrefix returns the directory part of a pattern that precedes its
// first wildcard, resolved against root.
func staticPrefix(root, src string) string {
	abs := src
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, src)
	}
	idx := strings.IndexAny(abs, globMeta)
	if idx == -1 {
		return abs
	}
	dir := abs[:idx]
	if lastSlash := strings.LastIndexAny(dir, `/\`); lastSlash != -1 {
		return dir[:lastSlash]
	}
	return root
}
