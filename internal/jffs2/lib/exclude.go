package lib

import (
	"fmt"
	"os"
	"strings"

	"github.com/denormal/go-gitignore"
)

// ExcludeMatcher filters reconstructed paths out of an extraction using
// gitignore-style patterns. A nil matcher excludes nothing.
type ExcludeMatcher struct {
	matcher gitignore.GitIgnore
}

// NewExcludeMatcher compiles patterns, plus the contents of patternFile
// when given, into a matcher over slash-separated image-relative paths.
func NewExcludeMatcher(patterns []string, patternFile string) (*ExcludeMatcher, error) {
	raw := make([]string, 0, len(patterns))
	raw = append(raw, patterns...)

	if patternFile != "" {
		content, err := os.ReadFile(patternFile)
		if err != nil {
			return nil, fmt.Errorf("could not read exclude file: %w", err)
		}
		raw = append(raw, strings.Split(string(content), "\n")...)
	}

	var final []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Directory patterns match the directory and everything
		// beneath it.
		if strings.HasSuffix(trimmed, "/") {
			base := strings.TrimSuffix(trimmed, "/")
			final = append(final, base, base+"/**")
			continue
		}
		final = append(final, trimmed)
	}
	if len(final) == 0 {
		return nil, nil
	}

	matcher := gitignore.New(
		strings.NewReader(strings.Join(final, "\n")),
		".",
		// Keep parsing past any malformed pattern line.
		func(err gitignore.Error) bool { return true },
	)
	if matcher == nil {
		return nil, fmt.Errorf("could not compile exclude patterns")
	}
	return &ExcludeMatcher{matcher: matcher}, nil
}

// Excluded reports whether the entry at relPath should be skipped. The
// paths being matched exist inside an image, not on disk, so matching
// goes through Relative rather than the stat-based Match.
func (m *ExcludeMatcher) Excluded(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	match := m.matcher.Relative(relPath, isDir)
	if match == nil {
		return false
	}
	return match.Ignore()
}
