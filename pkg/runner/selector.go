package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsave/onsave/pkg/log"
	"github.com/onsave/onsave/pkg/rule"
	"github.com/onsave/onsave/pkg/watch"
)

// Selector reduces an event batch to at most one actionable [Target].
type Selector struct {
	thenPath string
	excludes []*rule.Rule
}

// SelectorOpt configures a [Selector].
type SelectorOpt func(*Selector)

// WithThenPath sets the canonical then-script path, used to tag targets that
// are the then-script itself.
func WithThenPath(path string) SelectorOpt {
	return func(s *Selector) {
		s.thenPath = path
	}
}

// WithExcludes adds exclusion rules; a candidate matching any rule is
// discarded.
func WithExcludes(rules ...*rule.Rule) SelectorOpt {
	return func(s *Selector) {
		s.excludes = append(s.excludes, rules...)
	}
}

// NewSelector creates a [Selector].
func NewSelector(opts ...SelectorOpt) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Select picks the first actionable candidate from the batch, in delivery
// order, or nil when nothing qualifies.
//
// A candidate qualifies when its notification is a content change, the file
// is executable, no path component is hidden, the name does not carry an
// editor backup suffix, no exclusion rule matches, and the path
// canonicalizes. Candidates failing any check are skipped individually; a
// batch never produces more than one target.
func (s *Selector) Select(ctx context.Context, batch watch.Batch) *Target {
	logger := log.WithContext(ctx)

	for _, n := range batch.Notifications {
		if !n.ContentChanged() {
			continue
		}
		if !s.admissible(n.Path) {
			continue
		}

		canonical, err := canonicalize(n.Path)
		if err != nil {
			// The file may have vanished between the event and now. Skip the
			// candidate rather than giving up on the batch.
			logger.DebugContext(ctx, "canonicalize candidate",
				slog.String("path", n.Path),
				slog.Any("err", err),
			)

			continue
		}

		name := filepath.Base(canonical)
		if name == "." || name == string(filepath.Separator) {
			// No file name component to invoke. Keep scanning.
			continue
		}

		target := &Target{
			Path:       canonical,
			Dir:        filepath.Dir(canonical),
			Invocation: "./" + name,
			Kind:       TargetPrimary,
		}
		if s.thenPath != "" && canonical == s.thenPath {
			target.Kind = TargetThen
		}

		return target
	}

	return nil
}

func (s *Selector) admissible(path string) bool {
	if !isExecutable(path) {
		return false
	}
	if hasHiddenComponent(path) {
		return false
	}
	if strings.HasSuffix(filepath.Base(path), "~") {
		return false
	}

	for _, r := range s.excludes {
		if r.MatchPath(path) {
			return false
		}
	}

	return true
}

// isExecutable reports whether path is a regular file with any execute bit
// set. Errors exclude the path (fail closed).
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// hasHiddenComponent reports whether any path element except the root is
// hidden (starts with a dot).
func hasHiddenComponent(path string) bool {
	for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}

	return false
}

// canonicalize resolves path to an absolute, symlink-free form.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err //nolint:wrapcheck // Return the original error.
	}

	return filepath.EvalSymlinks(abs) //nolint:wrapcheck // Return the original error.
}
