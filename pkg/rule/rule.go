// Package rule implements user-defined path exclusion rules.
package rule

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/onsave/onsave/pkg/expr"
)

// Rule uses a CEL matcher to decide whether a changed path should be excluded
// from triggering a run.
//
// CEL expressions have access to one variable:
//   - `path` (string): The absolute path of the changed file.
//
// CEL expressions must return a boolean value:
//   - pathExt(path) in [".tmp", ".swp"] - exclude editor scratch files
//   - pathBase(path).startsWith("wip-") - exclude work-in-progress scripts
//   - pathDir(path).contains("/vendor/") - exclude vendored trees
//
// CEL path functions available:
//   - pathBase(string): Returns the last element of the path (filename)
//   - pathDir(string): Returns all but the last element of the path (directory)
//   - pathExt(string): Returns the file extension including the dot
//
// CEL also provides standard functions like `endsWith`, `contains`,
// `startsWith`, `matches`, and logical operators like `&&`, `||`, and `!`.
type Rule struct {
	matchProgram cel.Program // Compiled CEL program for matching paths.

	// Match is a CEL expression to match changed paths.
	Match string `json:"match" jsonschema:"title=Match Expression"`
}

// New creates a new rule with the given match expression.
func New(match string) (*Rule, error) {
	r := &Rule{Match: match}

	err := r.CompileMatch()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", match, err)
	}

	return r, nil
}

// MustNew creates a new rule and panics if there's an error.
func MustNew(match string) *Rule {
	r, err := New(match)
	if err != nil {
		panic(err)
	}

	return r
}

// CompileMatch compiles the rule's match expression into a CEL program.
func (r *Rule) CompileMatch() error {
	if r.matchProgram != nil {
		return nil
	}

	env, err := expr.NewEnvironment(
		cel.Variable("path", cel.StringType),
	)
	if err != nil {
		return fmt.Errorf("create CEL environment: %w", err)
	}

	program, err := env.Compile(r.Match)
	if err != nil {
		return fmt.Errorf("compile match expression: %w", err)
	}

	r.matchProgram = program

	return nil
}

// MatchPath evaluates the rule against a changed path.
//
// The CEL expression must return a boolean value indicating whether the rule
// matches. Evaluation failures and non-boolean results are treated as
// non-matches.
func (r *Rule) MatchPath(path string) bool {
	if r.matchProgram == nil {
		panic(errors.New("rule missing a match expression"))
	}

	result, _, err := r.matchProgram.Eval(map[string]any{
		"path": path,
	})
	if err != nil {
		return false
	}

	if boolVal, ok := result.Value().(bool); ok {
		return boolVal
	}

	return false
}

func (r *Rule) String() string {
	return r.Match
}
