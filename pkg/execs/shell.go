package execs

import (
	"errors"
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

var (
	// ErrEmptyShell is returned when a shell definition parses to nothing.
	ErrEmptyShell = errors.New("empty shell")

	// ErrEmptyInvocation is returned when an invocation is empty.
	ErrEmptyInvocation = errors.New("empty invocation")
)

// DefaultShell is the shell used when none is configured.
const DefaultShell = "bash -c"

// Shell is the command prefix a script invocation is passed to.
type Shell struct {
	argv []string
}

// NewShell parses a shell definition like "bash -c" or "sh -euc" into a
// [Shell]. Quoting follows normal shell word splitting rules.
func NewShell(def string) (Shell, error) {
	argv, err := shellwords.Parse(def)
	if err != nil {
		return Shell{}, fmt.Errorf("parse shell %q: %w", def, err)
	}
	if len(argv) == 0 {
		return Shell{}, ErrEmptyShell
	}

	return Shell{argv: argv}, nil
}

// MustNewShell parses a shell definition and panics on error.
func MustNewShell(def string) Shell {
	sh, err := NewShell(def)
	if err != nil {
		panic(err)
	}

	return sh
}

// Argv returns the full argv for running the given invocation through the
// shell.
func (sh Shell) Argv(invocation string) []string {
	argv := append([]string{}, sh.argv...)

	return append(argv, invocation)
}

func (sh Shell) String() string {
	return strings.Join(sh.argv, " ")
}
