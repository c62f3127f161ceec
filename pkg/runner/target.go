package runner

import "fmt"

// TargetKind distinguishes a normal edited script from an edit of the
// configured then-script.
type TargetKind int

const (
	// TargetPrimary is an ordinary edited script; a successful run may chain
	// the then-script.
	TargetPrimary TargetKind = iota

	// TargetThen means the edited script IS the configured then-script. It
	// runs once as the primary job and no chain is scheduled, so a single
	// save never runs it twice.
	TargetThen
)

func (k TargetKind) String() string {
	switch k {
	case TargetPrimary:
		return "primary"
	case TargetThen:
		return "then"
	}

	return "unknown"
}

// Target is the single actionable path selected from a batch, decomposed
// into everything needed to run it.
type Target struct {
	// Path is the canonical absolute path of the script.
	Path string
	// Dir is the directory the script runs in (its parent).
	Dir string
	// Invocation is the relative invocation, always "./<name>".
	Invocation string
	// Kind tags whether the target is the then-script itself.
	Kind TargetKind
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Path, t.Kind)
}
