package watch

import "github.com/fsnotify/fsnotify"

// Notification is a single filesystem change observed under the watched root.
type Notification struct {
	// Path is the absolute path the change refers to.
	Path string
	// Op carries the fsnotify operation flags for the change.
	Op fsnotify.Op
}

// ContentChanged reports whether the notification represents a content write,
// as opposed to creation, renaming, removal, or metadata-only changes.
func (n Notification) ContentChanged() bool {
	return n.Op.Has(fsnotify.Write)
}

// Batch is the set of notifications delivered together for one tick.
type Batch struct {
	Notifications []Notification

	// Interrupt is set when the batch represents an interrupt request rather
	// than filesystem activity.
	Interrupt bool
}
