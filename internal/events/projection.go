package events

import "time"

// ProjectionStart is emitted before assembling a record projection.
type ProjectionStart struct {
	Object    string
	Depth     int
	Requested int
}

// ProjectionFinish is emitted after an assembly attempt.
type ProjectionFinish struct {
	Object   string
	Fields   int // top-level keys
	Entries  int // keys at every level
	Nesting  int // deepest relation nesting
	Err      error
	Duration time.Duration
}

// RelationDegraded is emitted when a relation is projected as a leaf
// because its target object could not be resolved.
type RelationDegraded struct {
	Object string
	Field  string
	Target string
	Reason string
}

// VisibleFieldSkipped is emitted when a visible field id names no field
// of the object, e.g. stale view state.
type VisibleFieldSkipped struct {
	Object  string
	FieldID string
}
