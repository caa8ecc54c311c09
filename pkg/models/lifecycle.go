package models

import "fmt"

// Lifecycle is the visible state of a record:
//
//	None ──add──▶ Active ──update──▶ Active
//	Active ──softDelete──▶ Tombstoned ──undo──▶ Active
//	Tombstoned ──sweep──▶ None
//	Active ──delete/convert──▶ None
//
// Hard delete and conversion skip the tombstone. The tombstone manager routes
// every move in and out of Tombstoned through Transition so illegal moves
// (re-deleting a live tombstone, restoring or sweeping one that already left
// the state) fail loudly instead of being silently ignored.
type Lifecycle int

const (
	LifecycleNone Lifecycle = iota
	LifecycleActive
	LifecycleTombstoned
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleNone:
		return "none"
	case LifecycleActive:
		return "active"
	case LifecycleTombstoned:
		return "tombstoned"
	}
	return fmt.Sprintf("lifecycle(%d)", int(l))
}

// Transition validates a lifecycle move and returns the new state.
func (l Lifecycle) Transition(to Lifecycle) (Lifecycle, error) {
	ok := false
	switch l {
	case LifecycleNone:
		ok = to == LifecycleActive
	case LifecycleActive:
		ok = to == LifecycleNone || to == LifecycleTombstoned || to == LifecycleActive
	case LifecycleTombstoned:
		ok = to == LifecycleNone || to == LifecycleActive
	}
	if !ok {
		return l, fmt.Errorf("illegal lifecycle transition %s -> %s", l, to)
	}
	return to, nil
}
