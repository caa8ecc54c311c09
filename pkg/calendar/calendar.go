// Package calendar integrates task due dates with an external calendar
// service. The integration is best-effort: calendar failures are logged by
// callers and never block or roll back a note write.
package calendar

import (
	"context"
	"time"
)

// Calendar manages all-day events mirroring task due dates. Event references
// are opaque to callers; they are stored on the task and handed back verbatim.
type Calendar interface {
	// CreateEvent creates an all-day event on the given day and returns its
	// reference.
	CreateEvent(ctx context.Context, title string, day time.Time) (string, error)
	// UpdateEvent moves or retitles the referenced event.
	UpdateEvent(ctx context.Context, ref string, title string, day time.Time) error
	// DeleteEvent removes the referenced event. Deleting an unknown
	// reference is not an error.
	DeleteEvent(ctx context.Context, ref string) error
}

// Disabled is the Calendar used when no service is configured. Every
// operation succeeds without doing anything; CreateEvent returns an empty
// reference so no event ref is ever stored.
type Disabled struct{}

func (Disabled) CreateEvent(ctx context.Context, title string, day time.Time) (string, error) {
	return "", nil
}

func (Disabled) UpdateEvent(ctx context.Context, ref, title string, day time.Time) error {
	return nil
}

func (Disabled) DeleteEvent(ctx context.Context, ref string) error {
	return nil
}
