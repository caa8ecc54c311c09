// Package store defines the persistence contracts shared by the local and
// remote backends.
//
// Two implementations exist:
//
//   - [github.com/notabene-app/notabene/pkg/store/local.Store]: an embedded
//     SQLite database via GORM. Always available, synchronous, authoritative
//     while offline.
//   - [github.com/notabene-app/notabene/pkg/store/remote.Store]: SurrealDB
//     over WebSocket, namespaced per user. Asynchronous, may be unreachable;
//     additionally provides a live-query subscription primitive.
//
// The synchronization facade in
// [github.com/notabene-app/notabene/pkg/notes.Service] coordinates the two:
// every mutation lands in the local store first and is mirrored to the remote
// store through a durable outbox. A failed remote operation never aborts the
// caller's local write.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/notabene-app/notabene/pkg/models"
)

// ErrNotFound is returned by Get and Update when no record with the given id
// exists in the kind's collection.
var ErrNotFound = errors.New("note not found")

// Store is the CRUD contract implemented by both backends.
//
// List returns the collection newest-first by CreatedAt. Get returns
// ErrNotFound for missing records. Create persists a note whose ID and
// CreatedAt have already been assigned by the caller; implementations must
// treat a re-create of an existing id as an overwrite so that replayed
// mirror writes and migration retries stay idempotent. Update applies a
// partial patch. Delete is idempotent: deleting a missing id is not an error.
type Store interface {
	List(ctx context.Context, kind models.Kind) ([]*models.Note, error)
	Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error)
	Create(ctx context.Context, kind models.Kind, note *models.Note) error
	Update(ctx context.Context, kind models.Kind, id models.NoteID, patch Patch) error
	Delete(ctx context.Context, kind models.Kind, id models.NoteID) error

	// Migrate initializes the backend's schema. Idempotent.
	Migrate(ctx context.Context) error
	Close() error
}

// Snapshot is a collection state delivered to subscribers, newest-first.
type Snapshot []*models.Note

// WatchStore is a Store that can push collection changes. Subscribe invokes
// fn immediately with the current snapshot and again whenever the collection
// changes, until the returned cancel function is called.
type WatchStore interface {
	Store
	Subscribe(ctx context.Context, kind models.Kind, fn func(Snapshot)) (func(), error)
}

// Patch is a partial update. Nil pointer fields are left untouched. Clearing
// an optional field is expressed with the dedicated Clear flags because a nil
// pointer already means "no change".
type Patch struct {
	Content   *string
	Tags      *models.Tags
	Completed *bool
	Priority  *models.Priority

	DueDate      *time.Time
	ClearDueDate bool

	CalendarEventRef      *string
	ClearCalendarEventRef bool
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Content == nil && p.Tags == nil && p.Completed == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.CalendarEventRef == nil && !p.ClearCalendarEventRef
}

// TouchesDueDate reports whether applying the patch may change the task's due
// date, which is what couples an update to the external calendar.
func (p Patch) TouchesDueDate() bool {
	return p.DueDate != nil || p.ClearDueDate
}

// Apply mutates note in place. ID and CreatedAt are never touched.
func (p Patch) Apply(note *models.Note) {
	if p.Content != nil {
		note.Content = *p.Content
	}
	if p.Tags != nil {
		note.Tags = append(models.Tags(nil), (*p.Tags)...)
	}
	if p.Completed != nil {
		note.Completed = *p.Completed
	}
	if p.Priority != nil {
		note.Priority = *p.Priority
	}
	if p.ClearDueDate {
		note.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		note.DueDate = &due
	}
	if p.ClearCalendarEventRef {
		note.CalendarEventRef = ""
	} else if p.CalendarEventRef != nil {
		note.CalendarEventRef = *p.CalendarEventRef
	}
}
