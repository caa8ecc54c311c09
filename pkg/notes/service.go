// Package notes is the synchronization facade: the single entry point for
// adding, updating, deleting, listing, and watching notes across the four
// collections.
//
// Every mutation follows the same write order: the local store first and
// synchronously, then listener notification with the refreshed snapshot,
// then a durable outbox entry for the remote mirror, then (tasks only) the
// best-effort calendar side effect. The local write and the notification
// complete before the call returns; the mirror and the calendar work happen
// in the background and their failures never surface to the caller.
//
// The facade owns all cross-cutting state itself: the listener registry, the
// tombstone map for soft-delete undo, and the live remote subscriptions.
// Nothing here is a package-level global; construct one Service per session
// and pass it around.
package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notabene-app/notabene/pkg/calendar"
	"github.com/notabene-app/notabene/pkg/classify"
	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
	"github.com/notabene-app/notabene/pkg/store/local"
	"github.com/notabene-app/notabene/pkg/store/outbox"
)

// ErrUndoExpired is returned when an undo is attempted after the tombstone
// retention window has passed or the tombstone was already consumed.
var ErrUndoExpired = errors.New("undo window expired")

// DefaultRetention is how long a soft-deleted note remains restorable.
const DefaultRetention = 5 * time.Minute

// Service is the synchronization facade. Safe for concurrent use.
type Service struct {
	local  *local.Store
	remote store.Store
	watch  store.WatchStore // non-nil when the remote supports live queries
	outbox *outbox.Dispatcher
	cal    calendar.Calendar
	class  *classify.Classifier
	log    *zap.SugaredLogger

	retention time.Duration
	now       func() time.Time

	mu         sync.Mutex
	listeners  map[models.Kind]map[int]func(store.Snapshot)
	nextID     int
	tombstones map[models.NoteID]*tombstone
	remoteSubs map[models.Kind]func()
}

// Option configures a Service.
type Option func(*Service)

// WithRemote attaches a remote store and its outbox dispatcher. Without it
// the Service operates local-only: no mirroring, no live subscriptions.
func WithRemote(remote store.Store, dispatcher *outbox.Dispatcher) Option {
	return func(s *Service) {
		s.remote = remote
		s.outbox = dispatcher
		if w, ok := remote.(store.WatchStore); ok {
			s.watch = w
		}
	}
}

// WithRetention overrides the tombstone retention window.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// WithClock overrides the time source. Used by tests to expire tombstones
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(localStore *local.Store, cal calendar.Calendar, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		local:      localStore,
		cal:        cal,
		class:      classify.New(),
		log:        log,
		retention:  DefaultRetention,
		now:        time.Now,
		listeners:  make(map[models.Kind]map[int]func(store.Snapshot)),
		tombstones: make(map[models.NoteID]*tombstone),
		remoteSubs: make(map[models.Kind]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels any live remote subscriptions. The stores and the outbox
// dispatcher have their own lifecycles and are not closed here.
func (s *Service) Close() {
	s.mu.Lock()
	cancels := make([]func(), 0, len(s.remoteSubs))
	for kind, cancel := range s.remoteSubs {
		cancels = append(cancels, cancel)
		delete(s.remoteSubs, kind)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Add creates a new note of the given kind from the draft. The draft's ID
// and CreatedAt are assigned here; any values already present are ignored.
func (s *Service) Add(ctx context.Context, kind models.Kind, draft *models.Note) (*models.Note, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid kind %q", kind)
	}

	note := draft.Clone()
	note.ID = models.NewNoteID()
	note.Kind = kind
	now := s.now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now
	note.CalendarEventRef = ""
	if kind == models.KindTask && note.Priority == "" {
		note.Priority = models.PriorityMedium
	}

	if err := s.local.Create(ctx, kind, note); err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", kind, err)
	}
	s.notify(ctx, kind)
	s.mirrorUpsert(ctx, kind, note)

	if kind == models.KindTask && note.DueDate != nil {
		s.scheduleCalendarCreate(kind, note.ID)
	}
	return note, nil
}

// Update applies a partial patch to a note and returns the updated record.
func (s *Service) Update(ctx context.Context, kind models.Kind, id models.NoteID, patch store.Patch) (*models.Note, error) {
	prevRef := ""
	if kind == models.KindTask && patch.TouchesDueDate() {
		if before, err := s.local.Get(ctx, kind, id); err == nil {
			prevRef = before.CalendarEventRef
		}
	}

	if err := s.local.Update(ctx, kind, id, patch); err != nil {
		return nil, err
	}
	note, err := s.local.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, kind)
	s.mirrorUpsert(ctx, kind, note)

	if kind == models.KindTask && patch.TouchesDueDate() {
		s.scheduleCalendarSync(kind, id, prevRef)
	}
	return note, nil
}

// Delete permanently removes a note. No tombstone is kept; any pending undo
// for the id is invalidated. Deleting an absent id succeeds.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	s.mu.Lock()
	delete(s.tombstones, id)
	s.mu.Unlock()

	if err := s.local.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.notify(ctx, kind)
	s.mirrorDelete(ctx, kind, id)
	return nil
}

// List returns the active notes of a kind, newest-first.
func (s *Service) List(ctx context.Context, kind models.Kind) ([]*models.Note, error) {
	return s.local.List(ctx, kind)
}

// Get returns one active note.
func (s *Service) Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error) {
	return s.local.Get(ctx, kind, id)
}

// mirrorUpsert queues the note for the remote store. Queue failures are
// logged, not surfaced: the local write already succeeded and stays visible.
func (s *Service) mirrorUpsert(ctx context.Context, kind models.Kind, note *models.Note) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.EnqueueUpsert(ctx, kind, note); err != nil {
		s.log.Errorw("failed to queue remote upsert", "kind", kind, "id", note.ID, "error", err)
	}
}

func (s *Service) mirrorDelete(ctx context.Context, kind models.Kind, id models.NoteID) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.EnqueueDelete(ctx, kind, id); err != nil {
		s.log.Errorw("failed to queue remote delete", "kind", kind, "id", id, "error", err)
	}
}

// notify fans the kind's refreshed local snapshot out to every registered
// listener before the mutating call returns.
func (s *Service) notify(ctx context.Context, kind models.Kind) {
	snapshot, err := s.local.List(ctx, kind)
	if err != nil {
		s.log.Errorw("failed to load snapshot for listeners", "kind", kind, "error", err)
		return
	}
	s.fanOut(kind, snapshot)
}

func (s *Service) fanOut(kind models.Kind, snapshot store.Snapshot) {
	s.mu.Lock()
	fns := make([]func(store.Snapshot), 0, len(s.listeners[kind]))
	for _, fn := range s.listeners[kind] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}
