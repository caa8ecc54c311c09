// Package notestesting provides in-memory fakes for the remote store and the
// calendar, with error injection for exercising the failure paths.
package notestesting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// FakeRemote is an in-memory store.WatchStore. Operations fail while an
// injected error is set, which is how tests simulate an unreachable remote.
type FakeRemote struct {
	mu      sync.Mutex
	data    map[models.Kind]map[models.NoteID]*models.Note
	subs    map[models.Kind]map[int]func(store.Snapshot)
	nextSub int
	err     error
	ops     int
}

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		data: make(map[models.Kind]map[models.NoteID]*models.Note),
		subs: make(map[models.Kind]map[int]func(store.Snapshot)),
	}
}

// SetError makes every subsequent operation fail with err until cleared
// with SetError(nil).
func (f *FakeRemote) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Ops reports how many store operations were attempted, failed or not.
func (f *FakeRemote) Ops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

// Len reports how many notes a kind holds.
func (f *FakeRemote) Len(kind models.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data[kind])
}

func (f *FakeRemote) Migrate(ctx context.Context) error { return nil }
func (f *FakeRemote) Close() error                      { return nil }

func (f *FakeRemote) snapshotLocked(kind models.Kind) store.Snapshot {
	notes := make([]*models.Note, 0, len(f.data[kind]))
	for _, n := range f.data[kind] {
		notes = append(notes, n.Clone())
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes
}

func (f *FakeRemote) List(ctx context.Context, kind models.Kind) ([]*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshotLocked(kind), nil
}

func (f *FakeRemote) Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	if f.err != nil {
		return nil, f.err
	}
	note, ok := f.data[kind][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return note.Clone(), nil
}

func (f *FakeRemote) Create(ctx context.Context, kind models.Kind, note *models.Note) error {
	f.mu.Lock()
	f.ops++
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	if f.data[kind] == nil {
		f.data[kind] = make(map[models.NoteID]*models.Note)
	}
	f.data[kind][note.ID] = note.Clone()
	f.pushLocked(kind)
	f.mu.Unlock()
	return nil
}

func (f *FakeRemote) Update(ctx context.Context, kind models.Kind, id models.NoteID, patch store.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	if f.err != nil {
		return f.err
	}
	note, ok := f.data[kind][id]
	if !ok {
		return store.ErrNotFound
	}
	patch.Apply(note)
	note.UpdatedAt = time.Now().UTC()
	f.pushLocked(kind)
	return nil
}

func (f *FakeRemote) Delete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	if f.err != nil {
		return f.err
	}
	delete(f.data[kind], id)
	f.pushLocked(kind)
	return nil
}

func (f *FakeRemote) Subscribe(ctx context.Context, kind models.Kind, fn func(store.Snapshot)) (func(), error) {
	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	if f.subs[kind] == nil {
		f.subs[kind] = make(map[int]func(store.Snapshot))
	}
	id := f.nextSub
	f.nextSub++
	f.subs[kind][id] = fn
	snapshot := f.snapshotLocked(kind)
	f.mu.Unlock()

	fn(snapshot)

	cancel := func() {
		f.mu.Lock()
		delete(f.subs[kind], id)
		f.mu.Unlock()
	}
	return cancel, nil
}

// pushLocked notifies subscribers of a change. Deliveries run on their own
// goroutine, like real live-query pushes.
func (f *FakeRemote) pushLocked(kind models.Kind) {
	snapshot := f.snapshotLocked(kind)
	for _, fn := range f.subs[kind] {
		go fn(snapshot)
	}
}

// Event is one calendar event held by FakeCalendar.
type Event struct {
	Title string
	Day   time.Time
}

// FakeCalendar records events in memory.
type FakeCalendar struct {
	mu      sync.Mutex
	events  map[string]Event
	nextRef int
	err     error
}

func NewFakeCalendar() *FakeCalendar {
	return &FakeCalendar{events: make(map[string]Event)}
}

func (f *FakeCalendar) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Events returns a copy of the current events keyed by ref.
func (f *FakeCalendar) Events() map[string]Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Event, len(f.events))
	for ref, ev := range f.events {
		out[ref] = ev
	}
	return out
}

func (f *FakeCalendar) CreateEvent(ctx context.Context, title string, day time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.nextRef++
	ref := fmt.Sprintf("evt-%d", f.nextRef)
	f.events[ref] = Event{Title: title, Day: day}
	return ref, nil
}

func (f *FakeCalendar) UpdateEvent(ctx context.Context, ref, title string, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.events[ref]; !ok {
		return fmt.Errorf("unknown event ref %q", ref)
	}
	f.events[ref] = Event{Title: title, Day: day}
	return nil
}

func (f *FakeCalendar) DeleteEvent(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.events, ref)
	return nil
}
