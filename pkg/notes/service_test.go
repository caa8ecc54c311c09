package notes_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/notes"
	"github.com/notabene-app/notabene/pkg/notes/notestesting"
	"github.com/notabene-app/notabene/pkg/store"
	"github.com/notabene-app/notabene/pkg/store/local"
	"github.com/notabene-app/notabene/pkg/store/outbox"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc        *notes.Service
	local      *local.Store
	remote     *notestesting.FakeRemote
	cal        *notestesting.FakeCalendar
	dispatcher *outbox.Dispatcher
	clock      *fakeClock
}

func newFixture(t *testing.T, withRemote bool) *fixture {
	t.Helper()
	ctx := context.Background()

	localStore, err := local.Open(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { localStore.Close() })
	require.NoError(t, localStore.Migrate(ctx))

	f := &fixture{
		local: localStore,
		cal:   notestesting.NewFakeCalendar(),
		clock: &fakeClock{t: time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)},
	}

	log := zap.NewNop().Sugar()
	opts := []notes.Option{notes.WithClock(f.clock.Now)}

	if withRemote {
		f.remote = notestesting.NewFakeRemote()
		f.dispatcher = outbox.New(localStore.DB(), f.remote, log,
			outbox.WithBackoff(time.Millisecond, 10*time.Millisecond))
		require.NoError(t, f.dispatcher.Migrate(ctx))
		opts = append(opts, notes.WithRemote(f.remote, f.dispatcher))
	}

	f.svc = notes.New(localStore, f.cal, log, opts...)
	t.Cleanup(f.svc.Close)
	return f
}

func TestAddAssignsFreshID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	first, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "one"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "two"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	thoughts, err := f.svc.List(ctx, models.KindThought)
	require.NoError(t, err)
	require.Len(t, thoughts, 2)
	// Newest first.
	require.Equal(t, "two", thoughts[0].Content)
}

func TestAddTaskDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "buy milk"})
	require.NoError(t, err)
	require.False(t, task.Completed)
	require.Equal(t, models.PriorityMedium, task.Priority)
	require.Empty(t, task.CalendarEventRef)
}

func TestAddRejectsUnknownKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.Add(ctx, models.Kind("bogus"), &models.Note{Content: "x"})
	require.Error(t, err)
}

func TestCalendarCoupling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "buy milk", DueDate: &due})
	require.NoError(t, err)

	// The event write is asynchronous; the ref appears eventually.
	require.Eventually(t, func() bool {
		got, err := f.svc.Get(ctx, models.KindTask, task.ID)
		return err == nil && got.CalendarEventRef != ""
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, f.cal.Events(), 1)

	// Clearing the due date removes the event and the ref.
	_, err = f.svc.Update(ctx, models.KindTask, task.ID, store.Patch{ClearDueDate: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := f.svc.Get(ctx, models.KindTask, task.ID)
		return err == nil && got.CalendarEventRef == "" && len(f.cal.Events()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCalendarMovesWithDueDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "dentist", DueDate: &due})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.svc.Get(ctx, models.KindTask, task.ID)
		return err == nil && got.CalendarEventRef != ""
	}, 2*time.Second, 10*time.Millisecond)

	moved := due.AddDate(0, 0, 3)
	_, err = f.svc.Update(ctx, models.KindTask, task.ID, store.Patch{DueDate: &moved})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, ev := range f.cal.Events() {
			if ev.Day.Equal(moved) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, f.cal.Events(), 1)
}

func TestCalendarFailureDoesNotBlockWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.cal.SetError(errors.New("calendar down"))

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "buy milk", DueDate: &due})
	require.NoError(t, err)

	// The task is fully usable without a calendar event.
	got, err := f.svc.Get(ctx, models.KindTask, task.ID)
	require.NoError(t, err)
	require.Equal(t, "buy milk", got.Content)
	require.Empty(t, got.CalendarEventRef)
}

func TestCalendarHonorsRefFromAnotherDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "dentist"})
	require.NoError(t, err)

	// Another device already created the event and mirrored the ref to the
	// cloud; this device's cache has not caught up.
	due := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	cloud := task.Clone()
	cloud.DueDate = &due
	cloud.CalendarEventRef = "evt-elsewhere"
	require.NoError(t, f.remote.Create(ctx, models.KindTask, cloud))

	moved := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Update(ctx, models.KindTask, task.ID, store.Patch{DueDate: &moved})
	require.NoError(t, err)

	// The existing event is adopted instead of a second one being created.
	require.Eventually(t, func() bool {
		got, err := f.svc.Get(ctx, models.KindTask, task.ID)
		return err == nil && got.CalendarEventRef == "evt-elsewhere"
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, f.cal.Events())
}

func TestSoftDeleteUndoRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "buy milk", DueDate: &due})
	require.NoError(t, err)

	undo, err := f.svc.SoftDelete(ctx, models.KindTask, task.ID)
	require.NoError(t, err)

	tasks, err := f.svc.List(ctx, models.KindTask)
	require.NoError(t, err)
	require.Empty(t, tasks)

	require.NoError(t, undo(ctx))

	tasks, err = f.svc.List(ctx, models.KindTask)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	// The capture was verbatim: same id, same CreatedAt, same fields.
	require.Equal(t, task.ID, tasks[0].ID)
	require.Equal(t, task.CreatedAt, tasks[0].CreatedAt.UTC())
	require.Equal(t, "buy milk", tasks[0].Content)
	require.NotNil(t, tasks[0].DueDate)
}

func TestUndoExpiresAfterRetention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	thought, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "fleeting"})
	require.NoError(t, err)

	undo, err := f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)

	f.clock.Advance(notes.DefaultRetention + time.Second)

	require.ErrorIs(t, undo(ctx), notes.ErrUndoExpired)

	thoughts, err := f.svc.List(ctx, models.KindThought)
	require.NoError(t, err)
	require.Empty(t, thoughts)
}

func TestUndoIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	thought, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "once"})
	require.NoError(t, err)

	undo, err := f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)
	require.NoError(t, undo(ctx))
	require.ErrorIs(t, undo(ctx), notes.ErrUndoExpired)
}

func TestSoftDeleteTombstonedRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	thought, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "twice"})
	require.NoError(t, err)

	undo, err := f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)

	// Deleting again while the tombstone lives fails loudly and must not
	// clobber the restorable capture.
	_, err = f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "illegal lifecycle transition")

	require.NoError(t, undo(ctx))
	got, err := f.svc.Get(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)
	require.Equal(t, "twice", got.Content)
}

func TestHardDeleteInvalidatesUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	thought, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "really gone"})
	require.NoError(t, err)

	undo, err := f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)
	require.NoError(t, undo(ctx))

	require.NoError(t, f.svc.Delete(ctx, models.KindThought, thought.ID))
	_, err = f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConvertPreservesContentNotMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "call mom"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	thought, err := f.svc.Convert(ctx, models.KindThought, task.ID, models.KindTask)
	require.NoError(t, err)
	require.Equal(t, "call mom", thought.Content)
	require.NotEqual(t, task.ID, thought.ID)
	require.True(t, thought.CreatedAt.After(task.CreatedAt))

	// Mutual exclusivity: the source id is in no active collection.
	tasks, err := f.svc.List(ctx, models.KindTask)
	require.NoError(t, err)
	require.Empty(t, tasks)
	thoughts, err := f.svc.List(ctx, models.KindThought)
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	require.Equal(t, thought.ID, thoughts[0].ID)
}

func TestConvertToSameKindRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	task, err := f.svc.Add(ctx, models.KindTask, &models.Note{Content: "stay put"})
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, models.KindTask, task.ID, models.KindTask)
	require.Error(t, err)
}

func TestSubscribeLocalNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	var mu sync.Mutex
	var snapshots []store.Snapshot
	unsubscribe, err := f.svc.Subscribe(ctx, models.KindThought, func(s store.Snapshot) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Immediate snapshot on subscribe.
	mu.Lock()
	require.Len(t, snapshots, 1)
	require.Empty(t, snapshots[0])
	mu.Unlock()

	_, err = f.svc.Add(ctx, models.KindThought, &models.Note{Content: "observed"})
	require.NoError(t, err)

	// Notification is synchronous with the write.
	mu.Lock()
	require.Len(t, snapshots, 2)
	require.Len(t, snapshots[1], 1)
	mu.Unlock()

	unsubscribe()
	_, err = f.svc.Add(ctx, models.KindThought, &models.Note{Content: "unobserved"})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, snapshots, 2)
	mu.Unlock()
}

func TestRemoteMirrorSurvivesOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	first, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "first"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Flush(ctx))
	require.Equal(t, 1, f.remote.Len(models.KindThought))

	// The remote goes away; local writes keep succeeding.
	f.remote.SetError(errors.New("offline"))
	second, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "second"})
	require.NoError(t, err)
	require.Error(t, f.dispatcher.Flush(ctx))

	thoughts, err := f.svc.List(ctx, models.KindThought)
	require.NoError(t, err)
	require.Len(t, thoughts, 2)

	// Back online: the queued write lands.
	f.remote.SetError(nil)
	require.NoError(t, f.dispatcher.Flush(ctx))
	require.Equal(t, 2, f.remote.Len(models.KindThought))

	for _, id := range []models.NoteID{first.ID, second.ID} {
		_, err := f.remote.Get(ctx, models.KindThought, id)
		require.NoError(t, err)
	}
}

func TestRemoteDeleteMirrored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	thought, err := f.svc.Add(ctx, models.KindThought, &models.Note{Content: "mirrored"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Flush(ctx))

	_, err = f.svc.SoftDelete(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Flush(ctx))
	require.Zero(t, f.remote.Len(models.KindThought))
}

func TestRemotePushReachesListeners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	var mu sync.Mutex
	var latest store.Snapshot
	unsubscribe, err := f.svc.Subscribe(ctx, models.KindTask, func(s store.Snapshot) {
		mu.Lock()
		latest = s
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	// Another device writes straight to the remote store.
	other := &models.Note{
		ID:        models.NewNoteID(),
		Content:   "from the other device",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.remote.Create(ctx, models.KindTask, other))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1 && latest[0].ID == other.ID
	}, 2*time.Second, 10*time.Millisecond)

	// The push also landed in the local cache.
	require.Eventually(t, func() bool {
		tasks, err := f.svc.List(ctx, models.KindTask)
		return err == nil && len(tasks) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeRetriesLiveAfterSnapshotFailure(t *testing.T) {
	f := newFixture(t, true)

	// A dead context fails the initial snapshot before the live query starts.
	dead, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Subscribe(dead, models.KindThought, func(store.Snapshot) {})
	require.Error(t, err)

	// The failed attempt must not keep a claim on the live query; the next
	// subscriber still receives cross-device pushes.
	ctx := context.Background()
	var mu sync.Mutex
	var latest store.Snapshot
	unsubscribe, err := f.svc.Subscribe(ctx, models.KindThought, func(s store.Snapshot) {
		mu.Lock()
		latest = s
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	other := &models.Note{
		ID:        models.NewNoteID(),
		Content:   "from the other device",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.remote.Create(ctx, models.KindThought, other))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1 && latest[0].ID == other.ID
	}, 2*time.Second, 10*time.Millisecond)
}
