package notes_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/notes"
)

func seedLocal(t *testing.T, f *fixture, kind models.Kind, note *models.Note) *models.Note {
	t.Helper()
	require.NoError(t, f.local.Create(context.Background(), kind, note))
	return note
}

func TestBootstrapPushesLocalData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	thought := seedLocal(t, f, models.KindThought, &models.Note{Content: "pre-cloud idea"})
	task := seedLocal(t, f, models.KindTask, &models.Note{
		Content:   "pre-cloud chore",
		Completed: true,
		Priority:  models.PriorityHigh,
		DueDate:   &due,
	})

	state, err := f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationDone, state)

	// One list per kind to find the remote empty, three pushes (the task
	// takes two steps), then the one-shot pull lists every kind again.
	require.Equal(t, 2*len(models.Kinds())+3, f.remote.Ops())

	got, err := f.remote.Get(ctx, models.KindThought, thought.ID)
	require.NoError(t, err)
	require.Equal(t, "pre-cloud idea", got.Content)

	// Task state survives the two-step push.
	gotTask, err := f.remote.Get(ctx, models.KindTask, task.ID)
	require.NoError(t, err)
	require.True(t, gotTask.Completed)
	require.Equal(t, models.PriorityHigh, gotTask.Priority)
	require.NotNil(t, gotTask.DueDate)

	// The durable flag prevents a second push.
	opsAfter := f.remote.Ops()
	state, err = f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationDone, state)
	// The second run only pulls (one list per kind), it does not re-create.
	require.Equal(t, opsAfter+len(models.Kinds()), f.remote.Ops())
}

func TestBootstrapRemoteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	seedLocal(t, f, models.KindThought, &models.Note{Content: "local only"})

	cloud := &models.Note{
		ID:        models.NewNoteID(),
		Content:   "cloud truth",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.remote.Create(ctx, models.KindThought, cloud))

	state, err := f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationNotNeeded, state)

	// The local cache now mirrors the remote.
	thoughts, err := f.svc.List(ctx, models.KindThought)
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	require.Equal(t, cloud.ID, thoughts[0].ID)

	// Nothing was pushed.
	require.Equal(t, 1, f.remote.Len(models.KindThought))
}

func TestBootstrapBothEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	state, err := f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationNotNeeded, state)

	// The durable flag routes the next start through the done path.
	state, err = f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationDone, state)
}

func TestBootstrapFailureRetriesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	seedLocal(t, f, models.KindThought, &models.Note{Content: "keep me once"})

	f.remote.SetError(errors.New("quota exceeded"))
	state, err := f.svc.Bootstrap(ctx, "alice")
	require.Error(t, err)
	require.NotEqual(t, notes.MigrationDone, state)

	// The flag was withheld, so the next start retries the push from
	// scratch. Creates are keyed by id, so the retry overwrites rather than
	// duplicating.
	f.remote.SetError(nil)
	state, err = f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationDone, state)
	require.Equal(t, 1, f.remote.Len(models.KindThought))
}

func TestBootstrapLocalOnlyIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	seedLocal(t, f, models.KindThought, &models.Note{Content: "stays local"})

	state, err := f.svc.Bootstrap(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, notes.MigrationNotNeeded, state)
}
