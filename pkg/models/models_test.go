package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindTables(t *testing.T) {
	require.Equal(t, "thoughts", KindThought.Table())
	require.Equal(t, "tasks", KindTask.Table())
	require.Equal(t, "tagged_notes", KindTaggedNote.Table())
	require.Equal(t, "investment_notes", KindInvestment.Table())

	for _, kind := range Kinds() {
		require.True(t, kind.Valid())
		parsed, ok := ParseKind(string(kind))
		require.True(t, ok)
		require.Equal(t, kind, parsed)
	}

	_, ok := ParseKind("bogus")
	require.False(t, ok)
}

func TestTagsScanLenient(t *testing.T) {
	var tags Tags
	require.NoError(t, tags.Scan(`["a","b"]`))
	require.Equal(t, Tags{"a", "b"}, tags)

	// Malformed persisted data is dropped, not surfaced.
	var bad Tags
	require.NoError(t, bad.Scan(`{not json`))
	require.Nil(t, bad)

	var null Tags
	require.NoError(t, null.Scan(nil))
	require.Nil(t, null)
}

func TestTagsEqualIgnoresOrder(t *testing.T) {
	require.True(t, Tags{"a", "b"}.Equal(Tags{"b", "a"}))
	require.False(t, Tags{"a"}.Equal(Tags{"a", "b"}))
	require.True(t, Tags(nil).Equal(Tags{}))
}

func TestNoteIDJSONRoundTrip(t *testing.T) {
	id := NewNoteID()
	data, err := json.Marshal(id)
	require.NoError(t, err)

	var back NoteID
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, id, back)
}

func TestNoteIDRecordIDPerKind(t *testing.T) {
	id := NewNoteID()
	rid := id.RecordID(KindTask)
	require.Equal(t, "tasks", rid.Table)
	require.Equal(t, id.String(), rid.ID)

	// The same id addresses a different table after conversion.
	require.Equal(t, "thoughts", id.RecordID(KindThought).Table)
}

func TestCloneIsDeep(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	note := &Note{
		ID:      NewNoteID(),
		Content: "original",
		Tags:    Tags{"a"},
		DueDate: &due,
	}

	clone := note.Clone()
	clone.Tags[0] = "mutated"
	*clone.DueDate = due.AddDate(0, 0, 1)

	require.Equal(t, Tags{"a"}, note.Tags)
	require.Equal(t, due, *note.DueDate)
}

func TestLifecycleTransitions(t *testing.T) {
	active, err := LifecycleNone.Transition(LifecycleActive)
	require.NoError(t, err)
	require.Equal(t, LifecycleActive, active)

	tombstoned, err := active.Transition(LifecycleTombstoned)
	require.NoError(t, err)

	// Undo brings a tombstoned record back; sweeping ends it.
	_, err = tombstoned.Transition(LifecycleActive)
	require.NoError(t, err)
	_, err = tombstoned.Transition(LifecycleNone)
	require.NoError(t, err)

	// A record that doesn't exist can only be created.
	_, err = LifecycleNone.Transition(LifecycleTombstoned)
	require.Error(t, err)
	_, err = LifecycleNone.Transition(LifecycleNone)
	require.Error(t, err)
}
