package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notabene-app/notabene/pkg/models"
)

// Monday 2025-01-06 12:00 UTC, so "friday" resolves to 2025-01-10.
var base = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func newTestClassifier() *Classifier {
	c := New()
	c.now = func() time.Time { return base }
	return c
}

func TestClassifyThought(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("just a passing idea")
	require.Equal(t, models.KindThought, res.Kind)
	require.Equal(t, "just a passing idea", res.Content)
	require.Empty(t, res.Tags)
	require.Nil(t, res.DueDate)
}

func TestClassifyTaggedNote(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("#golang generics are fine")
	require.Equal(t, models.KindTaggedNote, res.Kind)
	require.Equal(t, "generics are fine", res.Content)
	require.Equal(t, models.Tags{"golang"}, res.Tags)

	// Sub-tags follow the category tag.
	res = c.Classify("#golang #performance pprof first, guess later")
	require.Equal(t, models.KindTaggedNote, res.Kind)
	require.Equal(t, models.Tags{"golang", "performance"}, res.Tags)
	require.Equal(t, "pprof first, guess later", res.Content)
}

func TestClassifyInvestment(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("#invest market looks toppy")
	require.Equal(t, models.KindInvestment, res.Kind)
	require.Equal(t, models.Tags{"invest"}, res.Tags)
	require.Equal(t, "market looks toppy", res.Content)
}

func TestClassifyTaskPrefix(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("todo: buy milk")
	require.Equal(t, models.KindTask, res.Kind)
	require.Equal(t, "buy milk", res.Content)
	require.Equal(t, models.PriorityMedium, res.Priority)
	require.Nil(t, res.DueDate)
}

func TestClassifyTaskDueDate(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("todo: buy milk by friday")
	require.Equal(t, models.KindTask, res.Kind)
	require.Equal(t, "buy milk", res.Content)
	require.NotNil(t, res.DueDate)
	require.Equal(t, time.January, res.DueDate.Month())
	require.Equal(t, 10, res.DueDate.Day())
}

func TestClassifyTrailingDatePhraseImpliesTask(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("call mom tomorrow")
	require.Equal(t, models.KindTask, res.Kind)
	require.Equal(t, "call mom", res.Content)
	require.NotNil(t, res.DueDate)
	require.Equal(t, 7, res.DueDate.Day())
}

func TestClassifyHighPriority(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("todo: renew passport!")
	require.Equal(t, models.KindTask, res.Kind)
	require.Equal(t, models.PriorityHigh, res.Priority)
	require.Equal(t, "renew passport", res.Content)
}

func TestClassifyIsPure(t *testing.T) {
	c := newTestClassifier()

	first := c.Classify("todo: buy milk by friday")
	second := c.Classify("todo: buy milk by friday")
	require.Equal(t, first, second)
}
