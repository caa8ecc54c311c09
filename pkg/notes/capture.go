package notes

import (
	"context"
	"errors"
	"strings"

	"github.com/notabene-app/notabene/pkg/models"
)

// ErrEmptyCapture is returned when the captured text contains nothing to
// keep once markers and tags are stripped.
var ErrEmptyCapture = errors.New("nothing to capture")

// Capture classifies free text and adds the resulting note. This is the
// quick-entry path: one string in, a classified and persisted note out.
func (s *Service) Capture(ctx context.Context, text string) (*models.Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyCapture
	}

	res := s.class.Classify(text)
	if res.Content == "" {
		return nil, ErrEmptyCapture
	}

	draft := &models.Note{
		Content:  res.Content,
		Tags:     res.Tags,
		Priority: res.Priority,
		DueDate:  res.DueDate,
	}
	return s.Add(ctx, res.Kind, draft)
}
