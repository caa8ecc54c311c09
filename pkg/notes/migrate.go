package notes

import (
	"context"
	"fmt"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// MigrationState tracks the one-time bootstrap between local and remote.
type MigrationState int

const (
	MigrationUnchecked MigrationState = iota
	MigrationNotNeeded
	MigrationInProgress
	MigrationDone
)

func (m MigrationState) String() string {
	switch m {
	case MigrationNotNeeded:
		return "not_needed"
	case MigrationInProgress:
		return "in_progress"
	case MigrationDone:
		return "done"
	default:
		return "unchecked"
	}
}

// Bootstrap runs the migration check for one session.
//
// If the remote already holds data (or a prior run completed), remote wins:
// its collections are pulled into the local cache and no push happens. If
// both sides are empty there is nothing to do. Otherwise every local note is
// pushed to the remote, kind by kind, and a durable per-user flag is set so
// the push never runs twice, even across restarts.
//
// A push failure aborts the whole run and is returned to the caller; the
// flag stays unset so the next session retries. Retries re-push notes that
// already landed, which is harmless: remote creates are keyed by id, so a
// replayed record overwrites itself instead of duplicating.
func (s *Service) Bootstrap(ctx context.Context, userID string) (MigrationState, error) {
	if s.remote == nil {
		return MigrationNotNeeded, nil
	}

	done, err := s.local.MigrationDone(ctx, userID)
	if err != nil {
		return MigrationUnchecked, fmt.Errorf("failed to read migration flag: %w", err)
	}
	if done {
		if err := s.pull(ctx); err != nil {
			return MigrationDone, err
		}
		return MigrationDone, nil
	}

	remoteHas, err := s.remoteHasData(ctx)
	if err != nil {
		return MigrationUnchecked, fmt.Errorf("failed to inspect remote store: %w", err)
	}
	if remoteHas {
		if err := s.local.SetMigrationDone(ctx, userID); err != nil {
			return MigrationNotNeeded, fmt.Errorf("failed to set migration flag: %w", err)
		}
		if err := s.pull(ctx); err != nil {
			return MigrationNotNeeded, err
		}
		return MigrationNotNeeded, nil
	}

	localHas, err := s.localHasData(ctx)
	if err != nil {
		return MigrationUnchecked, err
	}
	if !localHas {
		if err := s.local.SetMigrationDone(ctx, userID); err != nil {
			return MigrationNotNeeded, fmt.Errorf("failed to set migration flag: %w", err)
		}
		return MigrationNotNeeded, nil
	}

	if err := s.push(ctx); err != nil {
		return MigrationInProgress, err
	}
	if err := s.local.SetMigrationDone(ctx, userID); err != nil {
		return MigrationInProgress, fmt.Errorf("failed to set migration flag: %w", err)
	}
	// Every branch ends with the one-shot pull, so each session starts from
	// the remote's view of the collections.
	if err := s.pull(ctx); err != nil {
		return MigrationDone, err
	}
	s.log.Infow("migration complete", "user", userID)
	return MigrationDone, nil
}

func (s *Service) remoteHasData(ctx context.Context) (bool, error) {
	for _, kind := range models.Kinds() {
		notes, err := s.remote.List(ctx, kind)
		if err != nil {
			return false, err
		}
		if len(notes) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) localHasData(ctx context.Context) (bool, error) {
	for _, kind := range models.Kinds() {
		notes, err := s.local.List(ctx, kind)
		if err != nil {
			return false, err
		}
		if len(notes) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// push copies every local note to the remote store, one at a time, in the
// canonical kind order. Tasks go up in two steps: a bare create with the
// content, then an update carrying completion, priority, and due date.
func (s *Service) push(ctx context.Context) error {
	for _, kind := range models.Kinds() {
		notes, err := s.local.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to list local %s: %w", kind, err)
		}
		// Oldest first, so remote insertion order mirrors creation order.
		for i := len(notes) - 1; i >= 0; i-- {
			if err := s.pushOne(ctx, kind, notes[i]); err != nil {
				return fmt.Errorf("failed to migrate %s %s: %w", kind, notes[i].ID, err)
			}
		}
	}
	return nil
}

func (s *Service) pushOne(ctx context.Context, kind models.Kind, note *models.Note) error {
	if kind != models.KindTask {
		return s.remote.Create(ctx, kind, note)
	}

	bare := &models.Note{
		ID:        note.ID,
		Kind:      kind,
		Content:   note.Content,
		Priority:  models.PriorityMedium,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
	if err := s.remote.Create(ctx, kind, bare); err != nil {
		return err
	}

	patch := store.Patch{
		Completed: &note.Completed,
	}
	if note.Priority != "" {
		priority := note.Priority
		patch.Priority = &priority
	}
	if note.DueDate != nil {
		due := *note.DueDate
		patch.DueDate = &due
	}
	if note.CalendarEventRef != "" {
		ref := note.CalendarEventRef
		patch.CalendarEventRef = &ref
	}
	return s.remote.Update(ctx, kind, note.ID, patch)
}

// pull replaces the local collections with the remote's. Runs once per
// session start; afterwards live subscriptions keep local fresh.
func (s *Service) pull(ctx context.Context) error {
	for _, kind := range models.Kinds() {
		notes, err := s.remote.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to pull remote %s: %w", kind, err)
		}
		if err := s.local.ReplaceAll(ctx, kind, notes); err != nil {
			return fmt.Errorf("failed to store pulled %s: %w", kind, err)
		}
	}
	return nil
}
