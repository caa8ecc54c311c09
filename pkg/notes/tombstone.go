package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/notabene-app/notabene/pkg/models"
)

// tombstone is the verbatim capture of a soft-deleted note: gone from every
// collection but restorable by id. Every move in and out of this state goes
// through models.Lifecycle.Transition so an illegal move fails loudly instead
// of being silently ignored.
type tombstone struct {
	note       *models.Note
	kind       models.Kind
	state      models.Lifecycle
	capturedAt time.Time
}

// SoftDelete removes the note but keeps a tombstone for the retention
// window. The returned undo function restores the note with its original id
// and CreatedAt; after the window expires, or once consumed, it returns
// ErrUndoExpired and restores nothing.
func (s *Service) SoftDelete(ctx context.Context, kind models.Kind, id models.NoteID) (func(context.Context) error, error) {
	s.mu.Lock()
	existing, tombstoned := s.tombstones[id]
	s.mu.Unlock()
	if tombstoned {
		// Re-deleting a tombstone fails loudly and leaves it restorable.
		if _, err := existing.state.Transition(models.LifecycleTombstoned); err != nil {
			return nil, err
		}
	}

	note, err := s.local.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	state, err := models.LifecycleActive.Transition(models.LifecycleTombstoned)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tombstones[id] = &tombstone{
		note:       note.Clone(),
		kind:       kind,
		state:      state,
		capturedAt: s.now(),
	}
	s.mu.Unlock()

	if err := s.local.Delete(ctx, kind, id); err != nil {
		s.mu.Lock()
		delete(s.tombstones, id)
		s.mu.Unlock()
		return nil, err
	}
	s.notify(ctx, kind)
	s.mirrorDelete(ctx, kind, id)

	undo := func(ctx context.Context) error {
		return s.Restore(ctx, id)
	}
	return undo, nil
}

// Restore consumes the tombstone for id and re-inserts the captured note
// verbatim. Restoring an id with no live tombstone returns ErrUndoExpired.
func (s *Service) Restore(ctx context.Context, id models.NoteID) error {
	s.mu.Lock()
	ts, ok := s.tombstones[id]
	if ok && s.now().Sub(ts.capturedAt) > s.retention {
		delete(s.tombstones, id)
		ok = false
	}
	if ok {
		delete(s.tombstones, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrUndoExpired
	}
	if _, err := ts.state.Transition(models.LifecycleActive); err != nil {
		return err
	}

	if err := s.local.Create(ctx, ts.kind, ts.note); err != nil {
		return fmt.Errorf("failed to restore note: %w", err)
	}
	s.notify(ctx, ts.kind)
	s.mirrorUpsert(ctx, ts.kind, ts.note)
	return nil
}

// Run sweeps expired tombstones until ctx is cancelled. Expiry is also
// enforced lazily on Restore, so running the sweeper is about bounding
// memory, not correctness.
func (s *Service) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.tombstones {
		if s.now().Sub(ts.capturedAt) <= s.retention {
			continue
		}
		if _, err := ts.state.Transition(models.LifecycleNone); err != nil {
			s.log.Warnw("refusing to sweep tombstone", "id", id, "error", err)
			continue
		}
		delete(s.tombstones, id)
	}
}
