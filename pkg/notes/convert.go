package notes

import (
	"context"
	"fmt"

	"github.com/notabene-app/notabene/pkg/models"
)

// Convert moves a note's content into a different collection. The target
// note is a fresh record: new id, new CreatedAt, content copied from the
// source, everything else reset to the target kind's defaults. The source is
// hard-deleted, skipping the tombstone.
//
// The target is created before the source is deleted, locally and (via a
// single move entry in the outbox) remotely. An interruption between the two
// steps leaves both records visible until the next call; it never loses the
// content.
func (s *Service) Convert(ctx context.Context, targetKind models.Kind, id models.NoteID, sourceKind models.Kind) (*models.Note, error) {
	if !targetKind.Valid() {
		return nil, fmt.Errorf("invalid kind %q", targetKind)
	}
	if targetKind == sourceKind {
		return nil, fmt.Errorf("cannot convert %s note to its own kind", sourceKind)
	}

	source, err := s.local.Get(ctx, sourceKind, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	target := &models.Note{
		ID:        models.NewNoteID(),
		Kind:      targetKind,
		Content:   source.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if targetKind == models.KindTask {
		target.Priority = models.PriorityMedium
	}

	if err := s.local.Create(ctx, targetKind, target); err != nil {
		return nil, fmt.Errorf("failed to create %s note: %w", targetKind, err)
	}
	if err := s.local.Delete(ctx, sourceKind, id); err != nil {
		return nil, fmt.Errorf("failed to delete source %s note: %w", sourceKind, err)
	}

	s.mu.Lock()
	delete(s.tombstones, id)
	s.mu.Unlock()

	s.notify(ctx, targetKind)
	s.notify(ctx, sourceKind)

	if s.outbox != nil {
		if err := s.outbox.EnqueueMove(ctx, targetKind, target, sourceKind, id); err != nil {
			s.log.Errorw("failed to queue remote move",
				"source_kind", sourceKind, "target_kind", targetKind, "id", id, "error", err)
		}
	}
	return target, nil
}
