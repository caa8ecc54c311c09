package notes

import (
	"context"
	"errors"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// Calendar work runs detached from the caller: once a due-date change has
// been written locally the caller is done, and the event write proceeds on
// its own. Failures are logged and swallowed; a task is fully usable with or
// without a live calendar event. Dispatched work is not cancellable.

func (s *Service) scheduleCalendarCreate(kind models.Kind, id models.NoteID) {
	go s.calendarCreate(context.Background(), kind, id)
}

func (s *Service) calendarCreate(ctx context.Context, kind models.Kind, id models.NoteID) {
	note, err := s.local.Get(ctx, kind, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warnw("calendar create: failed to load task", "id", id, "error", err)
		}
		return
	}
	// The task may have changed since the write that triggered us.
	if note.DueDate == nil || note.CalendarEventRef != "" {
		return
	}

	ref, err := s.cal.CreateEvent(ctx, note.Content, *note.DueDate)
	if err != nil {
		s.log.Warnw("calendar create failed", "id", id, "error", err)
		return
	}
	if ref == "" {
		return
	}
	s.persistEventRef(ctx, kind, id, ref)
}

// scheduleCalendarSync reconciles the calendar after a due-date change.
// localRef is the event ref recorded locally before the update was applied;
// the remote copy's ref overrides it when one exists, so a ref written from
// another device that has not reached this cache yet is adopted instead of a
// second event being created.
func (s *Service) scheduleCalendarSync(kind models.Kind, id models.NoteID, localRef string) {
	go func() {
		ctx := context.Background()
		note, err := s.local.Get(ctx, kind, id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.log.Warnw("calendar sync: failed to load task", "id", id, "error", err)
			}
			return
		}

		ref := s.authoritativeRef(ctx, kind, id, localRef)

		switch {
		case note.DueDate != nil && ref == "":
			s.calendarCreate(ctx, kind, id)

		case note.DueDate != nil && ref != "":
			if note.CalendarEventRef != ref {
				s.persistEventRef(ctx, kind, id, ref)
			}
			if err := s.cal.UpdateEvent(ctx, ref, note.Content, *note.DueDate); err != nil {
				s.log.Warnw("calendar update failed", "id", id, "ref", ref, "error", err)
			}

		case note.DueDate == nil && ref != "":
			if err := s.cal.DeleteEvent(ctx, ref); err != nil {
				s.log.Warnw("calendar delete failed", "id", id, "ref", ref, "error", err)
			}
			s.persistEventRef(ctx, kind, id, "")
		}
	}()
}

// authoritativeRef resolves which calendar event a task owns. A non-empty ref
// on the remote copy wins; an empty one does not overrule a local ref, since
// the mirror may still trail the local write while the outbox drains. Local
// is also the fallback when the remote is unreachable, so an outage never
// stalls the calendar path.
func (s *Service) authoritativeRef(ctx context.Context, kind models.Kind, id models.NoteID, localRef string) string {
	if s.remote == nil {
		return localRef
	}
	note, err := s.remote.Get(ctx, kind, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warnw("calendar sync: remote lookup failed", "id", id, "error", err)
		}
		return localRef
	}
	if note.CalendarEventRef != "" {
		return note.CalendarEventRef
	}
	return localRef
}

// persistEventRef stores (or clears) the calendar reference on the task and
// propagates the change like any other write.
func (s *Service) persistEventRef(ctx context.Context, kind models.Kind, id models.NoteID, ref string) {
	patch := store.Patch{}
	if ref == "" {
		patch.ClearCalendarEventRef = true
	} else {
		patch.CalendarEventRef = &ref
	}
	if err := s.local.Update(ctx, kind, id, patch); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warnw("failed to persist calendar ref", "id", id, "error", err)
		}
		return
	}
	s.notify(ctx, kind)
	if note, err := s.local.Get(ctx, kind, id); err == nil {
		s.mirrorUpsert(ctx, kind, note)
	}
}
