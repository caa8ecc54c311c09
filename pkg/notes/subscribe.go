package notes

import (
	"context"
	"fmt"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// Subscribe registers fn as a listener for one kind. fn is invoked
// immediately with the current snapshot and again after every mutation to
// the kind, always with the whole collection newest-first. The returned
// function unregisters the listener.
//
// When the remote store supports live queries, the first subscriber for a
// kind also starts a remote subscription; remote pushes replace the local
// cache for that kind and fan out to all listeners, so changes made on other
// devices arrive without polling. The subscription is stopped when the last
// listener for the kind unsubscribes.
func (s *Service) Subscribe(ctx context.Context, kind models.Kind, fn func(store.Snapshot)) (func(), error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid kind %q", kind)
	}

	s.mu.Lock()
	if s.listeners[kind] == nil {
		s.listeners[kind] = make(map[int]func(store.Snapshot))
	}
	id := s.nextID
	s.nextID++
	s.listeners[kind][id] = fn
	startRemote := s.watch != nil && s.remoteSubs[kind] == nil
	if startRemote {
		// Placeholder so a concurrent Subscribe doesn't also start one.
		s.remoteSubs[kind] = func() {}
	}
	s.mu.Unlock()

	snapshot, err := s.local.List(ctx, kind)
	if err != nil {
		s.mu.Lock()
		delete(s.listeners[kind], id)
		if startRemote {
			// Release the claim so the next subscriber starts the live query.
			delete(s.remoteSubs, kind)
		}
		s.mu.Unlock()
		return nil, err
	}
	fn(snapshot)

	if startRemote {
		cancel, err := s.watch.Subscribe(ctx, kind, func(snap store.Snapshot) {
			s.applyRemote(kind, snap)
		})
		if err != nil {
			// Local updates still flow; only cross-device pushes are lost.
			s.log.Warnw("live subscription unavailable", "kind", kind, "error", err)
			s.mu.Lock()
			delete(s.remoteSubs, kind)
			s.mu.Unlock()
		} else {
			s.mu.Lock()
			s.remoteSubs[kind] = cancel
			s.mu.Unlock()
		}
	}

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.listeners[kind], id)
		var cancel func()
		if len(s.listeners[kind]) == 0 {
			cancel = s.remoteSubs[kind]
			delete(s.remoteSubs, kind)
		}
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	return unsubscribe, nil
}

// applyRemote reflects a remote push into the local cache and on to the
// listeners. The remote snapshot wins; local notes still waiting in the
// outbox reappear once the dispatcher lands them.
func (s *Service) applyRemote(kind models.Kind, snapshot store.Snapshot) {
	ctx := context.Background()
	if err := s.local.ReplaceAll(ctx, kind, snapshot); err != nil {
		s.log.Errorw("failed to apply remote snapshot", "kind", kind, "error", err)
		return
	}
	s.fanOut(kind, snapshot)
}
