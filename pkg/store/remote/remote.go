// Package remote provides the cloud store adapter on SurrealDB.
//
// Collections are namespaced per authenticated user: each user gets their own
// SurrealDB namespace/database pair, and within it the same four tables the
// local store keeps. The connection speaks CBOR over WebSocket using the
// surrealcbor codec, which is what makes time.Time and record ids round-trip
// in the format SurrealDB expects.
//
// Create is an id-keyed upsert (UPSERT $id CONTENT ...). That choice is
// load-bearing: replayed outbox entries and restarted migrations re-push
// records they already pushed, and the upsert collapses those replays into
// the single record the id names instead of accumulating duplicates.
//
// Subscribe is built on SurrealDB live queries. The subscriber receives the
// current snapshot immediately and a refreshed snapshot after every remote
// change to the collection, newest-first, until cancelled.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
	"go.uber.org/zap"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// Store implements store.WatchStore against SurrealDB.
type Store struct {
	db  *surrealdb.DB
	log *zap.SugaredLogger
}

// Config carries the connection settings for one user's remote session.
type Config struct {
	URL       string // WebSocket endpoint, e.g. ws://localhost:8000/rpc
	Namespace string
	Database  string // per-user database name
	Username  string
	Password  string
}

// Connect dials SurrealDB and scopes the session to the user's namespace and
// database.
func Connect(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SurrealDB URL: %w", err)
	}

	conf := connection.NewConfig(u)

	// The surrealcbor codec is required for correct time.Time and RecordID
	// marshaling; the default codec produces datetimes SurrealDB rejects.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// remoteNote is the wire shape of a note. The id travels as a SurrealDB
// RecordID whose table encodes the kind.
type remoteNote struct {
	ID               surrealdb_models.RecordID `json:"id"`
	Content          string                    `json:"content"`
	Tags             []string                  `json:"tags,omitempty"`
	Completed        bool                      `json:"completed"`
	Priority         models.Priority           `json:"priority,omitempty"`
	DueDate          *time.Time                `json:"due_date,omitempty"`
	CalendarEventRef string                    `json:"calendar_event_ref,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func toWire(kind models.Kind, note *models.Note) remoteNote {
	return remoteNote{
		ID:               note.ID.RecordID(kind),
		Content:          note.Content,
		Tags:             note.Tags,
		Completed:        note.Completed,
		Priority:         note.Priority,
		DueDate:          note.DueDate,
		CalendarEventRef: note.CalendarEventRef,
		CreatedAt:        note.CreatedAt,
		UpdatedAt:        note.UpdatedAt,
	}
}

func fromWire(kind models.Kind, rn *remoteNote) (*models.Note, error) {
	idStr, ok := rn.ID.ID.(string)
	if !ok {
		idStr = fmt.Sprint(rn.ID.ID)
	}
	id, err := models.ParseNoteID(idStr)
	if err != nil {
		return nil, fmt.Errorf("remote record has non-UUID id %q: %w", idStr, err)
	}
	return &models.Note{
		ID:               id,
		Kind:             kind,
		Content:          rn.Content,
		Tags:             rn.Tags,
		Completed:        rn.Completed,
		Priority:         rn.Priority,
		DueDate:          rn.DueDate,
		CalendarEventRef: rn.CalendarEventRef,
		CreatedAt:        rn.CreatedAt,
		UpdatedAt:        rn.UpdatedAt,
	}, nil
}

// Migrate is a no-op: SurrealDB creates tables on first insert.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// isNotFound recognizes SurrealDB's empty-result errors so callers can treat
// missing records uniformly.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

func (s *Store) List(ctx context.Context, kind models.Kind) ([]*models.Note, error) {
	query := "SELECT * FROM type::table($tb) ORDER BY created_at DESC"
	params := map[string]any{"tb": kind.Table()}

	result, err := surrealdb.Query[[]remoteNote](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Table(), err)
	}

	var notes []*models.Note
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			note, err := fromWire(kind, &(*result)[0].Result[i])
			if err != nil {
				// Records that don't parse are skipped, not fatal.
				s.log.Warnw("skipping malformed remote record", "kind", kind, "error", err)
				continue
			}
			notes = append(notes, note)
		}
	}
	return notes, nil
}

func (s *Store) Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error) {
	rid := id.RecordID(kind)
	rn, err := surrealdb.Select[remoteNote](ctx, s.db, rid)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s record: %w", kind.Table(), err)
	}
	if rn == nil {
		return nil, store.ErrNotFound
	}
	return fromWire(kind, rn)
}

// Create upserts the record under its client-generated id.
func (s *Store) Create(ctx context.Context, kind models.Kind, note *models.Note) error {
	query := "UPSERT $id CONTENT $note"
	params := map[string]any{
		"id":   note.ID.RecordID(kind),
		"note": toWire(kind, note),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to create %s record: %w", kind.Table(), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, kind models.Kind, id models.NoteID, patch store.Patch) error {
	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	patch.Apply(current)
	current.UpdatedAt = time.Now().UTC()

	rid := id.RecordID(kind)
	if _, err := surrealdb.Update[remoteNote](ctx, s.db, rid, toWire(kind, current)); err != nil {
		return fmt.Errorf("failed to update %s record: %w", kind.Table(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	rid := id.RecordID(kind)
	if _, err := surrealdb.Delete[remoteNote](ctx, s.db, rid); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s record: %w", kind.Table(), err)
	}
	return nil
}

// Subscribe starts a live query on the kind's table. fn receives the current
// snapshot immediately, then a refreshed snapshot after every change pushed
// by SurrealDB, until the returned cancel function is called or ctx ends.
func (s *Store) Subscribe(ctx context.Context, kind models.Kind, fn func(store.Snapshot)) (func(), error) {
	liveID, err := surrealdb.Live(ctx, s.db, surrealdb_models.Table(kind.Table()), false)
	if err != nil {
		return nil, fmt.Errorf("failed to start live query: %w", err)
	}

	notifications, err := s.db.LiveNotifications(liveID.String())
	if err != nil {
		_ = surrealdb.Kill(ctx, s.db, liveID.String())
		return nil, fmt.Errorf("failed to open live notification channel: %w", err)
	}

	snapshot, err := s.List(ctx, kind)
	if err != nil {
		_ = surrealdb.Kill(ctx, s.db, liveID.String())
		return nil, err
	}
	fn(snapshot)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-notifications:
				if !ok {
					return
				}
				// The notification payload identifies one record; the
				// contract hands subscribers whole ordered snapshots, so
				// re-list instead of patching incrementally.
				snapshot, err := s.List(ctx, kind)
				if err != nil {
					s.log.Warnw("live refresh failed", "kind", kind, "error", err)
					continue
				}
				fn(snapshot)
			}
		}
	}()

	cancel := func() {
		close(done)
		if err := surrealdb.Kill(context.Background(), s.db, liveID.String()); err != nil {
			s.log.Warnw("failed to kill live query", "kind", kind, "error", err)
		}
	}
	return cancel, nil
}
