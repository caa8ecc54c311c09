// Package outbox makes remote mirroring durable.
//
// Every local mutation enqueues an entry in an outbox table living in the
// same SQLite database as the record collections. A background dispatcher
// replays entries against the remote store in insertion order, retrying with
// exponential backoff until each is acknowledged. A mutation therefore
// survives the process dying before its mirror write landed, and a stretch of
// offline operation simply accumulates entries that drain when connectivity
// returns.
//
// Entries are strictly ordered: a failing entry blocks the queue (and backs
// off) rather than letting later entries overtake it. This is what guarantees
// a record's delete can never reach the remote store before its create, and
// that the two halves of a cross-kind move land in the safe order
// (create-target first, delete-source only after the create is acknowledged).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// Op is the kind of remote operation an entry replays.
type Op string

const (
	// OpUpsert mirrors a create or update. The payload carries the full note
	// snapshot; replaying an upsert twice is harmless.
	OpUpsert Op = "upsert"
	// OpDelete mirrors a hard delete.
	OpDelete Op = "delete"
	// OpMove mirrors a cross-kind conversion: create the target record, then
	// delete the source record, with the delete gated on the create having
	// been acknowledged.
	OpMove Op = "move"
)

// Entry is one pending remote operation.
type Entry struct {
	ID     uint          `gorm:"primaryKey;autoIncrement"`
	Op     Op            `gorm:"not null"`
	Kind   models.Kind   `gorm:"not null"`
	NoteID models.NoteID `gorm:"type:uuid;not null"`

	// Move bookkeeping: the source record to delete once the target exists
	// remotely. TargetCreated flips after the create half is acknowledged so
	// a retry does not re-run it.
	SourceKind    models.Kind
	SourceID      models.NoteID `gorm:"type:uuid"`
	TargetCreated bool

	// Payload is the JSON note snapshot for upsert and move entries.
	Payload []byte

	Attempts    int
	NextAttempt time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (Entry) TableName() string { return "remote_outbox" }

// Dispatcher owns the outbox table and drains it against the remote store.
type Dispatcher struct {
	db     *gorm.DB
	remote store.Store
	log    *zap.SugaredLogger

	pollInterval time.Duration
	baseBackoff  time.Duration
	maxBackoff   time.Duration

	kick chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval overrides how often the dispatcher looks for due entries
// absent an explicit kick.
func WithPollInterval(d time.Duration) Option {
	return func(o *Dispatcher) { o.pollInterval = d }
}

// WithBackoff overrides the retry backoff bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(o *Dispatcher) { o.baseBackoff = base; o.maxBackoff = max }
}

// New creates a dispatcher draining into remote. The gorm handle is shared
// with the local store so outbox writes participate in the same database.
func New(db *gorm.DB, remote store.Store, log *zap.SugaredLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		db:           db,
		remote:       remote,
		log:          log,
		pollInterval: time.Second,
		baseBackoff:  500 * time.Millisecond,
		maxBackoff:   5 * time.Minute,
		kick:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Migrate creates the outbox table.
func (d *Dispatcher) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate remote_outbox: %w", err)
	}
	return nil
}

// EnqueueUpsert records that the note's current state must reach the remote
// collection for kind.
func (d *Dispatcher) EnqueueUpsert(ctx context.Context, kind models.Kind, note *models.Note) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}
	return d.enqueue(ctx, &Entry{
		Op:      OpUpsert,
		Kind:    kind,
		NoteID:  note.ID,
		Payload: payload,
	})
}

// EnqueueDelete records that the remote record must be removed.
func (d *Dispatcher) EnqueueDelete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	return d.enqueue(ctx, &Entry{
		Op:     OpDelete,
		Kind:   kind,
		NoteID: id,
	})
}

// EnqueueMove records a conversion: create target remotely, then delete the
// source record.
func (d *Dispatcher) EnqueueMove(ctx context.Context, targetKind models.Kind, target *models.Note, sourceKind models.Kind, sourceID models.NoteID) error {
	payload, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}
	return d.enqueue(ctx, &Entry{
		Op:         OpMove,
		Kind:       targetKind,
		NoteID:     target.ID,
		SourceKind: sourceKind,
		SourceID:   sourceID,
		Payload:    payload,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, e *Entry) error {
	e.CreatedAt = time.Now().UTC()
	e.NextAttempt = e.CreatedAt
	if err := d.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	// Wake the dispatcher without blocking the mutating caller.
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of undispatched entries.
func (d *Dispatcher) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&Entry{}).Count(&n).Error
	return n, err
}

// Run drains the outbox until ctx is cancelled. Intended to be started as a
// goroutine alongside the facade.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		case <-ticker.C:
		}
	}
}

// Flush synchronously attempts every pending entry once, regardless of its
// backoff schedule. Used by the CLI sync command and by tests.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var entries []Entry
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return fmt.Errorf("failed to load outbox: %w", err)
	}
	for i := range entries {
		if err := d.dispatch(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// drain processes due entries in order, stopping at the first failure so
// per-record ordering is preserved.
func (d *Dispatcher) drain(ctx context.Context) {
	now := time.Now().UTC()
	var entries []Entry
	err := d.db.WithContext(ctx).
		Where("next_attempt <= ?", now).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		d.log.Warnw("outbox scan failed", "error", err)
		return
	}
	for i := range entries {
		if ctx.Err() != nil {
			return
		}
		if err := d.dispatch(ctx, &entries[i]); err != nil {
			return
		}
	}
}

// dispatch attempts one entry. On success the entry is removed; on failure
// its backoff is advanced and the error returned so the caller stops the
// batch.
func (d *Dispatcher) dispatch(ctx context.Context, e *Entry) error {
	err := d.apply(ctx, e)
	if err == nil {
		if delErr := d.db.WithContext(ctx).Delete(e).Error; delErr != nil {
			d.log.Warnw("failed to ack outbox entry", "entry", e.ID, "error", delErr)
			return delErr
		}
		return nil
	}

	e.Attempts++
	backoff := d.baseBackoff << uint(min(e.Attempts-1, 30))
	if backoff > d.maxBackoff || backoff <= 0 {
		backoff = d.maxBackoff
	}
	e.NextAttempt = time.Now().UTC().Add(backoff)
	if saveErr := d.db.WithContext(ctx).Save(e).Error; saveErr != nil {
		d.log.Warnw("failed to reschedule outbox entry", "entry", e.ID, "error", saveErr)
	}
	d.log.Warnw("remote mirror attempt failed",
		"entry", e.ID, "op", e.Op, "kind", e.Kind, "note", e.NoteID,
		"attempts", e.Attempts, "retry_in", backoff, "error", err)
	return err
}

func (d *Dispatcher) apply(ctx context.Context, e *Entry) error {
	switch e.Op {
	case OpUpsert:
		note, err := e.decode()
		if err != nil {
			return err
		}
		return d.remote.Create(ctx, e.Kind, note)
	case OpDelete:
		return d.remote.Delete(ctx, e.Kind, e.NoteID)
	case OpMove:
		if !e.TargetCreated {
			note, err := e.decode()
			if err != nil {
				return err
			}
			if err := d.remote.Create(ctx, e.Kind, note); err != nil {
				return err
			}
			e.TargetCreated = true
			if err := d.db.WithContext(ctx).Save(e).Error; err != nil {
				d.log.Warnw("failed to record move progress", "entry", e.ID, "error", err)
			}
		}
		return d.remote.Delete(ctx, e.SourceKind, e.SourceID)
	default:
		return fmt.Errorf("unknown outbox op %q", e.Op)
	}
}

func (e *Entry) decode() (*models.Note, error) {
	var note models.Note
	if err := json.Unmarshal(e.Payload, &note); err != nil {
		return nil, fmt.Errorf("failed to decode outbox payload: %w", err)
	}
	return &note, nil
}
