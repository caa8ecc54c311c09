// Package local provides the on-device store backing offline-first
// operation.
//
// Each record kind lives in its own SQLite table, managed through GORM. All
// operations are synchronous and never fail for data-shape reasons: column
// scanners for flexible fields (tags) recover from malformed persisted values
// by dropping them instead of failing the row, so a corrupted entry degrades
// to an empty field rather than an error.
//
// Beyond the four record collections the local database holds two namespaced
// side tables that survive clearing the collections themselves: the per-user
// migration completion flags and the remote-mirror outbox (owned by
// [github.com/notabene-app/notabene/pkg/store/outbox]).
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/store"
)

// Store implements store.Store on an embedded SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle so the outbox can share the same database
// file and transaction machinery.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// migrationFlag records that the one-time push of local data to the remote
// store completed for a user. It deliberately lives outside the four record
// tables so that wiping the collections does not re-trigger migration.
type migrationFlag struct {
	UserID      string    `gorm:"primaryKey"`
	CompletedAt time.Time `gorm:"not null"`
}

func (migrationFlag) TableName() string { return "migration_flags" }

// Migrate creates the four collection tables and the migration flag table.
func (s *Store) Migrate(ctx context.Context) error {
	for _, kind := range models.Kinds() {
		if err := s.db.WithContext(ctx).Table(kind.Table()).AutoMigrate(&models.Note{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", kind.Table(), err)
		}
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&migrationFlag{}); err != nil {
		return fmt.Errorf("failed to migrate migration_flags: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) List(ctx context.Context, kind models.Kind) ([]*models.Note, error) {
	var notes []*models.Note
	err := s.db.WithContext(ctx).
		Table(kind.Table()).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Table(), err)
	}
	for _, n := range notes {
		n.Kind = kind
	}
	return notes, nil
}

func (s *Store) Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).
		Table(kind.Table()).
		First(&note, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s record: %w", kind.Table(), err)
	}
	note.Kind = kind
	return &note, nil
}

// Create persists a note. Re-creating an existing id overwrites the stored
// row, which keeps undo re-inserts and replayed mirror writes idempotent.
func (s *Store) Create(ctx context.Context, kind models.Kind, note *models.Note) error {
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	note.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Table(kind.Table()).Save(note).Error
	if err != nil {
		return fmt.Errorf("failed to create %s record: %w", kind.Table(), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, kind models.Kind, id models.NoteID, patch store.Patch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var note models.Note
		if err := tx.Table(kind.Table()).First(&note, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return fmt.Errorf("failed to load %s record: %w", kind.Table(), err)
		}
		patch.Apply(&note)
		note.UpdatedAt = time.Now().UTC()
		// Save writes every column, so cleared optional fields (due date,
		// calendar ref) are persisted as NULL/empty rather than skipped.
		if err := tx.Table(kind.Table()).Save(&note).Error; err != nil {
			return fmt.Errorf("failed to update %s record: %w", kind.Table(), err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	err := s.db.WithContext(ctx).
		Table(kind.Table()).
		Delete(&models.Note{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind.Table(), err)
	}
	return nil
}

// ReplaceAll overwrites the kind's whole collection with the given notes.
// Used by the one-shot pull that seeds the local cache from the remote store
// after session start.
func (s *Store) ReplaceAll(ctx context.Context, kind models.Kind, notes []*models.Note) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(kind.Table()).Where("1 = 1").Delete(&models.Note{}).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", kind.Table(), err)
		}
		for _, note := range notes {
			if err := tx.Table(kind.Table()).Save(note).Error; err != nil {
				return fmt.Errorf("failed to insert %s record: %w", kind.Table(), err)
			}
		}
		return nil
	})
}

// MigrationDone reports whether the one-time migration has completed for the
// user.
func (s *Store) MigrationDone(ctx context.Context, userID string) (bool, error) {
	var flag migrationFlag
	err := s.db.WithContext(ctx).First(&flag, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read migration flag: %w", err)
	}
	return true, nil
}

// SetMigrationDone durably records migration completion for the user.
func (s *Store) SetMigrationDone(ctx context.Context, userID string) error {
	flag := migrationFlag{UserID: userID, CompletedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(&flag).Error; err != nil {
		return fmt.Errorf("failed to set migration flag: %w", err)
	}
	return nil
}
