// Package seen persists the identifiers of events that have already been
// delivered. The store is an append-only SQLite table: identifiers are never
// updated or expired, and re-inserting an existing identifier is a no-op.
package seen

import (
	"context"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is one delivered identifier. FirstSeenAt is set on insertion and
// never updated.
type Record struct {
	ID          string    `gorm:"type:text;primaryKey"`
	FirstSeenAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for Record.
func (Record) TableName() string { return "seen" }

// Store wraps the SQLite database holding delivered identifiers.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the store at path, applies PRAGMAs and creates the
// schema if absent.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Exists reports whether the identifier has already been delivered.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertAll records the identifiers as delivered. Inserting an identifier
// that is already present is a silent no-op, never an error.
func (s *Store) InsertAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, Record{ID: id, FirstSeenAt: now})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&recs).Error
}

// Count returns the number of stored identifiers.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Record{}).Count(&n).Error
	return n, err
}
