// Package sqlite implements agent persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/daybreak-app/daybreak/internal/platform/storage/sqlitemigrate"
	"github.com/daybreak-app/daybreak/internal/services/agent/storage"
	"github.com/daybreak-app/daybreak/internal/services/agent/storage/sqlite/migrations"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements agent persistence over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the agent SQLite store and applies bundled migrations.
//
// This keeps startup and schema evolution in one place, instead of requiring
// callers to coordinate migrations independently.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutPreferences stores the serialized preference document for an owner.
func (s *Store) PutPreferences(ctx context.Context, record storage.PreferenceRecord) error {
	if strings.TrimSpace(record.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO preferences (owner_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at`,
		record.OwnerID, string(record.Document), toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put preferences: %w", err)
	}
	return nil
}

// GetPreferences loads the serialized preference document for an owner.
func (s *Store) GetPreferences(ctx context.Context, ownerID string) (storage.PreferenceRecord, error) {
	var document string
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT document, updated_at FROM preferences WHERE owner_id = ?", ownerID,
	).Scan(&document, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PreferenceRecord{}, storage.ErrNotFound
		}
		return storage.PreferenceRecord{}, fmt.Errorf("get preferences: %w", err)
	}
	return storage.PreferenceRecord{
		OwnerID:   ownerID,
		Document:  []byte(document),
		UpdatedAt: fromMillis(updatedAt),
	}, nil
}

// DeletePreferences removes the stored document for an owner.
func (s *Store) DeletePreferences(ctx context.Context, ownerID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM preferences WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}
