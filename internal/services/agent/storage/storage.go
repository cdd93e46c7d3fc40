// Package storage defines persistence contracts for the agent's local state.
package storage

import (
	"context"
	"time"

	"github.com/daybreak-app/daybreak/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// PreferenceRecord is a persisted preference document for one identity.
type PreferenceRecord struct {
	OwnerID   string
	Document  []byte
	UpdatedAt time.Time
}

// PreferenceStore persists serialized preference documents keyed by identity id.
type PreferenceStore interface {
	PutPreferences(ctx context.Context, record PreferenceRecord) error
	GetPreferences(ctx context.Context, ownerID string) (PreferenceRecord, error)
	DeletePreferences(ctx context.Context, ownerID string) error
}
