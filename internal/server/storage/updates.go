package storage

import (
	"context"

	"github.com/HolyWalley/money-sub000/internal/models"
)

// UpdateStorage defines interface for the per-user append-only update log.
// Rows are immutable: the only mutation besides append is the unconditional
// retention cleanup and the backup-import wipe.
type UpdateStorage interface {
	// AppendUpdate appends a record to the user's log and returns the
	// server-assigned sequence id. record.CreatedAt must already be set.
	AppendUpdate(ctx context.Context, record *models.UpdateRecord) (int64, error)

	// InsertUpdateWithID inserts a record verbatim keeping its original id.
	// Used by backup import only.
	InsertUpdateWithID(ctx context.Context, record *models.UpdateRecord) error

	// GetUpdatesSince retrieves all records with created_at strictly greater
	// than since, in insertion order. Returns empty slice if none.
	GetUpdatesSince(ctx context.Context, userID string, since int64) ([]*models.UpdateRecord, error)

	// GetUpdatesByIDs retrieves exactly the records with the given ids,
	// in ascending id order. Missing ids are silently skipped.
	GetUpdatesByIDs(ctx context.Context, userID string, ids []int64) ([]*models.UpdateRecord, error)

	// GetUpdatesPage retrieves a page of records ordered by id, for the
	// chunked backup export.
	GetUpdatesPage(ctx context.Context, userID string, offset, limit int) ([]*models.UpdateRecord, error)

	// MaxCreatedAt returns the largest created_at in the user's log,
	// 0 if the log is empty.
	MaxCreatedAt(ctx context.Context, userID string) (int64, error)

	// DeleteUserUpdates removes every record of the user unconditionally.
	// Returns the number of deleted records.
	DeleteUserUpdates(ctx context.Context, userID string) (int64, error)

	// UpdatesSize reports the byte footprint and row count of the user's log
	UpdatesSize(ctx context.Context, userID string) (bytes int64, count int64, err error)
}

// CompiledStateStorage defines interface for the per-user compiled snapshot.
// At most one snapshot exists per user at a time.
type CompiledStateStorage interface {
	// GetCompiledState retrieves the user's snapshot.
	// Returns ErrCompiledStateNotFound if none exists.
	GetCompiledState(ctx context.Context, userID string) (*models.CompiledState, error)

	// SaveCompiledState creates or replaces the user's snapshot
	SaveCompiledState(ctx context.Context, state *models.CompiledState) error

	// DeleteCompiledState removes the user's snapshot if present
	DeleteCompiledState(ctx context.Context, userID string) error

	// CompiledStateSize reports the byte size of the snapshot, 0 if none
	CompiledStateSize(ctx context.Context, userID string) (int64, error)
}
