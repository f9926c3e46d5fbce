package storage

import "context"

// PendingDelta локальная дельта, ещё не подтверждённая сервером.
// Seq задаёт порядок постановки в очередь.
type PendingDelta struct {
	Delta     []byte `json:"delta"`
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp"` // wall-clock создания, unix ms
}

// DocumentStorage defines interface for the replicated document state on client:
// полное состояние документа, очередь неотправленных дельт и курсор синхронизации.
type DocumentStorage interface {
	// SaveDocumentState persists the full document state (document.Save output)
	SaveDocumentState(ctx context.Context, state []byte) error

	// GetDocumentState returns the persisted document state.
	// Returns nil state if the document has never been saved.
	GetDocumentState(ctx context.Context) ([]byte, error)

	// EnqueuePending appends a delta to the outbound queue
	EnqueuePending(ctx context.Context, delta []byte, timestamp int64) (uint64, error)

	// GetPending returns queued deltas in enqueue order
	GetPending(ctx context.Context) ([]PendingDelta, error)

	// DeletePendingUpTo removes queued deltas with seq <= upTo
	// (called after the server acknowledged a push)
	DeletePendingUpTo(ctx context.Context, upTo uint64) error

	// SaveSyncCursor persists the server created_at cursor
	SaveSyncCursor(ctx context.Context, cursor int64) error

	// GetSyncCursor returns the persisted cursor.
	// Returns nil if no sync has been performed yet (bootstrap case).
	GetSyncCursor(ctx context.Context) (*int64, error)

	// DeviceID returns a stable random device identifier,
	// generating and persisting it on first call
	DeviceID(ctx context.Context) (string, error)

	// ResetDocument drops document state, pending queue and sync cursor.
	// Used before re-bootstrapping a replica from the server.
	ResetDocument(ctx context.Context) error
}

// RowChange одна мутация строки проекции в составе батча ApplyRows
type RowChange struct {
	Fields     map[string]any
	Collection string
	EntityID   string
	Delete     bool
}

// ProjectionStorage defines interface for materialized query rows.
// Проекция полностью выводима из документа и пересобирается при bootstrap.
type ProjectionStorage interface {
	// ApplyRows applies a whole change set in a single storage transaction:
	// либо видны все строки батча, либо ни одной
	ApplyRows(ctx context.Context, changes []RowChange) error

	// PutRow stores generic entity fields for a collection row
	PutRow(ctx context.Context, collection, entityID string, fields map[string]any) error

	// DeleteRow removes a projection row; missing row is not an error
	DeleteRow(ctx context.Context, collection, entityID string) error

	// GetRow returns fields of a single row
	// Returns ErrRowNotFound if row doesn't exist
	GetRow(ctx context.Context, collection, entityID string) (map[string]any, error)

	// ListRows returns all rows of a collection as map[entityID]fields
	ListRows(ctx context.Context, collection string) (map[string]map[string]any, error)

	// ClearProjection drops all projection rows
	ClearProjection(ctx context.Context) error
}
