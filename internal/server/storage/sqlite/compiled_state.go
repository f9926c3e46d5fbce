package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/storage"
)

// GetCompiledState retrieves the user's compiled snapshot
// Returns ErrCompiledStateNotFound if none exists
func (s *Storage) GetCompiledState(ctx context.Context, userID string) (*models.CompiledState, error) {
	query := `
		SELECT user_id, state, last_update_timestamp, last_update_id, created_at
		FROM compiled_state
		WHERE user_id = ?
	`

	state := &models.CompiledState{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID,
		&state.State,
		&state.LastUpdateTimestamp,
		&state.LastUpdateID,
		&state.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCompiledStateNotFound
		}
		return nil, fmt.Errorf("failed to get compiled state: %w", err)
	}

	return state, nil
}

// SaveCompiledState creates or replaces the user's snapshot.
// The PRIMARY KEY on user_id keeps at most one row per user.
func (s *Storage) SaveCompiledState(ctx context.Context, state *models.CompiledState) error {
	query := `
		INSERT OR REPLACE INTO compiled_state
			(user_id, state, last_update_timestamp, last_update_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		state.UserID,
		state.State,
		state.LastUpdateTimestamp,
		state.LastUpdateID,
		state.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save compiled state: %w", err)
	}

	return nil
}

// DeleteCompiledState removes the user's snapshot if present
func (s *Storage) DeleteCompiledState(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM compiled_state WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete compiled state: %w", err)
	}
	return nil
}

// CompiledStateSize reports the byte size of the snapshot, 0 if none
func (s *Storage) CompiledStateSize(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(LENGTH(state)), 0)
		FROM compiled_state
		WHERE user_id = ?
	`

	var bytes int64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&bytes); err != nil {
		return 0, fmt.Errorf("failed to measure compiled state: %w", err)
	}

	return bytes, nil
}
