package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/HolyWalley/money-sub000/internal/models"
)

// AppendUpdate appends a record to the user's update log.
// Последовательность id своя у каждого пользователя; следующий id
// вычисляется и вставляется в одной транзакции.
func (s *Storage) AppendUpdate(ctx context.Context, record *models.UpdateRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM updates WHERE user_id = ?`,
		record.UserID,
	)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to assign update id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO updates (user_id, id, payload, timestamp, device_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.UserID,
		id,
		record.Payload,
		record.Timestamp,
		record.DeviceID,
		record.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}

	return id, nil
}

// InsertUpdateWithID inserts a record keeping its original id (backup import)
func (s *Storage) InsertUpdateWithID(ctx context.Context, record *models.UpdateRecord) error {
	query := `
		INSERT INTO updates (id, user_id, payload, timestamp, device_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Payload,
		record.Timestamp,
		record.DeviceID,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert update with id %d: %w", record.ID, err)
	}

	return nil
}

// GetUpdatesSince retrieves all records with created_at > since in insertion order
func (s *Storage) GetUpdatesSince(ctx context.Context, userID string, since int64) ([]*models.UpdateRecord, error) {
	query := `
		SELECT id, user_id, payload, timestamp, device_id, created_at
		FROM updates
		WHERE user_id = ? AND created_at > ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query updates since: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return s.scanUpdates(rows)
}

// GetUpdatesByIDs retrieves exactly the records with the given ids, ascending
func (s *Storage) GetUpdatesByIDs(ctx context.Context, userID string, ids []int64) ([]*models.UpdateRecord, error) {
	if len(ids) == 0 {
		return []*models.UpdateRecord{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT id, user_id, payload, timestamp, device_id, created_at
		FROM updates
		WHERE user_id = ? AND id IN (%s)
		ORDER BY id ASC
	`, placeholders)

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query updates by ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return s.scanUpdates(rows)
}

// GetUpdatesPage retrieves one page of the log ordered by id (backup export)
func (s *Storage) GetUpdatesPage(ctx context.Context, userID string, offset, limit int) ([]*models.UpdateRecord, error) {
	query := `
		SELECT id, user_id, payload, timestamp, device_id, created_at
		FROM updates
		WHERE user_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query updates page: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return s.scanUpdates(rows)
}

// MaxCreatedAt returns the largest created_at in the user's log, 0 if empty
func (s *Storage) MaxCreatedAt(ctx context.Context, userID string) (int64, error) {
	var max int64
	query := `SELECT COALESCE(MAX(created_at), 0) FROM updates WHERE user_id = ?`
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to query max created_at: %w", err)
	}
	return max, nil
}

// DeleteUserUpdates removes every record of the user unconditionally
func (s *Storage) DeleteUserUpdates(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM updates WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete updates: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// UpdatesSize reports the byte footprint and row count of the user's log
func (s *Storage) UpdatesSize(ctx context.Context, userID string) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(LENGTH(payload)), 0), COUNT(*)
		FROM updates
		WHERE user_id = ?
	`

	var bytes, count int64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&bytes, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to measure updates: %w", err)
	}

	return bytes, count, nil
}

// scanUpdates is a helper function to scan multiple records from rows
func (s *Storage) scanUpdates(rows *sql.Rows) ([]*models.UpdateRecord, error) {
	records := []*models.UpdateRecord{}

	for rows.Next() {
		record := &models.UpdateRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Payload,
			&record.Timestamp,
			&record.DeviceID,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan update: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
