package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/HolyWalley/money-sub000/internal/models"
)

// setupTestStorage создает in-memory SQLite хранилище для тестов
func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}
	return s, cleanup
}

// createTestUser создает тестового пользователя и возвращает его ID
func createTestUser(t *testing.T, ctx context.Context, s *Storage) string {
	t.Helper()

	userID := uuid.New().String()
	err := s.CreateUser(ctx, &models.User{
		ID:           userID,
		Username:     "user_" + userID[:8],
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	return userID
}
