package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestStorage создает временное BoltDB хранилище для тестов
func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "client.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}
	return s, cleanup
}
