package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// До первого сохранения состояния нет
	state, err := s.GetDocumentState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, s.SaveDocumentState(ctx, []byte("doc-v1")))
	require.NoError(t, s.SaveDocumentState(ctx, []byte("doc-v2")))

	state, err = s.GetDocumentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc-v2"), state)
}

func TestPendingQueue_OrderAndAck(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	seq1, err := s.EnqueuePending(ctx, []byte("delta-1"), 100)
	require.NoError(t, err)
	seq2, err := s.EnqueuePending(ctx, []byte("delta-2"), 200)
	require.NoError(t, err)
	seq3, err := s.EnqueuePending(ctx, []byte("delta-3"), 300)
	require.NoError(t, err)
	assert.Less(t, seq1, seq2)
	assert.Less(t, seq2, seq3)

	pending, err := s.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []byte("delta-1"), pending[0].Delta)
	assert.Equal(t, []byte("delta-3"), pending[2].Delta)

	// Подтверждение push удаляет только отправленный префикс
	require.NoError(t, s.DeletePendingUpTo(ctx, seq2))

	pending, err = s.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []byte("delta-3"), pending[0].Delta)
	assert.Equal(t, seq3, pending[0].Seq)
}

func TestSyncCursor(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// До первой синхронизации курсора нет (bootstrap)
	cursor, err := s.GetSyncCursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	require.NoError(t, s.SaveSyncCursor(ctx, 12345))

	cursor, err = s.GetSyncCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, int64(12345), *cursor)

	// Нулевой курсор отличим от отсутствующего
	require.NoError(t, s.SaveSyncCursor(ctx, 0))
	cursor, err = s.GetSyncCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Zero(t, *cursor)
}

func TestDeviceID_StableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 32) // 16 байт в hex

	second, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResetDocument(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.SaveDocumentState(ctx, []byte("doc")))
	_, err := s.EnqueuePending(ctx, []byte("delta"), 100)
	require.NoError(t, err)
	require.NoError(t, s.SaveSyncCursor(ctx, 5))
	deviceID, err := s.DeviceID(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ResetDocument(ctx))

	state, err := s.GetDocumentState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	pending, err := s.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cursor, err := s.GetSyncCursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	// Идентичность устройства переживает reset
	afterReset, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, afterReset)
}
