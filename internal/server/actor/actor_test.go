package actor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/storage/sqlite"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

func setupTestRegistry(t *testing.T) (*Registry, func()) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(logger, store)

	cleanup := func() {
		_ = store.Close()
	}
	return registry, cleanup
}

// makeDeltas прогоняет последовательность мутаций через один документ
// устройства и возвращает по одной дельте на мутацию
func makeDeltas(t *testing.T, mutations []map[string]any) [][]byte {
	t.Helper()

	doc, err := document.New("")
	require.NoError(t, err)

	deltas := make([][]byte, 0, len(mutations))
	for i, fields := range mutations {
		delta, _, err := doc.Mutate(models.CollectionWallets, "w1", fields)
		require.NoError(t, err, "mutation %d", i)
		deltas = append(deltas, delta)
	}
	return deltas
}

func pushDeltas(t *testing.T, ctx context.Context, a *Actor, deltas [][]byte) {
	t.Helper()

	records := make([]*models.UpdateRecord, 0, len(deltas))
	for i, delta := range deltas {
		records = append(records, &models.UpdateRecord{
			Payload:   delta,
			Timestamp: int64(1000 + i),
			DeviceID:  "device-a",
		})
	}
	accepted, err := a.PushUpdates(ctx, records)
	require.NoError(t, err)
	require.Equal(t, len(deltas), accepted)
}

func TestRegistry_ForUser_ReturnsSameActor(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()

	a1 := registry.ForUser("alice")
	a2 := registry.ForUser("alice")
	b := registry.ForUser("bob")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
}

func TestActor_PushAssignsMonotonicCreatedAt(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash"},
		{"balance": 10.0},
		{"currency": "EUR"},
	})
	pushDeltas(t, ctx, a, deltas)

	since := int64(0)
	records, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].CreatedAt, records[i-1].CreatedAt,
			"created_at must be strictly increasing within a user")
	}
}

func TestActor_IDSequenceIsPerUser(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	alice := registry.ForUser("alice")
	bob := registry.ForUser("bob")
	pushDeltas(t, ctx, alice, makeDeltas(t, []map[string]any{{"name": "A1"}, {"name": "A2"}}))
	pushDeltas(t, ctx, bob, makeDeltas(t, []map[string]any{{"name": "B1"}}))

	since := int64(0)
	aliceLog, err := alice.GetUpdates(ctx, &since)
	require.NoError(t, err)
	bobLog, err := bob.GetUpdates(ctx, &since)
	require.NoError(t, err)

	require.Len(t, aliceLog, 2)
	require.Len(t, bobLog, 1)
	assert.Equal(t, int64(1), aliceLog[0].ID)
	assert.Equal(t, int64(2), aliceLog[1].ID)
	assert.Equal(t, int64(1), bobLog[0].ID,
		"id sequence must not leak between users, otherwise restore by original id collides")
}

func TestActor_RestartDoesNotRewindCreatedAt(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Запись с created_at далеко впереди часов моделирует рестарт
	// сервера после шага часов назад: в памяти актора счётчика уже нет
	future := time.Now().UnixMilli() + int64(time.Hour/time.Millisecond)
	_, err = store.AppendUpdate(ctx, &models.UpdateRecord{
		UserID:    "alice",
		Payload:   []byte{1},
		Timestamp: 1,
		DeviceID:  "d1",
		CreatedAt: future,
	})
	require.NoError(t, err)

	alice := NewRegistry(logger, store).ForUser("alice")
	pushDeltas(t, ctx, alice, makeDeltas(t, []map[string]any{{"name": "Cash"}}))

	cursor := future
	tail, err := alice.GetUpdates(ctx, &cursor)
	require.NoError(t, err)
	require.Len(t, tail, 1, "record pushed after restart must stay above the old cursor")
	assert.Greater(t, tail[0].CreatedAt, future)
}

func TestActor_RestartAfterCleanupSeedsFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Лог пуст (как после cleanup), но клиенты могли получить
	// created_at снапшота как bootstrap-курсор
	future := time.Now().UnixMilli() + int64(time.Hour/time.Millisecond)
	require.NoError(t, store.SaveCompiledState(ctx, &models.CompiledState{
		UserID:    "bob",
		State:     []byte{2},
		CreatedAt: future,
	}))

	bob := NewRegistry(logger, store).ForUser("bob")
	pushDeltas(t, ctx, bob, makeDeltas(t, []map[string]any{{"name": "Cash"}}))

	cursor := future
	tail, err := bob.GetUpdates(ctx, &cursor)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Greater(t, tail[0].CreatedAt, future)
}

func TestActor_CompactionFoldsBatchIntoSnapshot(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash", "balance": 100.0},
		{"name": "Everyday"},
	})
	pushDeltas(t, ctx, a, deltas)

	assert.Zero(t, a.CompactionFailures())

	// Bootstrap pull отдаёт одну синтетическую запись со снапшотом
	records, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, api.CompiledStateDeviceID, records[0].DeviceID)

	doc, err := document.Load(records[0].Payload, "")
	require.NoError(t, err)
	fields, err := doc.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Everyday", fields["name"])
	assert.Equal(t, 100.0, fields["balance"])
}

func TestActor_CompactionAcrossPushes_EquivalentToFullReplay(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash"},
		{"balance": 1.0},
		{"balance": 2.0},
		{"currency": "USD"},
	})

	// Дельты приходят несколькими push-сессиями; каждый compaction
	// докладывает в снапшот только свой батч
	pushDeltas(t, ctx, a, deltas[:1])
	pushDeltas(t, ctx, a, deltas[1:3])
	pushDeltas(t, ctx, a, deltas[3:])

	records, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	fromSnapshot, err := document.Load(records[0].Payload, "")
	require.NoError(t, err)

	replay, err := document.New("")
	require.NoError(t, err)
	for _, delta := range deltas {
		_, err := replay.Merge(delta)
		require.NoError(t, err)
	}

	snapFields, err := fromSnapshot.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	replayFields, err := replay.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, replayFields, snapFields)
}

func TestActor_DuplicatePushIsHarmless(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{{"name": "Cash", "balance": 5.0}})

	// Ретрай клиента после потерянного ответа: та же дельта дважды
	pushDeltas(t, ctx, a, deltas)
	pushDeltas(t, ctx, a, deltas)
	assert.Zero(t, a.CompactionFailures())

	records, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	doc, err := document.Load(records[0].Payload, "")
	require.NoError(t, err)
	fields, err := doc.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Cash", fields["name"])
	assert.Equal(t, 5.0, fields["balance"])
}

func TestActor_GetUpdates_NoSnapshotFallsBackToRawLog(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")

	// Пустой пользователь: ни снапшота, ни лога
	records, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Ломаем compaction битой дельтой: лог растёт, снапшота нет
	_, err = a.PushUpdates(ctx, []*models.UpdateRecord{
		{Payload: []byte("not an automerge delta"), Timestamp: 1, DeviceID: "device-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.CompactionFailures())

	records, err = a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("not an automerge delta"), records[0].Payload)
	assert.NotEqual(t, api.CompiledStateDeviceID, records[0].DeviceID)
}

func TestActor_CompactionFailureKeepsLogAndSnapshot(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{{"name": "Cash"}})
	pushDeltas(t, ctx, a, deltas)

	accepted, err := a.PushUpdates(ctx, []*models.UpdateRecord{
		{Payload: []byte("garbage"), Timestamp: 2, DeviceID: "device-b"},
	})
	require.NoError(t, err, "push must succeed even when compaction fails")
	assert.Equal(t, 1, accepted)
	assert.Equal(t, int64(1), a.CompactionFailures())

	// Битая запись осталась в логе
	since := int64(0)
	records, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Снапшот не тронут прошлым удачным раундом
	bootstrap, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, bootstrap, 1)
	assert.Equal(t, api.CompiledStateDeviceID, bootstrap[0].DeviceID)
}

func TestActor_GetUpdates_CursorIsStrict(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash"},
		{"balance": 1.0},
		{"balance": 2.0},
	})
	pushDeltas(t, ctx, a, deltas)

	since := int64(0)
	all, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	require.Len(t, all, 3)

	cursor := all[1].CreatedAt
	tail, err := a.GetUpdates(ctx, &cursor)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, all[2].ID, tail[0].ID)

	last := all[2].CreatedAt
	empty, err := a.GetUpdates(ctx, &last)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestActor_CleanupLeavesSnapshotOnly(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash", "balance": 7.0},
		{"name": "Everyday"},
	})
	pushDeltas(t, ctx, a, deltas)

	deleted, err := a.CleanupOldUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	since := int64(0)
	records, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	assert.Empty(t, records, "log is gone after cleanup")

	// Полное состояние по-прежнему восстановимо из одного снапшота
	bootstrap, err := a.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, bootstrap, 1)

	doc, err := document.Load(bootstrap[0].Payload, "")
	require.NoError(t, err)
	fields, err := doc.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Everyday", fields["name"])
	assert.Equal(t, 7.0, fields["balance"])

	size, err := a.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size.UpdatesCount)
	assert.Zero(t, size.UpdatesBytes)
	assert.Positive(t, size.CompiledStateBytes)
}

func TestActor_Size(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{{"name": "Cash"}, {"balance": 1.0}})
	pushDeltas(t, ctx, a, deltas)

	size, err := a.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size.UpdatesCount)
	assert.Positive(t, size.UpdatesBytes)
	assert.Positive(t, size.CompiledStateBytes)
}

func TestActor_BackupRoundTrip(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	alice := registry.ForUser("alice")
	deltas := makeDeltas(t, []map[string]any{
		{"name": "Cash", "balance": 100.0},
		{"name": "Everyday"},
		{"balance": 42.5},
	})
	pushDeltas(t, ctx, alice, deltas)

	var buf bytes.Buffer
	require.NoError(t, alice.Export(ctx, &buf))

	bob := registry.ForUser("bob")
	result, err := bob.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, result.UpdatesImported)
	assert.True(t, result.CompiledStateImported)

	// Лог перенесён дословно, с исходными id
	since := int64(0)
	source, err := alice.GetUpdates(ctx, &since)
	require.NoError(t, err)
	imported, err := bob.GetUpdates(ctx, &since)
	require.NoError(t, err)
	require.Len(t, imported, len(source))
	for i := range source {
		assert.Equal(t, source[i].ID, imported[i].ID)
		assert.Equal(t, source[i].Payload, imported[i].Payload)
		assert.Equal(t, source[i].DeviceID, imported[i].DeviceID)
		assert.Equal(t, source[i].Timestamp, imported[i].Timestamp)
		assert.Equal(t, source[i].CreatedAt, imported[i].CreatedAt)
	}

	// Снапшот тоже перенесён и даёт то же состояние
	bootstrap, err := bob.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, bootstrap, 1)
	doc, err := document.Load(bootstrap[0].Payload, "")
	require.NoError(t, err)
	fields, err := doc.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Everyday", fields["name"])
	assert.Equal(t, 42.5, fields["balance"])
}

func TestActor_Import_ClearsPreviousSession(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")
	old := makeDeltas(t, []map[string]any{{"name": "Old"}})
	pushDeltas(t, ctx, a, old)

	fresh := registry.ForUser("donor")
	pushDeltas(t, ctx, fresh, makeDeltas(t, []map[string]any{{"name": "New"}}))

	var buf bytes.Buffer
	require.NoError(t, fresh.Export(ctx, &buf))

	result, err := a.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatesImported)

	since := int64(0)
	records, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	require.Len(t, records, 1, "previous log must be replaced, not merged")
}

func TestActor_Import_SkipsMalformedLines(t *testing.T) {
	registry, cleanup := setupTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	a := registry.ForUser("alice")

	input := `{"type":"metadata","user_id":"donor","exported_at":1,"page_size":20}
not json at all
{"type":"update","id":1,"update":[1,2,3],"timestamp":10,"device_id":"d1","created_at":10}
{"type":"update","id":2,"update":[300],"timestamp":11,"device_id":"d1","created_at":11}
{"type":"wat"}
{"type":"end"}
`
	result, err := a.Import(ctx, bytes.NewReader([]byte(input)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatesImported, "malformed lines are skipped, valid ones kept")
	assert.False(t, result.CompiledStateImported)

	since := int64(0)
	records, err := a.GetUpdates(ctx, &since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte{1, 2, 3}, records[0].Payload)
}
