package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/actor"
	"github.com/HolyWalley/money-sub000/internal/server/storage/sqlite"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// setupTestLogger создает логгер, не пишущий в вывод тестов
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupRegistry создает реестр акторов над in-memory SQLite
func setupRegistry(t *testing.T) (*actor.Registry, func()) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	registry := actor.NewRegistry(setupTestLogger(), store)
	return registry, func() { _ = store.Close() }
}

// authedRequest создает запрос с user_id в контексте, как после AuthMiddleware
func authedRequest(method, target string, body io.Reader, userID string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(req.Context(), UserIDKey, userID)
	return req.WithContext(ctx)
}

// walletDelta производит настоящую дельту документа для тестов
func walletDelta(t *testing.T, fields map[string]any) []byte {
	t.Helper()

	doc, err := document.New("")
	require.NoError(t, err)
	delta, _, err := doc.Mutate(models.CollectionWallets, "w1", fields)
	require.NoError(t, err)
	return delta
}

func pushBody(t *testing.T, deltas ...[]byte) *bytes.Buffer {
	t.Helper()

	req := api.PushRequest{}
	for _, delta := range deltas {
		req.Updates = append(req.Updates, api.Update{
			Update:    delta,
			DeviceID:  "device-a",
			Timestamp: 1000,
		})
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestSyncHandler_PushThenBootstrapPull(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()
	handler := NewSyncHandler(setupTestLogger(), registry)

	delta := walletDelta(t, map[string]any{"name": "Cash", "balance": 100.0})

	w := httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodPost, "/api/v1/updates", pushBody(t, delta), "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var pushResp api.PushResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pushResp))
	assert.Equal(t, 1, pushResp.Accepted)

	// Bootstrap pull без since: одна синтетическая запись со снапшотом
	w = httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodGet, "/api/v1/updates", nil, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var pullResp api.PullResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pullResp))
	require.Len(t, pullResp.Updates, 1)
	assert.Equal(t, api.CompiledStateDeviceID, pullResp.Updates[0].DeviceID)

	doc, err := document.Load(pullResp.Updates[0].Update, "")
	require.NoError(t, err)
	fields, err := doc.Entity(models.CollectionWallets, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Cash", fields["name"])
}

func TestSyncHandler_CursorPull(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()
	handler := NewSyncHandler(setupTestLogger(), registry)

	delta1 := walletDelta(t, map[string]any{"name": "Cash"})
	delta2 := walletDelta(t, map[string]any{"name": "Bank"})

	w := httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodPost, "/api/v1/updates", pushBody(t, delta1, delta2), "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	// since=0 возвращает весь лог в порядке вставки
	w = httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodGet, "/api/v1/updates?since=0", nil, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var pullResp api.PullResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pullResp))
	require.Len(t, pullResp.Updates, 2)
	assert.Equal(t, []byte(delta1), pullResp.Updates[0].Update)
	assert.Equal(t, []byte(delta2), pullResp.Updates[1].Update)

	// Курсор после первой записи отсекает её
	cursor := pullResp.Updates[0].CreatedAt
	w = httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodGet,
		"/api/v1/updates?since="+strconv.FormatInt(cursor, 10), nil, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	pullResp = api.PullResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pullResp))
	require.Len(t, pullResp.Updates, 1)
	assert.Equal(t, []byte(delta2), pullResp.Updates[0].Update)
}

func TestSyncHandler_Errors(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()
	handler := NewSyncHandler(setupTestLogger(), registry)

	tests := []struct {
		name     string
		request  *http.Request
		wantCode int
	}{
		{
			name:     "no user in context",
			request:  httptest.NewRequest(http.MethodGet, "/api/v1/updates", nil),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid since parameter",
			request:  authedRequest(http.MethodGet, "/api/v1/updates?since=abc", nil, "user-1"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed push body",
			request:  authedRequest(http.MethodPost, "/api/v1/updates", bytes.NewBufferString("{"), "user-1"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "empty update payload",
			request: authedRequest(http.MethodPost, "/api/v1/updates",
				bytes.NewBufferString(`{"updates":[{"update":"","device_id":"d","timestamp":1}]}`), "user-1"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "method not allowed",
			request:  authedRequest(http.MethodDelete, "/api/v1/updates", nil, "user-1"),
			wantCode: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.HandleUpdates(w, tt.request)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestSyncHandler_UserIsolation(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()
	handler := NewSyncHandler(setupTestLogger(), registry)

	delta := walletDelta(t, map[string]any{"name": "Cash"})
	w := httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodPost, "/api/v1/updates", pushBody(t, delta), "alice"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.HandleUpdates(w, authedRequest(http.MethodGet, "/api/v1/updates?since=0", nil, "bob"))
	require.Equal(t, http.StatusOK, w.Code)

	var pullResp api.PullResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pullResp))
	assert.Empty(t, pullResp.Updates)
}
