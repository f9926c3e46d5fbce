package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HolyWalley/money-sub000/pkg/api"
)

func TestBackupHandler_ExportImportRoundTrip(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	syncHandler := NewSyncHandler(setupTestLogger(), registry)
	backupHandler := NewBackupHandler(setupTestLogger(), registry)

	delta1 := walletDelta(t, map[string]any{"name": "Cash"})
	delta2 := walletDelta(t, map[string]any{"name": "Bank"})

	w := httptest.NewRecorder()
	syncHandler.HandleUpdates(w, authedRequest(http.MethodPost, "/api/v1/updates", pushBody(t, delta1, delta2), "alice"))
	require.Equal(t, http.StatusOK, w.Code)

	// Экспорт NDJSON дампа
	w = httptest.NewRecorder()
	backupHandler.Export(w, authedRequest(http.MethodGet, "/api/v1/backup/export", nil, "alice"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	disposition := w.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "attachment")
	assert.Contains(t, disposition, "backup-alice-", "filename carries the owner and export time")
	assert.Regexp(t, `backup-alice-\d+\.ndjson`, disposition)

	dump := w.Body.String()
	lines := strings.Split(strings.TrimSpace(dump), "\n")
	require.GreaterOrEqual(t, len(lines), 4, "metadata + 2 updates + compiled_state + end")

	var first api.BackupLineProbe
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, api.BackupLineMetadata, first.Type)

	var last api.BackupLineProbe
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, api.BackupLineEnd, last.Type)

	// Импорт дампа другому пользователю
	w = httptest.NewRecorder()
	backupHandler.Import(w, authedRequest(http.MethodPost, "/api/v1/backup/import", bytes.NewBufferString(dump), "bob"))
	require.Equal(t, http.StatusOK, w.Code)

	var importResp api.ImportResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&importResp))
	assert.Equal(t, 2, importResp.UpdatesImported)
	assert.True(t, importResp.CompiledStateImported)

	// Лог восстановлен у получателя
	w = httptest.NewRecorder()
	syncHandler.HandleUpdates(w, authedRequest(http.MethodGet, "/api/v1/updates?since=0", nil, "bob"))
	require.Equal(t, http.StatusOK, w.Code)

	var pullResp api.PullResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pullResp))
	assert.Len(t, pullResp.Updates, 2)
}

func TestBackupHandler_Unauthorized(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()
	handler := NewBackupHandler(setupTestLogger(), registry)

	w := httptest.NewRecorder()
	handler.Export(w, httptest.NewRequest(http.MethodGet, "/api/v1/backup/export", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	handler.Import(w, httptest.NewRequest(http.MethodPost, "/api/v1/backup/import", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
