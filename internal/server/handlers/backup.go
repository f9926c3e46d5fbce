package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/HolyWalley/money-sub000/internal/server/actor"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// BackupHandler обрабатывает экспорт и импорт полного дампа пользователя
type BackupHandler struct {
	logger   *slog.Logger
	registry *actor.Registry
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(logger *slog.Logger, registry *actor.Registry) *BackupHandler {
	return &BackupHandler{
		logger:   logger,
		registry: registry,
	}
}

// Export обрабатывает GET /api/v1/backup/export
// Стримит NDJSON дамп как attachment, чанки уходят по мере чтения лога
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Имя файла кодирует владельца и момент экспорта
	filename := fmt.Sprintf("backup-%s-%d.ndjson", userID, time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.registry.ForUser(userID).Export(ctx, w); err != nil {
		// Заголовки уже ушли, статус менять поздно: обрываем поток,
		// клиент увидит отсутствие end-маркера
		h.logger.ErrorContext(ctx, "backup export failed", "error", err, "user_id", userID)
		return
	}

	h.logger.InfoContext(ctx, "backup export completed", "user_id", userID)
}

// Import обрабатывает POST /api/v1/backup/import
// Тело запроса это NDJSON дамп в формате Export
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.registry.ForUser(userID).Import(ctx, r.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "backup import failed", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := api.ImportResponse{
		UpdatesImported:       result.UpdatesImported,
		CompiledStateImported: result.CompiledStateImported,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode import response", slog.Any("error", err))
	}
}
