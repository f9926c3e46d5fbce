package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/HolyWalley/money-sub000/internal/server/actor"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// DiagnosticsHandler обрабатывает диагностику хранилища и retention cleanup
type DiagnosticsHandler struct {
	logger   *slog.Logger
	registry *actor.Registry
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(logger *slog.Logger, registry *actor.Registry) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		logger:   logger,
		registry: registry,
	}
}

// StorageSize обрабатывает GET /api/v1/storage
// Размер лога обновлений против снапшота: по нему клиент решает,
// пора ли запускать cleanup
func (h *DiagnosticsHandler) StorageSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	size, err := h.registry.ForUser(userID).Size(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to measure storage", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.StorageSizeResponse{
		UpdatesBytes:       size.UpdatesBytes,
		UpdatesCount:       size.UpdatesCount,
		CompiledStateBytes: size.CompiledStateBytes,
	})
}

// Cleanup обрабатывает POST /api/v1/updates/cleanup
// Необратимо удаляет весь лог обновлений, оставляя только снапшот
func (h *DiagnosticsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deleted, err := h.registry.ForUser(userID).CleanupOldUpdates(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "cleanup failed", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.CleanupResponse{Deleted: deleted})
}

func (h *DiagnosticsHandler) sendJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}
