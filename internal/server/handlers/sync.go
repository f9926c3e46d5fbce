package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/actor"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// SyncHandler обрабатывает push и pull дельт документа
type SyncHandler struct {
	logger   *slog.Logger
	registry *actor.Registry
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, registry *actor.Registry) *SyncHandler {
	return &SyncHandler{
		logger:   logger,
		registry: registry,
	}
}

// HandleUpdates обрабатывает GET и POST /api/v1/updates
func (h *SyncHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// user_id устанавливается AuthMiddleware
	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handlePull(w, r, userID)
	case http.MethodPost:
		h.handlePush(w, r, userID)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePull обрабатывает GET /api/v1/updates?since=cursor
//
// Без since это bootstrap: сервер отдаёт одну синтетическую запись со
// скомпилированным состоянием (device_id = api.CompiledStateDeviceID).
// С since отдаются дельты с created_at строго больше курсора.
func (h *SyncHandler) handlePull(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	var since *int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.logger.WarnContext(ctx, "invalid since parameter", "since", sinceStr, "error", err)
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = &parsed
	}

	records, err := h.registry.ForUser(userID).GetUpdates(ctx, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get updates", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := api.PullResponse{Updates: make([]api.Update, 0, len(records))}
	for _, record := range records {
		response.Updates = append(response.Updates, api.Update{
			Update:    record.Payload,
			DeviceID:  record.DeviceID,
			Timestamp: record.Timestamp,
			CreatedAt: record.CreatedAt,
		})
	}

	h.sendJSON(w, response, http.StatusOK)
	h.logger.InfoContext(ctx, "pull completed",
		"user_id", userID,
		"bootstrap", since == nil,
		"updates_count", len(response.Updates))
}

// handlePush обрабатывает POST /api/v1/updates
func (h *SyncHandler) handlePush(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode push request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	records := make([]*models.UpdateRecord, 0, len(req.Updates))
	for _, u := range req.Updates {
		if len(u.Update) == 0 {
			http.Error(w, "Empty update payload", http.StatusBadRequest)
			return
		}
		records = append(records, &models.UpdateRecord{
			Payload:   u.Update,
			Timestamp: u.Timestamp,
			DeviceID:  u.DeviceID,
		})
	}

	accepted, err := h.registry.ForUser(userID).PushUpdates(ctx, records)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to push updates", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.PushResponse{Accepted: accepted}, http.StatusOK)
	h.logger.InfoContext(ctx, "push completed", "user_id", userID, "accepted", accepted)
}

// sendJSON отправляет JSON ответ
func (h *SyncHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}
