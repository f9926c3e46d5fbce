// Package auth управляет сессией пользователя на клиенте:
// регистрация, логин, хранение токенов и их прозрачное обновление.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	clientapi "github.com/HolyWalley/money-sub000/internal/client/api"
	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/validation"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// ErrNotAuthenticated возвращается когда нет валидной сессии
// и восстановить её через refresh token не удалось
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// expiryMargin: токен считается истекшим чуть раньше реального срока,
// чтобы не отправлять запрос с токеном, который умрёт в полёте
const expiryMargin = 30 * time.Second

// Service defines session operations used by CLI commands
type Service interface {
	Register(ctx context.Context, username, password string) (*api.RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*storage.AuthData, error)
	Logout(ctx context.Context) error

	// AccessToken возвращает валидный access token,
	// при необходимости обновляя его через refresh token
	AccessToken(ctx context.Context) (string, error)

	// Current возвращает сохранённую сессию или storage.ErrAuthNotFound
	Current(ctx context.Context) (*storage.AuthData, error)
}

type service struct {
	logger    *slog.Logger
	apiClient clientapi.ClientAPI
	authStore storage.AuthStorage
}

// NewService создает новый сервис сессии
func NewService(logger *slog.Logger, apiClient clientapi.ClientAPI, authStore storage.AuthStorage) Service {
	return &service{
		logger:    logger,
		apiClient: apiClient,
		authStore: authStore,
	}
}

// Register регистрирует нового пользователя на сервере.
// Сессию не открывает: после регистрации нужен login.
func (s *service) Register(ctx context.Context, username, password string) (*api.RegisterResponse, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, api.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("user registered", "username", username, "user_id", resp.UserID)
	return resp, nil
}

// Login выполняет аутентификацию и сохраняет сессию локально
func (s *service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, api.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	auth := &storage.AuthData{
		Username:     username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Unix() + resp.ExpiresIn,
	}
	if err := s.authStore.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("user logged in", "username", username)
	return auth, nil
}

// Logout отзывает refresh tokens на сервере (best effort)
// и всегда удаляет локальную сессию
func (s *service) Logout(ctx context.Context) error {
	auth, err := s.authStore.GetAuth(ctx)
	if err != nil {
		s.logger.Debug("no session found during logout", "error", err)
	} else {
		if logoutErr := s.apiClient.Logout(ctx, auth.AccessToken); logoutErr != nil {
			// Сервер недоступен? Локальная сессия всё равно закрывается
			s.logger.Warn("failed to logout on server", "error", logoutErr)
		}
	}

	if err := s.authStore.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete local session: %w", err)
	}
	return nil
}

// AccessToken возвращает валидный access token.
// Истекший токен обновляется через refresh token; если обновить
// не удалось, возвращается ErrNotAuthenticated.
func (s *service) AccessToken(ctx context.Context) (string, error) {
	auth, err := s.authStore.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	if time.Now().Add(expiryMargin).Unix() < auth.ExpiresAt {
		return auth.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx, auth)
	if err != nil {
		s.logger.Debug("token refresh failed", "error", err)
		return "", ErrNotAuthenticated
	}
	return refreshed.AccessToken, nil
}

// Current возвращает сохранённую сессию
func (s *service) Current(ctx context.Context) (*storage.AuthData, error) {
	return s.authStore.GetAuth(ctx)
}

// refresh обменивает refresh token на свежую пару и сохраняет её.
// Сервер ротирует refresh tokens, старый после обмена недействителен.
func (s *service) refresh(ctx context.Context, auth *storage.AuthData) (*storage.AuthData, error) {
	resp, err := s.apiClient.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	updated := &storage.AuthData{
		Username:     auth.Username,
		UserID:       auth.UserID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Unix() + resp.ExpiresIn,
	}
	if err := s.authStore.SaveAuth(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}

	s.logger.Debug("access token refreshed", "username", auth.Username)
	return updated, nil
}
