// Package api реализует HTTP клиент серверного API синхронизации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/HolyWalley/money-sub000/pkg/api"
)

// ClientAPI определяет операции серверного API, нужные клиентским сервисам
type ClientAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error

	PushUpdates(ctx context.Context, accessToken string, req api.PushRequest) (*api.PushResponse, error)
	GetUpdates(ctx context.Context, accessToken string, since *int64) (*api.PullResponse, error)
	CleanupUpdates(ctx context.Context, accessToken string) (*api.CleanupResponse, error)
	StorageSize(ctx context.Context, accessToken string) (*api.StorageSizeResponse, error)

	ExportBackup(ctx context.Context, accessToken string, w io.Writer) error
	ImportBackup(ctx context.Context, accessToken string, r io.Reader) (*api.ImportResponse, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ClientAPI = (*Client)(nil)

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Без общего таймаута: экспорт бэкапа может длиться долго,
			// отмена через context
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на свежую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/refresh", refreshToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает все refresh tokens пользователя
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// PushUpdates отправляет локальные дельты на сервер
func (c *Client) PushUpdates(ctx context.Context, accessToken string, req api.PushRequest) (*api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/updates", accessToken, req, &resp); err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	return &resp, nil
}

// GetUpdates забирает дельты с сервера.
// since == nil запрашивает bootstrap (скомпилированное состояние).
func (c *Client) GetUpdates(ctx context.Context, accessToken string, since *int64) (*api.PullResponse, error) {
	path := "/api/v1/updates"
	if since != nil {
		path += "?since=" + strconv.FormatInt(*since, 10)
	}

	var resp api.PullResponse
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	return &resp, nil
}

// CleanupUpdates запускает необратимое удаление серверного лога обновлений
func (c *Client) CleanupUpdates(ctx context.Context, accessToken string) (*api.CleanupResponse, error) {
	var resp api.CleanupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/updates/cleanup", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("cleanup request failed: %w", err)
	}
	return &resp, nil
}

// StorageSize возвращает серверную диагностику размеров
func (c *Client) StorageSize(ctx context.Context, accessToken string) (*api.StorageSizeResponse, error) {
	var resp api.StorageSizeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/storage", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("storage size request failed: %w", err)
	}
	return &resp, nil
}

// ExportBackup стримит NDJSON дамп в w
func (c *Client) ExportBackup(ctx context.Context, accessToken string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/backup/export", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("export request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("export failed with status %d: %s", resp.StatusCode, string(body))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to stream backup: %w", err)
	}
	return nil
}

// ImportBackup загружает NDJSON дамп из r
func (c *Client) ImportBackup(ctx context.Context, accessToken string, r io.Reader) (*api.ImportResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/backup/import", r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("import request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("import failed with status %d: %s", resp.StatusCode, string(body))
	}

	var importResp api.ImportResponse
	if err := json.Unmarshal(body, &importResp); err != nil {
		return nil, fmt.Errorf("failed to decode import response: %w", err)
	}
	return &importResp, nil
}

// doJSON выполняет JSON запрос с опциональным bearer token
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// WaitForServer опрашивает health endpoint до готовности сервера
func (c *Client) WaitForServer(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		err := c.doJSON(ctx, http.MethodGet, "/api/v1/health", "", nil, nil)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("server is not reachable after %s", timeout)
}
