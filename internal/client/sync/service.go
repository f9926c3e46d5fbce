// Package sync реализует обмен дельтами документа с сервером.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	clientapi "github.com/HolyWalley/money-sub000/internal/client/api"
	"github.com/HolyWalley/money-sub000/internal/client/auth"
	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// Projection применяет серверные изменения к материализованным строкам.
// Реализуется projection.Projector.
type Projection interface {
	ApplyChanges(changes []document.Change) error
	Rebuild(ctx context.Context, doc *document.Document, collections []string) error
}

// Service определяет операции синхронизации
type Service interface {
	// Sync отправляет локальные дельты и забирает серверные
	Sync(ctx context.Context) (*SyncResult, error)

	// PendingCount возвращает количество дельт, ожидающих отправки
	PendingCount(ctx context.Context) (int, error)
}

type service struct {
	logger    *slog.Logger
	apiClient clientapi.ClientAPI
	session   auth.Service
	docs      storage.DocumentStorage
	proj      Projection
}

// NewService создает новый сервис синхронизации
func NewService(
	logger *slog.Logger,
	apiClient clientapi.ClientAPI,
	session auth.Service,
	docs storage.DocumentStorage,
	proj Projection,
) Service {
	return &service{
		logger:    logger,
		apiClient: apiClient,
		session:   session,
		docs:      docs,
		proj:      proj,
	}
}

// SyncResult итоги одного раунда синхронизации
type SyncResult struct {
	Pushed       int  // отправленных дельт
	Pulled       int  // полученных записей
	Bootstrapped bool // первый pull: документ собран с нуля
}

// Sync выполняет полный раунд: push очереди, затем pull.
// Если локального курсора ещё нет, pull идёт без since и сервер
// отвечает скомпилированным состоянием (bootstrap).
func (s *service) Sync(ctx context.Context) (*SyncResult, error) {
	token, err := s.session.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}

	pushed, err := s.push(ctx, token)
	if err != nil {
		return nil, err
	}
	result.Pushed = pushed

	if err := s.pull(ctx, token, result); err != nil {
		return nil, err
	}

	s.logger.Info("sync completed",
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"bootstrapped", result.Bootstrapped)
	return result, nil
}

// push отправляет очередь локальных дельт и подтверждает её после приёма.
// Очередь чистится только после успешного ответа сервера: при обрыве
// дельты уйдут повторно, на сервере merge идемпотентен.
func (s *service) push(ctx context.Context, token string) (int, error) {
	pending, err := s.docs.GetPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending queue: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	deviceID, err := s.docs.DeviceID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get device id: %w", err)
	}

	updates := make([]api.Update, 0, len(pending))
	var lastSeq uint64
	for _, delta := range pending {
		updates = append(updates, api.Update{
			Update:    delta.Delta,
			DeviceID:  deviceID,
			Timestamp: delta.Timestamp,
		})
		if delta.Seq > lastSeq {
			lastSeq = delta.Seq
		}
	}

	resp, err := s.apiClient.PushUpdates(ctx, token, api.PushRequest{Updates: updates})
	if err != nil {
		return 0, fmt.Errorf("push failed: %w", err)
	}

	if err := s.docs.DeletePendingUpTo(ctx, lastSeq); err != nil {
		return 0, fmt.Errorf("failed to ack pending queue: %w", err)
	}

	s.logger.Debug("pushed local deltas", "count", resp.Accepted)
	return resp.Accepted, nil
}

// pull забирает серверные записи и вливает их в локальный документ
func (s *service) pull(ctx context.Context, token string, result *SyncResult) error {
	cursor, err := s.docs.GetSyncCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync cursor: %w", err)
	}
	bootstrap := cursor == nil

	resp, err := s.apiClient.GetUpdates(ctx, token, cursor)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	doc, err := s.loadDocument(ctx)
	if err != nil {
		return err
	}

	var changes []document.Change
	maxCreatedAt := int64(0)
	if cursor != nil {
		maxCreatedAt = *cursor
	}
	for _, update := range resp.Updates {
		// Полное скомпилированное состояние это валидная дельта,
		// merge обрабатывает оба вида одинаково
		recordChanges, err := doc.Merge(update.Update)
		if err != nil {
			return fmt.Errorf("failed to merge server update: %w", err)
		}
		changes = append(changes, recordChanges...)
		if update.CreatedAt > maxCreatedAt {
			maxCreatedAt = update.CreatedAt
		}
	}
	result.Pulled = len(resp.Updates)
	result.Bootstrapped = bootstrap

	if err := s.docs.SaveDocumentState(ctx, doc.Save()); err != nil {
		return fmt.Errorf("failed to save document state: %w", err)
	}

	// Bootstrap пересобирает проекцию целиком: синтетическая запись
	// со скомпилированным состоянием не несёт пособытийных изменений
	if bootstrap {
		if err := s.proj.Rebuild(ctx, doc, models.Collections); err != nil {
			return fmt.Errorf("failed to rebuild projection: %w", err)
		}
	} else if len(changes) > 0 {
		if err := s.proj.ApplyChanges(changes); err != nil {
			return fmt.Errorf("failed to apply projection changes: %w", err)
		}
	}

	// Курсор сохраняется даже при пустом bootstrap: следующий pull
	// должен быть инкрементальным, а не повторным bootstrap
	if err := s.docs.SaveSyncCursor(ctx, maxCreatedAt); err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}

// loadDocument открывает локальный документ, создавая пустой при первом запуске
func (s *service) loadDocument(ctx context.Context) (*document.Document, error) {
	deviceID, err := s.docs.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	state, err := s.docs.GetDocumentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read document state: %w", err)
	}
	if state == nil {
		doc, err := document.New(deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		return doc, nil
	}

	doc, err := document.Load(state, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

// PendingCount возвращает размер очереди неотправленных дельт
func (s *service) PendingCount(ctx context.Context) (int, error) {
	pending, err := s.docs.GetPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending queue: %w", err)
	}
	return len(pending), nil
}
