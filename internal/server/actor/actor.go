// Package actor реализует серверную авторитетную сторону репликации:
// по одному логическому актору на пользователя. Актор владеет append-only
// логом обновлений и скомпилированным снапшотом этого пользователя и
// выполняет все операции строго по одной, поэтому compaction может
// читать-модифицировать-писать снапшот без транзакций и блокировок БД.
// Акторы разных пользователей полностью независимы.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/storage"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// Storage объединяет хранилища, которыми владеет актор
type Storage interface {
	storage.UpdateStorage
	storage.CompiledStateStorage
}

// Registry раздаёт акторов по userID. Один пользователь всегда
// детерминированно попадает в один и тот же экземпляр актора.
type Registry struct {
	logger  *slog.Logger
	storage Storage
	actors  map[string]*Actor
	mu      sync.Mutex
}

// NewRegistry creates a new actor registry
func NewRegistry(logger *slog.Logger, store Storage) *Registry {
	return &Registry{
		logger:  logger,
		storage: store,
		actors:  make(map[string]*Actor),
	}
}

// ForUser возвращает актора пользователя, создавая его при первом обращении
func (r *Registry) ForUser(userID string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[userID]
	if !ok {
		a = &Actor{
			userID:  userID,
			logger:  r.logger.With("user_id", userID),
			storage: r.storage,
		}
		r.actors[userID] = a
	}
	return a
}

// Actor обрабатывает операции одного пользователя строго последовательно
type Actor struct {
	logger             *slog.Logger
	storage            Storage
	userID             string
	lastCreatedAt      int64
	createdAtSeeded    bool
	compactionFailures atomic.Int64
	mu                 sync.Mutex
}

// StorageSize байтовый след лога обновлений против снапшота
type StorageSize struct {
	UpdatesBytes       int64
	UpdatesCount       int64
	CompiledStateBytes int64
}

// nextCreatedAt возвращает строго возрастающее серверное время вставки
// (unix ms). Монотонность в пределах актора гарантирует, что курсор
// created_at никогда не пропускает и не дублирует записи.
func (a *Actor) nextCreatedAt() int64 {
	now := time.Now().UnixMilli()
	if now <= a.lastCreatedAt {
		now = a.lastCreatedAt + 1
	}
	a.lastCreatedAt = now
	return now
}

// seedCreatedAt подтягивает последний выданный created_at из хранилища
// при первом обращении после старта процесса. Без этого рестарт сервера
// при шаге часов назад мог бы выдать created_at не больше курсора,
// который уже держат клиенты, и строгий > since навсегда пропустил бы
// такие записи. Вызывается под a.mu.
func (a *Actor) seedCreatedAt(ctx context.Context) error {
	if a.createdAtSeeded {
		return nil
	}

	seed, err := a.storage.MaxCreatedAt(ctx, a.userID)
	if err != nil {
		return fmt.Errorf("failed to seed created_at from log: %w", err)
	}

	// После cleanup лог пуст, но снапшот хранит created_at, который
	// клиенты могли получить как курсор при bootstrap
	state, err := a.storage.GetCompiledState(ctx, a.userID)
	if err == nil {
		if state.CreatedAt > seed {
			seed = state.CreatedAt
		}
	} else if !errors.Is(err, storage.ErrCompiledStateNotFound) {
		return fmt.Errorf("failed to seed created_at from snapshot: %w", err)
	}

	if seed > a.lastCreatedAt {
		a.lastCreatedAt = seed
	}
	a.createdAtSeeded = true
	return nil
}

// PushUpdates добавляет дельты в лог и запускает compaction ровно для
// вставленных id. Ошибка compaction логируется и считается, но push
// не откатывается: записи остаются в логе, снапшот догонит их позже.
func (a *Actor) PushUpdates(ctx context.Context, records []*models.UpdateRecord) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.seedCreatedAt(ctx); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(records))
	for _, record := range records {
		record.UserID = a.userID
		record.CreatedAt = a.nextCreatedAt()

		id, err := a.storage.AppendUpdate(ctx, record)
		if err != nil {
			return len(ids), fmt.Errorf("failed to append update: %w", err)
		}
		record.ID = id
		ids = append(ids, id)
	}

	if err := a.compactBatch(ctx, ids); err != nil {
		// Данные не потеряны: записи уже в логе, страдает только
		// эффективность compaction в этом раунде.
		a.compactionFailures.Add(1)
		a.logger.ErrorContext(ctx, "compaction failed, updates remain in log",
			"error", err, "batch_size", len(ids))
	}

	return len(ids), nil
}

// GetUpdates возвращает дельты пользователя.
//
// Без курсора: единственная синтетическая запись со скомпилированным
// состоянием (bootstrap новой реплики без полной истории); если снапшота
// ещё нет, возвращается сырой лог целиком, а при пустом логе пустой список.
// С курсором: все записи с created_at > since в порядке вставки, как есть.
func (a *Actor) GetUpdates(ctx context.Context, since *int64) ([]*models.UpdateRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if since != nil {
		records, err := a.storage.GetUpdatesSince(ctx, a.userID, *since)
		if err != nil {
			return nil, fmt.Errorf("failed to get updates since %d: %w", *since, err)
		}
		return records, nil
	}

	state, err := a.storage.GetCompiledState(ctx, a.userID)
	if err == nil {
		return []*models.UpdateRecord{{
			UserID:    a.userID,
			Payload:   state.State,
			Timestamp: state.LastUpdateTimestamp,
			DeviceID:  api.CompiledStateDeviceID,
			CreatedAt: state.CreatedAt,
		}}, nil
	}
	if !errors.Is(err, storage.ErrCompiledStateNotFound) {
		return nil, fmt.Errorf("failed to get compiled state: %w", err)
	}

	// Снапшота нет (например, compaction ещё ни разу не прошёл):
	// отдаём сырой лог, merge на клиенте идемпотентен.
	records, err := a.storage.GetUpdatesSince(ctx, a.userID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get raw log: %w", err)
	}
	return records, nil
}

// CleanupOldUpdates безусловно удаляет весь лог обновлений, оставляя
// только скомпилированное состояние. Необратимо: корректность целиком
// зависит от того, что снапшот уже отражает всё удаляемое.
func (a *Actor) CleanupOldUpdates(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	deleted, err := a.storage.DeleteUserUpdates(ctx, a.userID)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup updates: %w", err)
	}

	a.logger.InfoContext(ctx, "update log cleaned up", "deleted", deleted)
	return deleted, nil
}

// Size возвращает диагностику размеров хранилища пользователя
func (a *Actor) Size(ctx context.Context) (*StorageSize, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	updatesBytes, count, err := a.storage.UpdatesSize(ctx, a.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to measure update log: %w", err)
	}

	stateBytes, err := a.storage.CompiledStateSize(ctx, a.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to measure compiled state: %w", err)
	}

	return &StorageSize{
		UpdatesBytes:       updatesBytes,
		UpdatesCount:       count,
		CompiledStateBytes: stateBytes,
	}, nil
}

// CompactionFailures возвращает количество тихо проглоченных ошибок
// compaction с момента старта. Ненулевое значение значит, что снапшот
// отстаёт от лога и bootstrap-пулы дороже, чем могли бы быть.
func (a *Actor) CompactionFailures() int64 {
	return a.compactionFailures.Load()
}
