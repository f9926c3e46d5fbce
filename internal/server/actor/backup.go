package actor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/storage"
	"github.com/HolyWalley/money-sub000/pkg/api"
)

// maxBackupLineSize верхняя граница одной строки бэкапа (числовой массив
// раздувает payload примерно в четыре раза относительно бинарного размера)
const maxBackupLineSize = 16 * 1024 * 1024

// ImportResult итоги одной сессии импорта
type ImportResult struct {
	UpdatesImported       int
	CompiledStateImported bool
}

// Export пишет полный дамп пользователя в поток построчным NDJSON:
// metadata, затем update-строки страницами по api.BackupPageSize, в
// последней странице compiled_state (если есть) и маркер end. Payload
// кодируется числовым массивом байт, независимо от транспорта.
// Чанки уходят в поток по мере чтения: потребитель может начинать
// обработку, не дожидаясь конца истории.
func (a *Actor) Export(ctx context.Context, w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	enc := json.NewEncoder(w)

	metadata := api.BackupMetadataLine{
		Type:       api.BackupLineMetadata,
		UserID:     a.userID,
		ExportedAt: time.Now().UnixMilli(),
		PageSize:   api.BackupPageSize,
	}
	if err := enc.Encode(metadata); err != nil {
		return fmt.Errorf("failed to write metadata line: %w", err)
	}

	offset := 0
	for {
		page, err := a.storage.GetUpdatesPage(ctx, a.userID, offset, api.BackupPageSize)
		if err != nil {
			return fmt.Errorf("failed to read export page: %w", err)
		}

		for _, record := range page {
			line := api.BackupUpdateLine{
				Type:      api.BackupLineUpdate,
				ID:        record.ID,
				Update:    api.ByteArray(record.Payload),
				Timestamp: record.Timestamp,
				DeviceID:  record.DeviceID,
				CreatedAt: record.CreatedAt,
			}
			if err := enc.Encode(line); err != nil {
				return fmt.Errorf("failed to write update line: %w", err)
			}
		}

		// Неполная страница означает конец лога
		if len(page) < api.BackupPageSize {
			break
		}
		offset += len(page)
	}

	state, err := a.storage.GetCompiledState(ctx, a.userID)
	if err == nil {
		line := api.BackupCompiledStateLine{
			Type:                api.BackupLineCompiledState,
			ID:                  1,
			State:               api.ByteArray(state.State),
			LastUpdateTimestamp: state.LastUpdateTimestamp,
			LastUpdateID:        state.LastUpdateID,
			CreatedAt:           state.CreatedAt,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write compiled state line: %w", err)
		}
	} else if !errors.Is(err, storage.ErrCompiledStateNotFound) {
		return fmt.Errorf("failed to read compiled state: %w", err)
	}

	if err := enc.Encode(api.BackupEndLine{Type: api.BackupLineEnd}); err != nil {
		return fmt.Errorf("failed to write end line: %w", err)
	}

	return nil
}

// Import строгая обратная операция к Export. Сессия начинается с полной
// очистки лога и снапшота пользователя, затем строки обрабатываются
// батчами по api.BackupPageSize: update-строки вставляются как есть со
// своими исходными id, compiled_state со своим фиксированным id.
// Битые строки логируются и пропускаются, импорт продолжает остаток батча.
func (a *Actor) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.storage.DeleteUserUpdates(ctx, a.userID); err != nil {
		return nil, fmt.Errorf("failed to clear update log: %w", err)
	}
	if err := a.storage.DeleteCompiledState(ctx, a.userID); err != nil {
		return nil, fmt.Errorf("failed to clear compiled state: %w", err)
	}

	result := &ImportResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxBackupLineSize)

	batch := make([][]byte, 0, api.BackupPageSize)
	flush := func() {
		for _, line := range batch {
			a.importLine(ctx, line, result)
		}
		batch = batch[:0]
	}

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)

		batch = append(batch, line)
		if len(batch) == api.BackupPageSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import stream: %w", err)
	}
	flush()

	a.logger.InfoContext(ctx, "backup import finished",
		"updates_imported", result.UpdatesImported,
		"compiled_state_imported", result.CompiledStateImported)

	return result, nil
}

// importLine разбирает и применяет одну строку бэкапа.
// Любая ошибка парсинга или вставки не прерывает сессию.
func (a *Actor) importLine(ctx context.Context, line []byte, result *ImportResult) {
	var probe api.BackupLineProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		a.logger.WarnContext(ctx, "skipping malformed backup line", "error", err)
		return
	}

	switch probe.Type {
	case api.BackupLineUpdate:
		var parsed api.BackupUpdateLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			a.logger.WarnContext(ctx, "skipping malformed update line", "error", err)
			return
		}
		record := &models.UpdateRecord{
			ID:        parsed.ID,
			UserID:    a.userID,
			Payload:   []byte(parsed.Update),
			Timestamp: parsed.Timestamp,
			DeviceID:  parsed.DeviceID,
			CreatedAt: parsed.CreatedAt,
		}
		if err := a.storage.InsertUpdateWithID(ctx, record); err != nil {
			a.logger.WarnContext(ctx, "skipping update line", "id", parsed.ID, "error", err)
			return
		}
		if parsed.CreatedAt > a.lastCreatedAt {
			a.lastCreatedAt = parsed.CreatedAt
		}
		result.UpdatesImported++

	case api.BackupLineCompiledState:
		var parsed api.BackupCompiledStateLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			a.logger.WarnContext(ctx, "skipping malformed compiled state line", "error", err)
			return
		}
		state := &models.CompiledState{
			UserID:              a.userID,
			State:               []byte(parsed.State),
			LastUpdateTimestamp: parsed.LastUpdateTimestamp,
			LastUpdateID:        parsed.LastUpdateID,
			CreatedAt:           parsed.CreatedAt,
		}
		if err := a.storage.SaveCompiledState(ctx, state); err != nil {
			a.logger.WarnContext(ctx, "skipping compiled state line", "error", err)
			return
		}
		result.CompiledStateImported = true

	case api.BackupLineMetadata, api.BackupLineEnd:
		// Служебные строки, данных не несут

	default:
		a.logger.WarnContext(ctx, "skipping backup line of unknown type", "type", probe.Type)
	}
}
