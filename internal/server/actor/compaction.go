package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
	"github.com/HolyWalley/money-sub000/internal/server/storage"
)

// compactBatch вливает ровно указанные записи лога в снапшот.
// Стоимость O(размер батча), не O(вся история) — в этом весь смысл
// compaction. Merge коммутативен и идемпотентен, поэтому порядок внутри
// батча на результат не влияет; записи всё равно применяются по
// возрастанию id для предсказуемости.
//
// Compaction обрабатывает только свой батч. Если предыдущий раунд упал,
// его id никто не перечитывает: снапшот может отставать от лога до
// следующего полного пересбора. Это осознанно сохранённое поведение;
// отставание видно по CompactionFailures и по диагностике размеров.
func (a *Actor) compactBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	doc, err := a.loadCompiledDocument(ctx)
	if err != nil {
		return err
	}

	records, err := a.storage.GetUpdatesByIDs(ctx, a.userID, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch batch records: %w", err)
	}

	var lastID, lastTimestamp int64
	for _, record := range records {
		if _, err := doc.Merge(record.Payload); err != nil {
			return fmt.Errorf("failed to merge update %d: %w", record.ID, err)
		}
		if record.ID > lastID {
			lastID = record.ID
		}
		if record.Timestamp > lastTimestamp {
			lastTimestamp = record.Timestamp
		}
	}

	state := &models.CompiledState{
		UserID:              a.userID,
		State:               doc.Save(),
		LastUpdateTimestamp: lastTimestamp,
		LastUpdateID:        lastID,
		CreatedAt:           time.Now().UnixMilli(),
	}
	if err := a.storage.SaveCompiledState(ctx, state); err != nil {
		return fmt.Errorf("failed to save compiled state: %w", err)
	}

	return nil
}

// loadCompiledDocument декодирует текущий снапшот в рабочий документ,
// начиная с пустого, если снапшота ещё нет
func (a *Actor) loadCompiledDocument(ctx context.Context) (*document.Document, error) {
	state, err := a.storage.GetCompiledState(ctx, a.userID)
	if err != nil {
		if errors.Is(err, storage.ErrCompiledStateNotFound) {
			doc, err := document.New("")
			if err != nil {
				return nil, fmt.Errorf("failed to create working document: %w", err)
			}
			return doc, nil
		}
		return nil, fmt.Errorf("failed to load compiled state: %w", err)
	}

	doc, err := document.Load(state.State, "")
	if err != nil {
		return nil, fmt.Errorf("failed to decode compiled state: %w", err)
	}
	return doc, nil
}
