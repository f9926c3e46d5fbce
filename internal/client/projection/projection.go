// Package projection поддерживает материализованное представление документа
// для запросов приложения. Проекция это производные данные: каждая строка
// выводится из состояния документа и пересобирается из него при bootstrap.
// Источник истины всегда документ, не проекция.
package projection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/document"
)

// Projector применяет изменения документа к строкам проекции.
// Реализует document.Observer.
type Projector struct {
	logger *slog.Logger
	rows   storage.ProjectionStorage
}

// NewProjector creates a new projector over the given row storage
func NewProjector(logger *slog.Logger, rows storage.ProjectionStorage) *Projector {
	return &Projector{
		logger: logger,
		rows:   rows,
	}
}

// ApplyChanges переносит наблюдаемые изменения сущностей в строки проекции.
// Весь change set уходит в хранилище одним батчем в одной транзакции.
func (p *Projector) ApplyChanges(changes []document.Change) error {
	if len(changes) == 0 {
		return nil
	}

	batch := make([]storage.RowChange, 0, len(changes))
	for _, change := range changes {
		batch = append(batch, storage.RowChange{
			Collection: change.Collection,
			EntityID:   change.EntityID,
			Fields:     change.Fields,
			Delete:     change.Deleted,
		})
	}

	if err := p.rows.ApplyRows(context.Background(), batch); err != nil {
		return fmt.Errorf("failed to apply change set: %w", err)
	}

	p.logger.Debug("projection updated", "changes", len(changes))
	return nil
}

// Rebuild полностью пересобирает проекцию из документа.
// Используется при bootstrap и восстановлении из бэкапа.
func (p *Projector) Rebuild(ctx context.Context, doc *document.Document, collections []string) error {
	if err := p.rows.ClearProjection(ctx); err != nil {
		return fmt.Errorf("failed to clear projection: %w", err)
	}

	total := 0
	for _, collection := range collections {
		entities, err := doc.Entities(collection)
		if err != nil {
			return fmt.Errorf("failed to read collection %s: %w", collection, err)
		}
		for id, fields := range entities {
			if err := p.rows.PutRow(ctx, collection, id, fields); err != nil {
				return fmt.Errorf("failed to put row %s/%s: %w", collection, id, err)
			}
			total++
		}
	}

	p.logger.Info("projection rebuilt", "rows", total)
	return nil
}
