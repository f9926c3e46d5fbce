package document

import (
	"errors"
	"reflect"
	"sort"
)

// ErrEntityNotFound сущность отсутствует в документе
var ErrEntityNotFound = errors.New("entity not found")

// Change представляет одно наблюдаемое изменение сущности после mutate/merge.
// Для Deleted = true Fields не заполняются: строка проекции снимается.
type Change struct {
	Fields     map[string]any `json:"fields,omitempty"`
	Collection string         `json:"collection"`
	EntityID   string         `json:"entity_id"`
	Deleted    bool           `json:"deleted"`
}

// Observer получает батч изменений после каждой операции над документом.
// Реализуется проекционным хранилищем; запись батчуется на change set,
// а не на каждое поле.
type Observer interface {
	ApplyChanges(changes []Change) error
}

// diffSnapshots сравнивает материализованные состояния документа до и после
// merge и перечисляет создания, изменения и удаления на уровне сущностей.
func diffSnapshots(before, after map[string]map[string]map[string]any) []Change {
	var changes []Change

	for collection, entities := range after {
		prev := before[collection]
		for id, fields := range entities {
			old, existed := prev[id]
			if existed && reflect.DeepEqual(old, fields) {
				continue
			}
			changes = append(changes, Change{
				Collection: collection,
				EntityID:   id,
				Fields:     fields,
			})
		}
	}

	for collection, entities := range before {
		next := after[collection]
		for id := range entities {
			if _, ok := next[id]; !ok {
				changes = append(changes, Change{
					Collection: collection,
					EntityID:   id,
					Deleted:    true,
				})
			}
		}
	}

	// Детерминированный порядок упрощает тесты и батчи проекции
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Collection != changes[j].Collection {
			return changes[i].Collection < changes[j].Collection
		}
		return changes[i].EntityID < changes[j].EntityID
	})
	return changes
}
