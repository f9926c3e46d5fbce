package document

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
)

// Document представляет реплицируемый документ одного пользователя.
// Это обёртка над automerge.Doc: именованные коллекции в корне документа,
// внутри коллекции map[entityID]map[field]value. Конкурентные правки с
// разных устройств сливаются детерминированно без координации; порядок
// применения дельт (включая дубликаты) не влияет на результат.
//
// Timestamp и deviceId, сопровождающие дельту по сети, на merge не влияют:
// конфликты разрешает внутренний логический clock automerge.
type Document struct {
	doc *automerge.Doc
	mu  sync.Mutex
}

// New создает пустой документ. actorID должен быть уникальным для реплики
// (hex-строка); пустая строка оставляет случайный actor automerge.
func New(actorID string) (*Document, error) {
	doc := automerge.New()
	if actorID != "" {
		if err := doc.SetActorID(actorID); err != nil {
			return nil, fmt.Errorf("failed to set actor id: %w", err)
		}
	}
	return &Document{doc: doc}, nil
}

// Load восстанавливает документ из полного состояния (результат Save)
func Load(state []byte, actorID string) (*Document, error) {
	doc, err := automerge.Load(state)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if actorID != "" {
		if err := doc.SetActorID(actorID); err != nil {
			return nil, fmt.Errorf("failed to set actor id: %w", err)
		}
	}
	return &Document{doc: doc}, nil
}

// Mutate применяет набор изменений полей одной сущности как одну логическую
// операцию и возвращает одну бинарную дельту, покрывающую всю операцию,
// вместе со списком наблюдаемых изменений для проекции.
func (d *Document) Mutate(collection, entityID string, fields map[string]any) ([]byte, []Change, error) {
	if collection == "" || entityID == "" {
		return nil, nil, fmt.Errorf("collection and entity id are required")
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("no field changes given")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Сортируем ключи, чтобы содержимое коммита было воспроизводимым
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := d.doc.Path(collection, entityID, k).Set(fields[k]); err != nil {
			return nil, nil, fmt.Errorf("failed to set %s/%s/%s: %w", collection, entityID, k, err)
		}
	}

	if _, err := d.doc.Commit(fmt.Sprintf("mutate %s/%s", collection, entityID)); err != nil {
		return nil, nil, fmt.Errorf("failed to commit mutation: %w", err)
	}

	delta := d.doc.SaveIncremental()
	change := Change{
		Collection: collection,
		EntityID:   entityID,
		Fields:     d.snapshotEntity(collection, entityID),
	}
	return delta, []Change{change}, nil
}

// Remove удаляет сущность из коллекции. Возвращает дельту и изменение
// с Deleted = true для снятия строки проекции.
func (d *Document) Remove(collection, entityID string) ([]byte, []Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.doc.Path(collection, entityID).Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s/%s: %w", collection, entityID, err)
	}
	if v.IsVoid() {
		return nil, nil, fmt.Errorf("%s/%s: %w", collection, entityID, ErrEntityNotFound)
	}

	if err := d.doc.Path(collection).Map().Delete(entityID); err != nil {
		return nil, nil, fmt.Errorf("failed to delete %s/%s: %w", collection, entityID, err)
	}
	if _, err := d.doc.Commit(fmt.Sprintf("delete %s/%s", collection, entityID)); err != nil {
		return nil, nil, fmt.Errorf("failed to commit deletion: %w", err)
	}

	delta := d.doc.SaveIncremental()
	change := Change{Collection: collection, EntityID: entityID, Deleted: true}
	return delta, []Change{change}, nil
}

// Merge применяет дельту, произведённую любой репликой. Merge идемпотентен
// и коммутативен: повторная или переставленная доставка безопасна.
// Полное состояние (Save) тоже валидный вход - формат automerge позволяет
// загружать его инкрементально, что используется при bootstrap новой реплики.
// Возвращает наблюдаемые изменения сущностей, включая удаления.
func (d *Document) Merge(delta []byte) ([]Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.snapshotAll()
	if err := d.doc.LoadIncremental(delta); err != nil {
		return nil, fmt.Errorf("failed to apply delta: %w", err)
	}
	after := d.snapshotAll()

	return diffSnapshots(before, after), nil
}

// Save кодирует полное состояние документа как одну дельту
func (d *Document) Save() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Save()
}

// Entity возвращает generic поля сущности или ErrEntityNotFound
func (d *Document) Entity(collection, entityID string) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fields := d.snapshotEntity(collection, entityID)
	if fields == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, entityID, ErrEntityNotFound)
	}
	return fields, nil
}

// Entities возвращает все сущности коллекции как map[entityID]fields
func (d *Document) Entities(collection string) (map[string]map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.snapshotAll()
	entities, ok := snap[collection]
	if !ok {
		return map[string]map[string]any{}, nil
	}
	return entities, nil
}

// snapshotEntity читает одну сущность как плоскую map; nil если её нет
func (d *Document) snapshotEntity(collection, entityID string) map[string]any {
	v, err := d.doc.Path(collection, entityID).Get()
	if err != nil || v.Kind() != automerge.KindMap {
		return nil
	}
	return normalizeMap(v.Map())
}

// snapshotAll материализует документ в map[collection]map[entityID]fields
func (d *Document) snapshotAll() map[string]map[string]map[string]any {
	out := map[string]map[string]map[string]any{}

	root := d.doc.RootMap()
	collections, err := root.Keys()
	if err != nil {
		return out
	}

	for _, collection := range collections {
		cv, err := root.Get(collection)
		if err != nil || cv.Kind() != automerge.KindMap {
			continue
		}
		cm := cv.Map()
		ids, err := cm.Keys()
		if err != nil {
			continue
		}
		entities := make(map[string]map[string]any, len(ids))
		for _, id := range ids {
			ev, err := cm.Get(id)
			if err != nil || ev.Kind() != automerge.KindMap {
				continue
			}
			entities[id] = normalizeMap(ev.Map())
		}
		out[collection] = entities
	}
	return out
}

// normalizeMap переводит automerge map в обычную Go map с примитивами
func normalizeMap(m *automerge.Map) map[string]any {
	out := map[string]any{}
	keys, err := m.Keys()
	if err != nil {
		return out
	}
	for _, k := range keys {
		v, err := m.Get(k)
		if err != nil {
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue переводит automerge значение в Go примитив
func normalizeValue(v *automerge.Value) any {
	switch v.Kind() {
	case automerge.KindStr:
		return v.Str()
	case automerge.KindFloat64:
		return v.Float64()
	case automerge.KindInt64:
		return v.Int64()
	case automerge.KindBool:
		return v.Bool()
	case automerge.KindBytes:
		return v.Bytes()
	case automerge.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case automerge.KindMap:
		return normalizeMap(v.Map())
	default:
		return nil
	}
}
