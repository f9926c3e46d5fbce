package api

// CompiledStateDeviceID зарезервированный sentinel для device_id.
// Если getUpdates вызывается без курсора, сервер возвращает единственную
// синтетическую запись с этим device_id: её payload это полное
// скомпилированное состояние документа, а не инкрементальная дельта.
const CompiledStateDeviceID = "__compiled__"

// Update представляет одну дельту документа для передачи по сети.
// Поле Update сериализуется в base64 (стандартное поведение encoding/json
// для []byte). Timestamp и DeviceID это только аудит-метаданные клиента,
// на исход merge они не влияют.
type Update struct {
	Update    []byte `json:"update"`               // бинарная дельта документа
	DeviceID  string `json:"device_id"`            // устройство, создавшее дельту
	Timestamp int64  `json:"timestamp"`            // wall-clock клиента, unix ms
	CreatedAt int64  `json:"created_at,omitempty"` // время вставки на сервере, unix ms (только в ответах)
}

// PushRequest представляет запрос на загрузку локальных дельт на сервер
type PushRequest struct {
	Updates []Update `json:"updates"`
}

// PushResponse подтверждение приёма дельт
type PushResponse struct {
	Accepted int `json:"accepted"` // количество принятых записей
}

// PullResponse представляет ответ сервера на запрос дельт
type PullResponse struct {
	Updates []Update `json:"updates"`
}

// StorageSizeResponse диагностика: размер лога обновлений против снапшота.
// Помогает решить, пора ли вызывать cleanup.
type StorageSizeResponse struct {
	UpdatesBytes       int64 `json:"updates_bytes"`
	UpdatesCount       int64 `json:"updates_count"`
	CompiledStateBytes int64 `json:"compiled_state_bytes"`
}

// CleanupResponse результат удаления лога обновлений
type CleanupResponse struct {
	Deleted int64 `json:"deleted"` // количество удалённых записей лога
}
