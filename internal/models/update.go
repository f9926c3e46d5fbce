package models

// UpdateRecord представляет одну запись append-only лога обновлений на сервере.
// Записи иммутабельны до явного retention cleanup.
type UpdateRecord struct {
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`  // устройство, создавшее дельту (аудит)
	Payload   []byte `json:"update"`     // бинарная дельта документа
	ID        int64  `json:"id"`         // серверный sequence id
	Timestamp int64  `json:"timestamp"`  // wall-clock клиента, unix ms (аудит)
	CreatedAt int64  `json:"created_at"` // время вставки на сервере, unix ms
}

// CompiledState представляет скомпилированный снапшот документа пользователя.
// Всегда не больше одного на пользователя. Семантически равен результату
// применения всех UpdateRecord с id <= LastUpdateID к пустому документу
// в любом порядке.
type CompiledState struct {
	UserID              string `json:"user_id"`
	State               []byte `json:"state"` // полное состояние документа как одна дельта
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
	LastUpdateID        int64  `json:"last_update_id"`
	CreatedAt           int64  `json:"created_at"`
}
