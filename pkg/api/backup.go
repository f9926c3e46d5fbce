package api

// Типы строк в потоковом NDJSON формате бэкапа.
// Экспорт: metadata, затем update-строки страницами по BackupPageSize,
// в последней странице compiled_state (если есть) и end-маркер.
const (
	BackupLineMetadata      = "metadata"
	BackupLineUpdate        = "update"
	BackupLineCompiledState = "compiled_state"
	BackupLineEnd           = "end"
)

// BackupPageSize фиксированный размер страницы экспорта и батча импорта
const BackupPageSize = 20

// BackupLineProbe используется для определения типа строки перед полным парсингом
type BackupLineProbe struct {
	Type string `json:"type"`
}

// BackupMetadataLine первая строка экспорта
type BackupMetadataLine struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	ExportedAt int64  `json:"exported_at"` // unix ms
	PageSize   int    `json:"page_size"`
}

// BackupUpdateLine одна запись лога обновлений.
// Payload кодируется числовым массивом, а не base64 (в отличие от sync).
type BackupUpdateLine struct {
	Type      string    `json:"type"`
	Update    ByteArray `json:"update"`
	DeviceID  string    `json:"device_id"`
	ID        int64     `json:"id"`
	Timestamp int64     `json:"timestamp"`
	CreatedAt int64     `json:"created_at"`
}

// BackupCompiledStateLine скомпилированное состояние, всегда с id = 1
type BackupCompiledStateLine struct {
	Type                string    `json:"type"`
	State               ByteArray `json:"state"`
	ID                  int64     `json:"id"`
	LastUpdateTimestamp int64     `json:"last_update_timestamp"`
	LastUpdateID        int64     `json:"last_update_id"`
	CreatedAt           int64     `json:"created_at"`
}

// BackupEndLine терминальный маркер экспорта
type BackupEndLine struct {
	Type string `json:"type"`
}

// ImportResponse итоги импорта бэкапа
type ImportResponse struct {
	UpdatesImported       int  `json:"updates_imported"`
	CompiledStateImported bool `json:"compiled_state_imported"`
}
