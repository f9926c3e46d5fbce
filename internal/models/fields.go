package models

import "time"

// Конвертация типизированных сущностей в generic поля документа и обратно.
// Внутри документа сущность это плоская map[string]any; типизированные
// структуры существуют только по эту сторону границы репликации.

// NormalizeDate единое каноническое правило приведения date-подобных значений
// при проекции: строка в RFC3339 или "2006-01-02"; всё невалидное или
// отсутствующее становится текущим моментом. Правило применяется одинаково
// для всех коллекций.
func NormalizeDate(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

// fieldString возвращает строковое поле или пустую строку
func fieldString(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}

// fieldFloat возвращает числовое поле; automerge может вернуть
// число как float64 или int64 в зависимости от того, как оно было записано
func fieldFloat(f map[string]any, key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Fields возвращает generic представление кошелька для документа
func (w *Wallet) Fields() map[string]any {
	return map[string]any{
		"name":       w.Name,
		"currency":   w.Currency,
		"balance":    w.Balance,
		"created_at": w.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// WalletFromFields восстанавливает кошелёк из generic полей документа
func WalletFromFields(id string, f map[string]any) *Wallet {
	return &Wallet{
		ID:        id,
		Name:      fieldString(f, "name"),
		Currency:  fieldString(f, "currency"),
		Balance:   fieldFloat(f, "balance"),
		CreatedAt: NormalizeDate(f["created_at"]),
	}
}

// Fields возвращает generic представление категории
func (c *Category) Fields() map[string]any {
	return map[string]any{
		"name":       c.Name,
		"type":       c.Type,
		"icon":       c.Icon,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CategoryFromFields восстанавливает категорию из generic полей
func CategoryFromFields(id string, f map[string]any) *Category {
	return &Category{
		ID:        id,
		Name:      fieldString(f, "name"),
		Type:      fieldString(f, "type"),
		Icon:      fieldString(f, "icon"),
		CreatedAt: NormalizeDate(f["created_at"]),
	}
}

// Fields возвращает generic представление транзакции
func (t *Transaction) Fields() map[string]any {
	return map[string]any{
		"wallet_id":   t.WalletID,
		"category_id": t.CategoryID,
		"amount":      t.Amount,
		"note":        t.Note,
		"date":        t.Date.UTC().Format(time.RFC3339),
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// TransactionFromFields восстанавливает транзакцию из generic полей
func TransactionFromFields(id string, f map[string]any) *Transaction {
	return &Transaction{
		ID:         id,
		WalletID:   fieldString(f, "wallet_id"),
		CategoryID: fieldString(f, "category_id"),
		Amount:     fieldFloat(f, "amount"),
		Note:       fieldString(f, "note"),
		Date:       NormalizeDate(f["date"]),
		CreatedAt:  NormalizeDate(f["created_at"]),
	}
}

// Fields возвращает generic представление шаблона регулярного платежа
func (r *Recurring) Fields() map[string]any {
	return map[string]any{
		"name":        r.Name,
		"wallet_id":   r.WalletID,
		"category_id": r.CategoryID,
		"amount":      r.Amount,
		"schedule":    r.Schedule,
		"start_date":  r.StartDate.UTC().Format(time.RFC3339),
		"created_at":  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// RecurringFromFields восстанавливает шаблон из generic полей
func RecurringFromFields(id string, f map[string]any) *Recurring {
	return &Recurring{
		ID:         id,
		Name:       fieldString(f, "name"),
		WalletID:   fieldString(f, "wallet_id"),
		CategoryID: fieldString(f, "category_id"),
		Amount:     fieldFloat(f, "amount"),
		Schedule:   fieldString(f, "schedule"),
		StartDate:  NormalizeDate(f["start_date"]),
		CreatedAt:  NormalizeDate(f["created_at"]),
	}
}

// Fields возвращает generic представление записи о повторении
func (l *RecurringLog) Fields() map[string]any {
	return map[string]any{
		"recurring_id":   l.RecurringID,
		"transaction_id": l.TransactionID,
		"date":           l.Date.UTC().Format(time.RFC3339),
		"created_at":     l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// RecurringLogFromFields восстанавливает запись о повторении
func RecurringLogFromFields(id string, f map[string]any) *RecurringLog {
	return &RecurringLog{
		ID:            id,
		RecurringID:   fieldString(f, "recurring_id"),
		TransactionID: fieldString(f, "transaction_id"),
		Date:          NormalizeDate(f["date"]),
		CreatedAt:     NormalizeDate(f["created_at"]),
	}
}
