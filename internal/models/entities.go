package models

import "time"

// Имена коллекций реплицируемого документа.
// Каждая коллекция это map[entityID]map[field]value внутри документа.
const (
	CollectionWallets       = "wallets"
	CollectionCategories    = "categories"
	CollectionTransactions  = "transactions"
	CollectionRecurrings    = "recurrings"
	CollectionRecurringLogs = "recurring_logs"
)

// Collections перечисляет все коллекции документа в фиксированном порядке
var Collections = []string{
	CollectionWallets,
	CollectionCategories,
	CollectionTransactions,
	CollectionRecurrings,
	CollectionRecurringLogs,
}

// Типы категорий
const (
	CategoryTypeIncome  = "income"
	CategoryTypeExpense = "expense"
)

// Wallet представляет кошелёк пользователя
type Wallet struct {
	CreatedAt time.Time `json:"created_at"` // время создания
	ID        string    `json:"id"`         // UUID кошелька
	Name      string    `json:"name"`       // название ("Наличные", "Карта")
	Currency  string    `json:"currency"`   // ISO 4217 код валюты
	Balance   float64   `json:"balance"`    // начальный баланс
}

// Category представляет категорию доходов или расходов
type Category struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // income или expense
	Icon      string    `json:"icon"` // опциональная иконка для UI
}

// Transaction представляет одну операцию
type Transaction struct {
	Date       time.Time `json:"date"` // дата операции
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	WalletID   string    `json:"wallet_id"`   // ссылка на кошелёк (не проверяется движком репликации)
	CategoryID string    `json:"category_id"` // ссылка на категорию
	Note       string    `json:"note"`
	Amount     float64   `json:"amount"` // положительная для дохода, отрицательная для расхода
}

// Recurring представляет шаблон регулярного платежа
type Recurring struct {
	StartDate  time.Time `json:"start_date"`
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WalletID   string    `json:"wallet_id"`
	CategoryID string    `json:"category_id"`
	Schedule   string    `json:"schedule"` // правило повторения, интерпретируется приложением
	Amount     float64   `json:"amount"`
}

// RecurringLog фиксирует одно сработавшее повторение шаблона.
// Календарная арифметика живёт в приложении; движок репликации
// просто хранит и сливает эти записи как любые другие.
type RecurringLog struct {
	Date          time.Time `json:"date"` // дата, за которую засчитано повторение
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	RecurringID   string    `json:"recurring_id"`
	TransactionID string    `json:"transaction_id"` // созданная по шаблону транзакция
}
