package projection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/models"
)

// Queries читает типизированные сущности из строк проекции.
// Все даты проходят через models.NormalizeDate, поэтому мусорные значения
// из чужих реплик не ломают сортировку и фильтры.
type Queries struct {
	rows storage.ProjectionStorage
}

// NewQueries creates a query facade over projection rows
func NewQueries(rows storage.ProjectionStorage) *Queries {
	return &Queries{rows: rows}
}

// Wallets возвращает все кошельки, старые первыми
func (q *Queries) Wallets(ctx context.Context) ([]*models.Wallet, error) {
	rows, err := q.rows.ListRows(ctx, models.CollectionWallets)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	wallets := make([]*models.Wallet, 0, len(rows))
	for id, fields := range rows {
		wallets = append(wallets, models.WalletFromFields(id, fields))
	}
	sort.Slice(wallets, func(i, j int) bool {
		if !wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
		}
		return wallets[i].ID < wallets[j].ID
	})
	return wallets, nil
}

// Wallet возвращает один кошелёк или storage.ErrRowNotFound
func (q *Queries) Wallet(ctx context.Context, id string) (*models.Wallet, error) {
	fields, err := q.rows.GetRow(ctx, models.CollectionWallets, id)
	if err != nil {
		return nil, err
	}
	return models.WalletFromFields(id, fields), nil
}

// Categories возвращает категории, опционально отфильтрованные по типу
// (models.CategoryTypeIncome / models.CategoryTypeExpense, пустая строка — все)
func (q *Queries) Categories(ctx context.Context, categoryType string) ([]*models.Category, error) {
	rows, err := q.rows.ListRows(ctx, models.CollectionCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]*models.Category, 0, len(rows))
	for id, fields := range rows {
		category := models.CategoryFromFields(id, fields)
		if categoryType != "" && category.Type != categoryType {
			continue
		}
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Name != categories[j].Name {
			return categories[i].Name < categories[j].Name
		}
		return categories[i].ID < categories[j].ID
	})
	return categories, nil
}

// TransactionFilter ограничивает выборку транзакций.
// Нулевые значения полей означают отсутствие фильтра.
type TransactionFilter struct {
	From       time.Time
	To         time.Time
	WalletID   string
	CategoryID string
}

// Transactions возвращает транзакции под фильтром, новые первыми
func (q *Queries) Transactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	rows, err := q.rows.ListRows(ctx, models.CollectionTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(rows))
	for id, fields := range rows {
		tx := models.TransactionFromFields(id, fields)
		if filter.WalletID != "" && tx.WalletID != filter.WalletID {
			continue
		}
		if filter.CategoryID != "" && tx.CategoryID != filter.CategoryID {
			continue
		}
		if !filter.From.IsZero() && tx.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !tx.Date.Before(filter.To) {
			continue
		}
		transactions = append(transactions, tx)
	}
	sort.Slice(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.After(transactions[j].Date)
		}
		return transactions[i].ID < transactions[j].ID
	})
	return transactions, nil
}

// TransactionView транзакция с денормализованными именами для отображения
type TransactionView struct {
	*models.Transaction
	WalletName   string
	CategoryName string
}

// TransactionViews присоединяет к транзакциям имена кошелька и категории.
// Битая ссылка даёт пустое имя, а не ошибку: документ не проверяет
// ссылочную целостность между репликами.
func (q *Queries) TransactionViews(ctx context.Context, filter TransactionFilter) ([]*TransactionView, error) {
	transactions, err := q.Transactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	walletNames, err := q.collectionNames(ctx, models.CollectionWallets)
	if err != nil {
		return nil, err
	}
	categoryNames, err := q.collectionNames(ctx, models.CollectionCategories)
	if err != nil {
		return nil, err
	}

	views := make([]*TransactionView, 0, len(transactions))
	for _, tx := range transactions {
		views = append(views, &TransactionView{
			Transaction:  tx,
			WalletName:   walletNames[tx.WalletID],
			CategoryName: categoryNames[tx.CategoryID],
		})
	}
	return views, nil
}

// WalletBalance возвращает стартовый баланс кошелька плюс сумму его транзакций
func (q *Queries) WalletBalance(ctx context.Context, walletID string) (float64, error) {
	wallet, err := q.Wallet(ctx, walletID)
	if err != nil {
		return 0, err
	}

	transactions, err := q.Transactions(ctx, TransactionFilter{WalletID: walletID})
	if err != nil {
		return 0, err
	}

	balance := wallet.Balance
	for _, tx := range transactions {
		balance += tx.Amount
	}
	return balance, nil
}

// Recurrings возвращает все шаблоны регулярных платежей
func (q *Queries) Recurrings(ctx context.Context) ([]*models.Recurring, error) {
	rows, err := q.rows.ListRows(ctx, models.CollectionRecurrings)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurrings: %w", err)
	}

	recurrings := make([]*models.Recurring, 0, len(rows))
	for id, fields := range rows {
		recurrings = append(recurrings, models.RecurringFromFields(id, fields))
	}
	sort.Slice(recurrings, func(i, j int) bool {
		if recurrings[i].Name != recurrings[j].Name {
			return recurrings[i].Name < recurrings[j].Name
		}
		return recurrings[i].ID < recurrings[j].ID
	})
	return recurrings, nil
}

// RecurringLogs возвращает записи повторений шаблона, свежие первыми
func (q *Queries) RecurringLogs(ctx context.Context, recurringID string) ([]*models.RecurringLog, error) {
	rows, err := q.rows.ListRows(ctx, models.CollectionRecurringLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring logs: %w", err)
	}

	logs := make([]*models.RecurringLog, 0, len(rows))
	for id, fields := range rows {
		log := models.RecurringLogFromFields(id, fields)
		if recurringID != "" && log.RecurringID != recurringID {
			continue
		}
		logs = append(logs, log)
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].Date.Equal(logs[j].Date) {
			return logs[i].Date.After(logs[j].Date)
		}
		return logs[i].ID < logs[j].ID
	})
	return logs, nil
}

// collectionNames строит map[entityID]name для join-запросов
func (q *Queries) collectionNames(ctx context.Context, collection string) (map[string]string, error) {
	rows, err := q.rows.ListRows(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	names := make(map[string]string, len(rows))
	for id, fields := range rows {
		name, _ := fields["name"].(string)
		names[id] = name
	}
	return names, nil
}
