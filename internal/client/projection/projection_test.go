package projection

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/client/storage/boltdb"
	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
)

func setupTest(t *testing.T) (*Projector, *Queries, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProjector(logger, store), NewQueries(store), store
}

func TestProjector_ApplyChanges(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	changes := []document.Change{
		{
			Collection: models.CollectionWallets,
			EntityID:   "w1",
			Fields:     map[string]any{"name": "Cash", "currency": "EUR", "balance": 50.0, "created_at": "2026-01-01T00:00:00Z"},
		},
		{
			Collection: models.CollectionWallets,
			EntityID:   "w2",
			Fields:     map[string]any{"name": "Bank", "currency": "EUR", "balance": 0.0, "created_at": "2026-01-02T00:00:00Z"},
		},
	}
	require.NoError(t, projector.ApplyChanges(changes))

	wallets, err := queries.Wallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "Cash", wallets[0].Name, "старые кошельки первыми")
	assert.Equal(t, "Bank", wallets[1].Name)

	// Удаление снимает строку
	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionWallets, EntityID: "w1", Deleted: true},
	}))

	wallets, err = queries.Wallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "w2", wallets[0].ID)

	_, err = queries.Wallet(ctx, "w1")
	assert.ErrorIs(t, err, storage.ErrRowNotFound)
}

// countingRows считает батчи, доходящие до хранилища
type countingRows struct {
	*boltdb.Storage
	applyCalls int
}

func (c *countingRows) ApplyRows(ctx context.Context, changes []storage.RowChange) error {
	c.applyCalls++
	return c.Storage.ApplyRows(ctx, changes)
}

func TestProjector_ApplyChanges_SingleBatchPerChangeSet(t *testing.T) {
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rows := &countingRows{Storage: store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projector := NewProjector(logger, rows)

	changes := []document.Change{
		{Collection: models.CollectionWallets, EntityID: "w1", Fields: map[string]any{"name": "Cash"}},
		{Collection: models.CollectionWallets, EntityID: "w2", Fields: map[string]any{"name": "Bank"}},
		{Collection: models.CollectionCategories, EntityID: "c1", Deleted: true},
	}
	require.NoError(t, projector.ApplyChanges(changes))
	assert.Equal(t, 1, rows.applyCalls, "change set goes to storage as one batch")

	require.NoError(t, projector.ApplyChanges(nil))
	assert.Equal(t, 1, rows.applyCalls, "empty change set does not hit storage")
}

func TestProjector_Rebuild(t *testing.T) {
	ctx := context.Background()
	projector, queries, store := setupTest(t)

	// Мусорная строка, которой нет в документе, должна исчезнуть
	require.NoError(t, store.PutRow(ctx, models.CollectionWallets, "stale", map[string]any{"name": "Stale"}))

	doc, err := document.New("")
	require.NoError(t, err)
	_, _, err = doc.Mutate(models.CollectionWallets, "w1", map[string]any{"name": "Cash"})
	require.NoError(t, err)
	_, _, err = doc.Mutate(models.CollectionCategories, "c1", map[string]any{"name": "Food", "type": models.CategoryTypeExpense})
	require.NoError(t, err)

	require.NoError(t, projector.Rebuild(ctx, doc, models.Collections))

	wallets, err := queries.Wallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "Cash", wallets[0].Name)

	categories, err := queries.Categories(ctx, "")
	require.NoError(t, err)
	require.Len(t, categories, 1)
}

func TestQueries_CategoriesFilterByType(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionCategories, EntityID: "c1", Fields: map[string]any{"name": "Salary", "type": models.CategoryTypeIncome}},
		{Collection: models.CollectionCategories, EntityID: "c2", Fields: map[string]any{"name": "Food", "type": models.CategoryTypeExpense}},
		{Collection: models.CollectionCategories, EntityID: "c3", Fields: map[string]any{"name": "Cafe", "type": models.CategoryTypeExpense}},
	}))

	expenses, err := queries.Categories(ctx, models.CategoryTypeExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "Cafe", expenses[0].Name, "сортировка по имени")
	assert.Equal(t, "Food", expenses[1].Name)

	all, err := queries.Categories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestQueries_TransactionsFilterAndSort(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionTransactions, EntityID: "t1", Fields: map[string]any{
			"wallet_id": "w1", "category_id": "c1", "amount": -10.0, "date": "2026-03-01T12:00:00Z"}},
		{Collection: models.CollectionTransactions, EntityID: "t2", Fields: map[string]any{
			"wallet_id": "w1", "category_id": "c2", "amount": -20.0, "date": "2026-03-05T12:00:00Z"}},
		{Collection: models.CollectionTransactions, EntityID: "t3", Fields: map[string]any{
			"wallet_id": "w2", "category_id": "c1", "amount": 100.0, "date": "2026-03-03T12:00:00Z"}},
	}))

	// Все транзакции, свежие первыми
	all, err := queries.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t2", all[0].ID)
	assert.Equal(t, "t3", all[1].ID)
	assert.Equal(t, "t1", all[2].ID)

	// Фильтр по кошельку
	byWallet, err := queries.Transactions(ctx, TransactionFilter{WalletID: "w1"})
	require.NoError(t, err)
	assert.Len(t, byWallet, 2)

	// Фильтр по периоду: From включительно, To исключительно
	period, err := queries.Transactions(ctx, TransactionFilter{
		From: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, period, 1)
	assert.Equal(t, "t3", period[0].ID)
}

func TestQueries_TransactionViews_JoinsNames(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionWallets, EntityID: "w1", Fields: map[string]any{"name": "Cash"}},
		{Collection: models.CollectionCategories, EntityID: "c1", Fields: map[string]any{"name": "Food", "type": models.CategoryTypeExpense}},
		{Collection: models.CollectionTransactions, EntityID: "t1", Fields: map[string]any{
			"wallet_id": "w1", "category_id": "c1", "amount": -10.0, "date": "2026-03-01T12:00:00Z"}},
		{Collection: models.CollectionTransactions, EntityID: "t2", Fields: map[string]any{
			"wallet_id": "missing", "category_id": "c1", "amount": -5.0, "date": "2026-03-02T12:00:00Z"}},
	}))

	views, err := queries.TransactionViews(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Битая ссылка даёт пустое имя, а не ошибку
	assert.Equal(t, "", views[0].WalletName)
	assert.Equal(t, "Food", views[0].CategoryName)
	assert.Equal(t, "Cash", views[1].WalletName)
}

func TestQueries_WalletBalance(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionWallets, EntityID: "w1", Fields: map[string]any{"name": "Cash", "balance": 100.0}},
		{Collection: models.CollectionTransactions, EntityID: "t1", Fields: map[string]any{
			"wallet_id": "w1", "amount": -30.0, "date": "2026-03-01T12:00:00Z"}},
		{Collection: models.CollectionTransactions, EntityID: "t2", Fields: map[string]any{
			"wallet_id": "w1", "amount": 15.5, "date": "2026-03-02T12:00:00Z"}},
		{Collection: models.CollectionTransactions, EntityID: "t3", Fields: map[string]any{
			"wallet_id": "other", "amount": -999.0, "date": "2026-03-02T12:00:00Z"}},
	}))

	balance, err := queries.WalletBalance(ctx, "w1")
	require.NoError(t, err)
	assert.InDelta(t, 85.5, balance, 1e-9)
}

func TestQueries_RecurringLogs(t *testing.T) {
	ctx := context.Background()
	projector, queries, _ := setupTest(t)

	require.NoError(t, projector.ApplyChanges([]document.Change{
		{Collection: models.CollectionRecurrings, EntityID: "r1", Fields: map[string]any{
			"name": "Rent", "wallet_id": "w1", "amount": -500.0, "schedule": "monthly", "start_date": "2026-01-01"}},
		{Collection: models.CollectionRecurringLogs, EntityID: "l1", Fields: map[string]any{
			"recurring_id": "r1", "transaction_id": "t1", "date": "2026-01-01T00:00:00Z"}},
		{Collection: models.CollectionRecurringLogs, EntityID: "l2", Fields: map[string]any{
			"recurring_id": "r1", "transaction_id": "t2", "date": "2026-02-01T00:00:00Z"}},
		{Collection: models.CollectionRecurringLogs, EntityID: "l3", Fields: map[string]any{
			"recurring_id": "other", "transaction_id": "t3", "date": "2026-02-01T00:00:00Z"}},
	}))

	recurrings, err := queries.Recurrings(ctx)
	require.NoError(t, err)
	require.Len(t, recurrings, 1)
	assert.Equal(t, "Rent", recurrings[0].Name)

	logs, err := queries.RecurringLogs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "l2", logs[0].ID, "свежие первыми")
}
