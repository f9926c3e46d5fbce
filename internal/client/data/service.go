// Package data реализует локальные операции над финансовыми сущностями.
// Каждая запись проходит один и тот же путь: мутация документа, дельта
// в очередь отправки, обновление проекции. Чтение идёт мимо этого
// сервиса, напрямую через projection.Queries.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
	"github.com/HolyWalley/money-sub000/internal/document"
	"github.com/HolyWalley/money-sub000/internal/models"
)

// Ошибки валидации входных данных
var (
	ErrEmptyName       = errors.New("name must not be empty")
	ErrEmptyCurrency   = errors.New("currency must not be empty")
	ErrEmptyWalletID   = errors.New("wallet id must not be empty")
	ErrInvalidCategory = errors.New("category type must be income or expense")
	ErrZeroAmount      = errors.New("amount must not be zero")
)

// Projection применяет локальные изменения к материализованным строкам
type Projection interface {
	ApplyChanges(changes []document.Change) error
}

// Service определяет операции над сущностями пользователя
type Service interface {
	CreateWallet(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet) error
	DeleteWallet(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	CreateRecurring(ctx context.Context, recurring *models.Recurring) (*models.Recurring, error)
	UpdateRecurring(ctx context.Context, recurring *models.Recurring) error
	DeleteRecurring(ctx context.Context, id string) error

	// ApplyRecurring создаёт транзакцию по шаблону и фиксирует повторение
	ApplyRecurring(ctx context.Context, recurringID string, date time.Time) (*models.Transaction, error)
}

type service struct {
	logger *slog.Logger
	docs   storage.DocumentStorage
	proj   Projection
}

// NewService создает новый сервис данных
func NewService(logger *slog.Logger, docs storage.DocumentStorage, proj Projection) Service {
	return &service{
		logger: logger,
		docs:   docs,
		proj:   proj,
	}
}

// CreateWallet добавляет новый кошелёк
func (s *service) CreateWallet(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error) {
	if wallet.Name == "" {
		return nil, ErrEmptyName
	}
	if wallet.Currency == "" {
		return nil, ErrEmptyCurrency
	}
	if wallet.ID == "" {
		wallet.ID = uuid.New().String()
	}
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = time.Now().UTC()
	}

	if err := s.mutate(ctx, models.CollectionWallets, wallet.ID, wallet.Fields()); err != nil {
		return nil, err
	}
	return wallet, nil
}

// UpdateWallet перезаписывает поля кошелька
func (s *service) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == "" {
		return fmt.Errorf("wallet id is required")
	}
	if wallet.Name == "" {
		return ErrEmptyName
	}
	return s.mutate(ctx, models.CollectionWallets, wallet.ID, wallet.Fields())
}

// DeleteWallet удаляет кошелёк.
// Транзакции кошелька не трогаются: репликация не следит
// за ссылочной целостностью, осиротевшие записи допустимы.
func (s *service) DeleteWallet(ctx context.Context, id string) error {
	return s.remove(ctx, models.CollectionWallets, id)
}

// CreateCategory добавляет новую категорию
func (s *service) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.Name == "" {
		return nil, ErrEmptyName
	}
	if category.Type != models.CategoryTypeIncome && category.Type != models.CategoryTypeExpense {
		return nil, ErrInvalidCategory
	}
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	if err := s.mutate(ctx, models.CollectionCategories, category.ID, category.Fields()); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory перезаписывает поля категории
func (s *service) UpdateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		return fmt.Errorf("category id is required")
	}
	if category.Type != models.CategoryTypeIncome && category.Type != models.CategoryTypeExpense {
		return ErrInvalidCategory
	}
	return s.mutate(ctx, models.CollectionCategories, category.ID, category.Fields())
}

// DeleteCategory удаляет категорию
func (s *service) DeleteCategory(ctx context.Context, id string) error {
	return s.remove(ctx, models.CollectionCategories, id)
}

// CreateTransaction добавляет новую транзакцию
func (s *service) CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.WalletID == "" {
		return nil, ErrEmptyWalletID
	}
	if tx.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	if err := s.mutate(ctx, models.CollectionTransactions, tx.ID, tx.Fields()); err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction перезаписывает поля транзакции
func (s *service) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if tx.WalletID == "" {
		return ErrEmptyWalletID
	}
	return s.mutate(ctx, models.CollectionTransactions, tx.ID, tx.Fields())
}

// DeleteTransaction удаляет транзакцию
func (s *service) DeleteTransaction(ctx context.Context, id string) error {
	return s.remove(ctx, models.CollectionTransactions, id)
}

// CreateRecurring добавляет шаблон регулярного платежа
func (s *service) CreateRecurring(ctx context.Context, recurring *models.Recurring) (*models.Recurring, error) {
	if recurring.Name == "" {
		return nil, ErrEmptyName
	}
	if recurring.WalletID == "" {
		return nil, ErrEmptyWalletID
	}
	if recurring.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if recurring.ID == "" {
		recurring.ID = uuid.New().String()
	}
	if recurring.StartDate.IsZero() {
		recurring.StartDate = time.Now().UTC()
	}
	if recurring.CreatedAt.IsZero() {
		recurring.CreatedAt = time.Now().UTC()
	}

	if err := s.mutate(ctx, models.CollectionRecurrings, recurring.ID, recurring.Fields()); err != nil {
		return nil, err
	}
	return recurring, nil
}

// UpdateRecurring перезаписывает поля шаблона
func (s *service) UpdateRecurring(ctx context.Context, recurring *models.Recurring) error {
	if recurring.ID == "" {
		return fmt.Errorf("recurring id is required")
	}
	if recurring.Name == "" {
		return ErrEmptyName
	}
	return s.mutate(ctx, models.CollectionRecurrings, recurring.ID, recurring.Fields())
}

// DeleteRecurring удаляет шаблон регулярного платежа
func (s *service) DeleteRecurring(ctx context.Context, id string) error {
	return s.remove(ctx, models.CollectionRecurrings, id)
}

// ApplyRecurring создаёт транзакцию по шаблону и запись о повторении.
// Обе мутации идут в одном документе, но отдельными дельтами: если
// синхронизация оборвётся между ними, merge всё равно сойдётся.
func (s *service) ApplyRecurring(ctx context.Context, recurringID string, date time.Time) (*models.Transaction, error) {
	doc, err := s.loadDocument(ctx)
	if err != nil {
		return nil, err
	}

	fields, err := doc.Entity(models.CollectionRecurrings, recurringID)
	if err != nil {
		return nil, fmt.Errorf("recurring %s not found: %w", recurringID, err)
	}
	recurring := models.RecurringFromFields(recurringID, fields)

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:         uuid.New().String(),
		WalletID:   recurring.WalletID,
		CategoryID: recurring.CategoryID,
		Amount:     recurring.Amount,
		Note:       recurring.Name,
		Date:       date,
		CreatedAt:  now,
	}
	log := &models.RecurringLog{
		ID:            uuid.New().String(),
		RecurringID:   recurringID,
		TransactionID: tx.ID,
		Date:          date,
		CreatedAt:     now,
	}

	if err := s.applyMutation(ctx, doc, models.CollectionTransactions, tx.ID, tx.Fields()); err != nil {
		return nil, err
	}
	if err := s.applyMutation(ctx, doc, models.CollectionRecurringLogs, log.ID, log.Fields()); err != nil {
		return nil, err
	}

	s.logger.Info("recurring applied",
		"recurring_id", recurringID,
		"transaction_id", tx.ID,
		"date", date.Format("2006-01-02"))
	return tx, nil
}

// mutate выполняет одну запись сущности на свежезагруженном документе
func (s *service) mutate(ctx context.Context, collection, entityID string, fields map[string]any) error {
	doc, err := s.loadDocument(ctx)
	if err != nil {
		return err
	}
	return s.applyMutation(ctx, doc, collection, entityID, fields)
}

// applyMutation мутирует документ и фиксирует результат:
// состояние на диск, дельту в очередь, изменения в проекцию
func (s *service) applyMutation(ctx context.Context, doc *document.Document, collection, entityID string, fields map[string]any) error {
	delta, changes, err := doc.Mutate(collection, entityID, fields)
	if err != nil {
		return fmt.Errorf("failed to mutate %s/%s: %w", collection, entityID, err)
	}
	return s.commit(ctx, doc, delta, changes)
}

// remove удаляет сущность из документа
func (s *service) remove(ctx context.Context, collection, entityID string) error {
	doc, err := s.loadDocument(ctx)
	if err != nil {
		return err
	}

	delta, changes, err := doc.Remove(collection, entityID)
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", collection, entityID, err)
	}
	return s.commit(ctx, doc, delta, changes)
}

// commit сохраняет документ, ставит дельту в очередь и обновляет проекцию.
// Порядок важен: дельта попадает в очередь только вместе с состоянием,
// иначе повторный запуск потерял бы несинхронизированную мутацию.
func (s *service) commit(ctx context.Context, doc *document.Document, delta []byte, changes []document.Change) error {
	if err := s.docs.SaveDocumentState(ctx, doc.Save()); err != nil {
		return fmt.Errorf("failed to save document state: %w", err)
	}
	if _, err := s.docs.EnqueuePending(ctx, delta, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to enqueue delta: %w", err)
	}
	if err := s.proj.ApplyChanges(changes); err != nil {
		return fmt.Errorf("failed to update projection: %w", err)
	}
	return nil
}

// loadDocument открывает локальный документ, создавая пустой при первом запуске
func (s *service) loadDocument(ctx context.Context) (*document.Document, error) {
	deviceID, err := s.docs.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	state, err := s.docs.GetDocumentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read document state: %w", err)
	}
	if state == nil {
		doc, err := document.New(deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		return doc, nil
	}

	doc, err := document.Load(state, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}
