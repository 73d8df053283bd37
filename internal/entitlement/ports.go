package entitlement

import (
	"context"
	"time"

	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Repository операции над коллекцией подписок и профилями пользователей.
// Реализация обязана возвращать ErrNotFound для несуществующего id
// и *RepositoryError для сбоев хранилища. Create с уже записанной парой
// (provider, transaction_id) возвращает ErrDuplicateTransaction.
type Repository interface {
	Create(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	// GetLatestActiveForUser возвращает активную запись с наибольшим ExpiresAt или nil.
	GetLatestActiveForUser(ctx context.Context, uid string) (*models.Subscription, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Subscription, error)
	// ListDueForExpiry возвращает активные записи с ExpiresAt <= now.
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error)
	Update(ctx context.Context, id string, patch models.SubscriptionPatch) (*models.Subscription, error)
	Delete(ctx context.Context, id string) error
	// GetByTransaction возвращает запись, выданную по транзакции провайдера, или nil.
	GetByTransaction(ctx context.Context, provider models.Provider, transactionID string) (*models.Subscription, error)

	// LockUser создаёт профиль при отсутствии и блокирует его до конца транзакции.
	LockUser(ctx context.Context, uid string) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	SetUserRole(ctx context.Context, uid string, role models.Role) error
}

// Store хранилище с поддержкой транзакций. fn получает Repository,
// привязанный к транзакции; ошибка fn откатывает транзакцию.
type Store interface {
	Repository
	RunInTx(ctx context.Context, fn func(repo Repository) error) error
}
