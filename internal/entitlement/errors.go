package entitlement

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

var (
	// ErrNotFound запись с указанным идентификатором не существует.
	ErrNotFound = errors.New("subscription not found")
	// ErrInvalidTransition запрошенный переход статуса запрещён.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyUID не указан идентификатор пользователя.
	ErrEmptyUID = errors.New("uid is required")
	// ErrUserNotFound профиль пользователя отсутствует.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateTransaction транзакция провайдера уже выдала премиум.
	ErrDuplicateTransaction = errors.New("transaction already processed")
)

// InvalidPlanError неизвестный идентификатор плана.
type InvalidPlanError struct {
	PlanID models.PlanID
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %q", string(e.PlanID))
}

// InvalidProviderError платёжный канал вне закрытого списка.
type InvalidProviderError struct {
	Provider models.Provider
}

func (e *InvalidProviderError) Error() string {
	return fmt.Sprintf("invalid provider: %q", string(e.Provider))
}

// InvalidStatusError статус вне перечисления active/cancelled/expired.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status: %q", e.Status)
}

// RepositoryError сбой нижележащего хранилища (сеть, права, квоты).
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// IsValidation сообщает, что ошибка вызвана входными данными
// и повторять операцию бессмысленно.
func IsValidation(err error) bool {
	var planErr *InvalidPlanError
	var providerErr *InvalidProviderError
	var statusErr *InvalidStatusError
	return errors.As(err, &planErr) || errors.As(err, &providerErr) ||
		errors.As(err, &statusErr) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrEmptyUID)
}

// IsRepository сообщает, что ошибка пришла из хранилища.
func IsRepository(err error) bool {
	var repoErr *RepositoryError
	return errors.As(err, &repoErr)
}
