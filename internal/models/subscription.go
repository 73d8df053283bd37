// Package models содержит доменные структуры премиум-доступа: записи подписок,
// перечисления тарифов, платёжных каналов и статусов, а также вспомогательные
// типы для фильтрации и частичного обновления записей.
package models

import "time"

// PlanID идентификатор тарифного плана.
type PlanID string

// Тарифные планы. Premium12m и Premium1y синонимы (12 месяцев).
const (
	Premium1m  PlanID = "premium1m"
	Premium3m  PlanID = "premium3m"
	Premium6m  PlanID = "premium6m"
	Premium12m PlanID = "premium12m"
	Premium1y  PlanID = "premium1y"
)

// Provider платёжный канал, через который была оформлена подписка.
// На расчёт срока действия не влияет.
type Provider string

const (
	ProviderIAP     Provider = "iap"
	ProviderMomo    Provider = "momo"
	ProviderZaloPay Provider = "zalopay"
	ProviderVNPay   Provider = "vnpay"
	ProviderSandbox Provider = "sandbox"
)

// Valid сообщает, входит ли провайдер в закрытый список.
func (p Provider) Valid() bool {
	switch p {
	case ProviderIAP, ProviderMomo, ProviderZaloPay, ProviderVNPay, ProviderSandbox:
		return true
	}
	return false
}

// Status статус записи подписки.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid сообщает, является ли статус одним из трёх допустимых значений.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Subscription одна запись о покупке или ручной выдаче премиума.
// Записи образуют историю: продление всегда создаёт новую запись.
type Subscription struct {
	ID            string    `json:"id"`
	UID           string    `json:"uid"`
	PlanID        PlanID    `json:"plan_id"`
	Provider      Provider  `json:"provider"`
	Status        Status    `json:"status"`
	StartedAt     time.Time `json:"started_at"` // Момент оформления записи
	AnchorAt      time.Time `json:"anchor_at"`  // Момент, от которого считается срок
	ExpiresAt     time.Time `json:"expires_at"` // Всегда AnchorAt + срок плана
	CreatedBy     *string   `json:"created_by,omitempty"`
	Note          *string   `json:"note,omitempty"`
	TransactionID *string   `json:"transaction_id,omitempty"` // Идентификатор оплаты у провайдера, пуст для ручной выдачи
	UpdatedAt     time.Time `json:"updated_at"`
}

// Filter параметры выборки подписок. Пустые поля не участвуют в фильтрации.
type Filter struct {
	UID     *string
	Status  *Status
	Limit   int
	OrderBy OrderField
}

// OrderField поле сортировки (всегда по убыванию).
type OrderField string

const (
	OrderByStartedAt OrderField = "started_at"
	OrderByExpiresAt OrderField = "expires_at"
)

// SubscriptionPatch частичное обновление записи. nil означает «не менять».
// ExpiresAt напрямую не задаётся: при смене плана он пересчитывается.
type SubscriptionPatch struct {
	PlanID   *PlanID
	Provider *Provider
	Status   *Status
	Note     *string

	expiresAt *time.Time
}

// WithExpiresAt возвращает копию патча с пересчитанным сроком.
// Используется только сервисом после вызова калькулятора.
func (p SubscriptionPatch) WithExpiresAt(t time.Time) SubscriptionPatch {
	p.expiresAt = &t
	return p
}

// ExpiresAt возвращает пересчитанный срок, если он был задан.
func (p SubscriptionPatch) ExpiresAt() *time.Time {
	return p.expiresAt
}

// Empty сообщает, что патч ничего не меняет.
func (p SubscriptionPatch) Empty() bool {
	return p.PlanID == nil && p.Provider == nil && p.Status == nil && p.Note == nil && p.expiresAt == nil
}

// CreateRequest параметры создания подписки.
type CreateRequest struct {
	UID           string
	PlanID        PlanID
	Provider      Provider
	CreatedBy     *string
	Note          *string
	TransactionID *string // Одна транзакция провайдера выдаёт премиум не больше одного раза
}

// DummyCreateRequest принимает данные из JSON до валидации.
type DummyCreateRequest struct {
	UID      string `json:"uid" validate:"required"`
	PlanID   string `json:"plan_id" validate:"required,oneof=premium1m premium3m premium6m premium12m premium1y"`
	Provider string `json:"provider" validate:"omitempty,oneof=iap momo zalopay vnpay sandbox"`
	Note     string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// DummyPatchRequest принимает частичное обновление из JSON.
type DummyPatchRequest struct {
	PlanID   *string `json:"plan_id,omitempty" validate:"omitempty,oneof=premium1m premium3m premium6m premium12m premium1y"`
	Provider *string `json:"provider,omitempty" validate:"omitempty,oneof=iap momo zalopay vnpay sandbox"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=active cancelled expired"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=500"`
}
