package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Sandbox тестовый шлюз: сразу сообщает выбранный пользователем исход.
type Sandbox struct {
	service *PaymentService
}

// NewSandbox создаёт Sandbox поверх PaymentService.
func NewSandbox(service *PaymentService) *Sandbox {
	return &Sandbox{service: service}
}

// Checkout проводит покупку plan для uid с исходом outcome и возвращает
// идентификатор созданной транзакции.
func (s *Sandbox) Checkout(ctx context.Context, uid string, plan string, outcome models.GatewayStatus) (string, *models.Subscription, Result, error) {
	txID := "sandbox-" + uuid.NewString()
	sub, res, err := s.service.HandleOutcome(ctx, models.GatewayOutcome{
		TransactionID: txID,
		UID:           uid,
		PlanID:        plan,
		Provider:      string(models.ProviderSandbox),
		Status:        outcome,
	})
	return txID, sub, res, err
}
