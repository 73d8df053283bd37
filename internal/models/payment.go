package models

// GatewayStatus терминальный результат работы платёжного шлюза.
type GatewayStatus string

const (
	GatewayOpened    GatewayStatus = "opened"
	GatewayCompleted GatewayStatus = "completed"
	GatewayCancelled GatewayStatus = "cancelled"
)

// GatewayOutcome результат покупки, сообщённый шлюзом.
type GatewayOutcome struct {
	TransactionID string        `json:"transaction_id" validate:"required"`
	UID           string        `json:"uid" validate:"required"`
	PlanID        string        `json:"plan_id" validate:"required,oneof=premium1m premium3m premium6m premium12m premium1y"`
	Provider      string        `json:"provider" validate:"required,oneof=iap momo zalopay vnpay sandbox"`
	Status        GatewayStatus `json:"status" validate:"required,oneof=opened completed cancelled"`
}

// DummySandboxCheckout запрос песочницы: пользователь выбирает план и желаемый исход.
type DummySandboxCheckout struct {
	PlanID  string `json:"plan_id" validate:"required,oneof=premium1m premium3m premium6m premium12m premium1y"`
	Outcome string `json:"outcome" validate:"required,oneof=opened completed cancelled"`
}
