package entitlement

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// RolePolicy правило, по которому активная запись даёт премиум.
type RolePolicy string

const (
	// PolicyStatus достаточно статуса active, срок не проверяется.
	PolicyStatus RolePolicy = "status"
	// PolicyStatusAndExpiry дополнительно требуется ExpiresAt > now.
	PolicyStatusAndExpiry RolePolicy = "status_and_expiry"
)

// ParsePolicy разбирает значение из конфига. Пустая строка — PolicyStatus.
func ParsePolicy(s string) (RolePolicy, error) {
	switch RolePolicy(s) {
	case "", PolicyStatus:
		return PolicyStatus, nil
	case PolicyStatusAndExpiry:
		return PolicyStatusAndExpiry, nil
	}
	return "", fmt.Errorf("unknown role policy %q", s)
}

// Grants сообщает, даёт ли запись премиум в момент now.
func (p RolePolicy) Grants(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.Status != models.StatusActive {
		return false
	}
	if p == PolicyStatusAndExpiry {
		return sub.ExpiresAt.After(now)
	}
	return true
}

// DeriveRole чистая функция проекции: premium, если хотя бы одна запись
// даёт премиум по политике, иначе user.
func DeriveRole(subs []*models.Subscription, policy RolePolicy, now time.Time) models.Role {
	for _, s := range subs {
		if policy.Grants(s, now) {
			return models.RolePremium
		}
	}
	return models.RoleUser
}

// CanTransition проверяет переход статуса. Повторная установка того же
// статуса допустима и ничего не меняет.
func CanTransition(from, to models.Status) error {
	if !to.Valid() {
		return &InvalidStatusError{Status: string(to)}
	}
	if from == to {
		return nil
	}
	if from == models.StatusActive && (to == models.StatusCancelled || to == models.StatusExpired) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
