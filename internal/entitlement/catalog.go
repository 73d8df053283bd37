// Package entitlement содержит чистую логику премиум-доступа: каталог планов,
// расчёт даты окончания, вычисление роли по набору подписок и таксономию ошибок.
// Пакет не выполняет ввода-вывода.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/premium-entitlement/internal/lib/month"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

var planMonths = map[models.PlanID]int{
	models.Premium1m:  1,
	models.Premium3m:  3,
	models.Premium6m:  6,
	models.Premium12m: 12,
	models.Premium1y:  12,
}

// MonthsFor возвращает длительность плана в месяцах.
func MonthsFor(planID models.PlanID) (int, error) {
	n, ok := planMonths[planID]
	if !ok {
		return 0, &InvalidPlanError{PlanID: planID}
	}
	return n, nil
}

// ParsePlan проверяет строку и приводит её к PlanID.
func ParsePlan(s string) (models.PlanID, error) {
	id := models.PlanID(s)
	if _, err := MonthsFor(id); err != nil {
		return "", err
	}
	return id, nil
}

// ParseProvider проверяет платёжный канал. Пустая строка допустима: канал не указан.
func ParseProvider(s string) (models.Provider, error) {
	p := models.Provider(s)
	if p != "" && !p.Valid() {
		return "", &InvalidProviderError{Provider: p}
	}
	return p, nil
}

// ParseStatus проверяет строку и приводит её к Status.
func ParseStatus(s string) (models.Status, error) {
	st := models.Status(s)
	if !st.Valid() {
		return "", &InvalidStatusError{Status: s}
	}
	return st, nil
}

// CalcExpires вычисляет момент окончания: start плюс длительность плана
// в календарных месяцах (с прижатием к концу месяца, см. month.Add).
func CalcExpires(start time.Time, planID models.PlanID) (time.Time, error) {
	n, err := MonthsFor(planID)
	if err != nil {
		return time.Time{}, err
	}
	return month.Add(start, n), nil
}

// Anchor возвращает момент, от которого отсчитывается новая выдача:
// более поздний из now и окончания текущей активной записи.
func Anchor(latest *models.Subscription, now time.Time) time.Time {
	if latest != nil && latest.ExpiresAt.After(now) {
		return latest.ExpiresAt
	}
	return now
}
