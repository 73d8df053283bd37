// Package rolesync пересчитывает роль пользователя по его подпискам и записывает её в профиль.
package rolesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Recorder учитывает записанные роли.
type Recorder interface {
	RoleSynced(role string)
}

// Synchronizer приводит роль пользователя в соответствие с активными подписками.
type Synchronizer struct {
	policy entitlement.RolePolicy
	rec    Recorder
	log    *slog.Logger
	now    func() time.Time
}

// New создаёт Synchronizer. rec может быть nil.
func New(policy entitlement.RolePolicy, rec Recorder, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		policy: policy,
		rec:    rec,
		log:    log,
		now:    time.Now,
	}
}

// WithClock возвращает копию с подменённым источником времени.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	c := *s
	c.now = now
	return &c
}

// Policy возвращает действующее правило вычисления роли.
func (s *Synchronizer) Policy() entitlement.RolePolicy {
	return s.policy
}

// Sync читает активные подписки uid через repo, вычисляет роль и записывает её.
// Запись выполняется всегда, даже если роль не изменилась. Роль admin не трогается.
// Вызывается внутри транзакции, уже заблокировавшей профиль.
func (s *Synchronizer) Sync(ctx context.Context, repo entitlement.Repository, uid string) (models.Role, error) {
	const op = "rolesync.Sync"

	user, err := repo.GetUser(ctx, uid)
	switch {
	case errors.Is(err, entitlement.ErrUserNotFound):
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	case user.Role == models.RoleAdmin:
		s.log.Debug("admin role left untouched", sl.UID(uid))
		return models.RoleAdmin, nil
	}

	status := models.StatusActive
	subs, err := repo.List(ctx, models.Filter{UID: &uid, Status: &status})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	role := entitlement.DeriveRole(subs, s.policy, s.now())
	if err = repo.SetUserRole(ctx, uid, role); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.rec != nil {
		s.rec.RoleSynced(string(role))
	}
	s.log.Debug("role synced", sl.UID(uid), slog.String("role", string(role)), slog.Int("active", len(subs)))
	return role, nil
}
