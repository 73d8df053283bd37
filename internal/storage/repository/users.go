package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// LockUser создаёт профиль с ролью user, если его нет, и берёт на строку
// блокировку FOR UPDATE. Вне транзакции блокировка снимается сразу.
func (r *Repo) LockUser(ctx context.Context, uid string) error {
	const op = "storage.LockUser"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	if _, err := r.q.Exec(ctx, `INSERT INTO users (uid, role) VALUES ($1, $2)
			  ON CONFLICT (uid) DO NOTHING`, uid, string(models.RoleUser)); err != nil {
		return repoErr(op, err)
	}

	var locked string
	if err := r.q.QueryRow(ctx, `SELECT uid FROM users WHERE uid = $1 FOR UPDATE`, uid).Scan(&locked); err != nil {
		return repoErr(op, err)
	}
	return nil
}

// GetUser возвращает профиль пользователя.
func (r *Repo) GetUser(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var (
		u    models.User
		role string
	)
	err := r.q.QueryRow(ctx, `SELECT uid, role, updated_at FROM users WHERE uid = $1`, uid).
		Scan(&u.UID, &role, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, entitlement.ErrUserNotFound)
	}
	if err != nil {
		return nil, repoErr(op, err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

// SetUserRole записывает роль. Профиль создаётся при отсутствии,
// роль admin не перезаписывается.
func (r *Repo) SetUserRole(ctx context.Context, uid string, role models.Role) error {
	const op = "storage.SetUserRole"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (uid, role, updated_at) VALUES ($1, $2, now())
			  ON CONFLICT (uid) DO UPDATE
			  SET role = EXCLUDED.role, updated_at = now()
			  WHERE users.role <> $3`
	if _, err := r.q.Exec(ctx, query, uid, string(role), string(models.RoleAdmin)); err != nil {
		return repoErr(op, err)
	}
	return nil
}
