package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var subscriptionColumns = []string{
	"id", "uid", "plan_id", "provider", "status",
	"started_at", "anchor_at", "expires_at", "created_by", "note", "transaction_id", "updated_at",
}

// uniqueViolation код ошибки PostgreSQL при нарушении уникального индекса.
const uniqueViolation = "23505"

// Create сохраняет запись под новым идентификатором и проставляет updated_at.
func (r *Repo) Create(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.Create"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	sub.ID = uuid.NewString()
	query, args, err := psql.Insert("subscriptions").
		Columns(subscriptionColumns[:11]...).
		Values(sub.ID, sub.UID, string(sub.PlanID), nullString(string(sub.Provider)), string(sub.Status),
			sub.StartedAt, sub.AnchorAt, sub.ExpiresAt, sub.CreatedBy, sub.Note, sub.TransactionID).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = r.q.QueryRow(ctx, query, args...).Scan(&sub.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, entitlement.ErrDuplicateTransaction)
		}
		return nil, repoErr(op, err)
	}
	return &sub, nil
}

// GetByTransaction возвращает запись, выданную по транзакции провайдера.
// Если такой транзакции не было, возвращает nil без ошибки.
func (r *Repo) GetByTransaction(ctx context.Context, provider models.Provider, transactionID string) (*models.Subscription, error) {
	const op = "storage.GetByTransaction"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"provider": string(provider), "transaction_id": transactionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repoErr(op, err)
	}
	return sub, nil
}

// GetByID возвращает запись по идентификатору.
func (r *Repo) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetByID"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op)
	}
	if err != nil {
		return nil, repoErr(op, err)
	}
	return sub, nil
}

// GetLatestActiveForUser возвращает активную запись пользователя с самым поздним
// сроком окончания. Если активных записей нет, возвращает nil без ошибки.
func (r *Repo) GetLatestActiveForUser(ctx context.Context, uid string) (*models.Subscription, error) {
	const op = "storage.GetLatestActiveForUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"uid": uid, "status": string(models.StatusActive)}).
		OrderBy("expires_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repoErr(op, err)
	}
	return sub, nil
}

// List возвращает записи, удовлетворяющие фильтру, по убыванию выбранного поля.
func (r *Repo) List(ctx context.Context, filter models.Filter) ([]*models.Subscription, error) {
	const op = "storage.List"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	b := psql.Select(subscriptionColumns...).From("subscriptions")
	if filter.UID != nil {
		b = b.Where(sq.Eq{"uid": *filter.UID})
	}
	if filter.Status != nil {
		b = b.Where(sq.Eq{"status": string(*filter.Status)})
	}
	orderBy := models.OrderByStartedAt
	if filter.OrderBy == models.OrderByExpiresAt {
		orderBy = models.OrderByExpiresAt
	}
	b = b.OrderBy(string(orderBy)+" DESC", "id")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.querySubscriptions(ctx, op, query, args...)
}

// ListDueForExpiry возвращает активные записи, срок которых наступил к now.
func (r *Repo) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	const op = "storage.ListDueForExpiry"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	b := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"status": string(models.StatusActive)}).
		Where(sq.LtOrEq{"expires_at": now}).
		OrderBy("expires_at")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.querySubscriptions(ctx, op, query, args...)
}

// Update применяет непустые поля патча и проставляет updated_at.
func (r *Repo) Update(ctx context.Context, id string, patch models.SubscriptionPatch) (*models.Subscription, error) {
	const op = "storage.Update"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	b := psql.Update("subscriptions").Set("updated_at", sq.Expr("now()"))
	if patch.PlanID != nil {
		b = b.Set("plan_id", string(*patch.PlanID))
	}
	if patch.Provider != nil {
		b = b.Set("provider", nullString(string(*patch.Provider)))
	}
	if patch.Status != nil {
		b = b.Set("status", string(*patch.Status))
	}
	if patch.Note != nil {
		b = b.Set("note", *patch.Note)
	}
	if expiresAt := patch.ExpiresAt(); expiresAt != nil {
		b = b.Set("expires_at", *expiresAt)
	}

	query, args, err := b.Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(subscriptionColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op)
	}
	if err != nil {
		return nil, repoErr(op, err)
	}
	return sub, nil
}

// Delete удаляет запись. Отсутствие записи возвращает ErrNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	const op = "storage.Delete"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	tag, err := r.q.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return repoErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}

func (r *Repo) querySubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, repoErr(op, err)
	}
	defer rows.Close()

	res := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, repoErr(op, err)
		}
		res = append(res, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, repoErr(op, err)
	}
	return res, nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var (
		sub                       models.Subscription
		planID, status            string
		provider, createdBy, note sql.NullString
		transactionID             sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.UID, &planID, &provider, &status,
		&sub.StartedAt, &sub.AnchorAt, &sub.ExpiresAt, &createdBy, &note, &transactionID, &sub.UpdatedAt); err != nil {
		return nil, err
	}

	sub.PlanID = models.PlanID(planID)
	sub.Status = models.Status(status)
	if provider.Valid {
		sub.Provider = models.Provider(provider.String)
	}
	if createdBy.Valid {
		sub.CreatedBy = &createdBy.String
	}
	if note.Valid {
		sub.Note = &note.String
	}
	if transactionID.Valid {
		sub.TransactionID = &transactionID.String
	}
	return &sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
