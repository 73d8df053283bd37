// Package services содержит бизнес-логику премиум-доступа: создание и продление
// подписок, смену статусов, удаление и синхронизацию роли пользователя.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/events"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
	"github.com/magabrotheeeer/premium-entitlement/internal/services/rolesync"
)

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Publisher отправляет доменные события.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Metrics учитывает результаты операций.
type Metrics interface {
	Operation(name string, err error)
}

// Options параметры повторов и кеширования.
type Options struct {
	CacheTTL             time.Duration
	RetryAttempts        uint64
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// EntitlementService единственная точка изменения подписок. Каждая мутация
// выполняется в одной транзакции вместе с пересчётом роли пользователя.
type EntitlementService struct {
	store   entitlement.Store
	roles   *rolesync.Synchronizer
	cache   Cache
	events  Publisher
	metrics Metrics
	log     *slog.Logger
	opts    Options
	now     func() time.Time
}

// NewEntitlementService создает новый экземпляр EntitlementService.
// cache, events и metrics могут быть nil.
func NewEntitlementService(store entitlement.Store, roles *rolesync.Synchronizer, cache Cache,
	events Publisher, metrics Metrics, log *slog.Logger, opts Options) *EntitlementService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &EntitlementService{
		store:   store,
		roles:   roles,
		cache:   cache,
		events:  events,
		metrics: metrics,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// WithClock подменяет источник времени сервиса и синхронизатора ролей.
func (s *EntitlementService) WithClock(now func() time.Time) *EntitlementService {
	s.now = now
	s.roles = s.roles.WithClock(now)
	return s
}

// CreateSubscription создаёт запись, начинающуюся сейчас, без учёта уже
// действующих подписок, и пересчитывает роль.
func (s *EntitlementService) CreateSubscription(ctx context.Context, req models.CreateRequest) (sub *models.Subscription, err error) {
	const op = "services.CreateSubscription"
	defer s.observe("create", &err)

	if err = validateRequest(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var role models.Role
	err = s.withRetry(ctx, func() error {
		now := s.now()
		expiresAt, err := entitlement.CalcExpires(now, req.PlanID)
		if err != nil {
			return err
		}
		return s.store.RunInTx(ctx, func(repo entitlement.Repository) error {
			if err := repo.LockUser(ctx, req.UID); err != nil {
				return err
			}
			sub, err = repo.Create(ctx, newSubscription(req, now, now, expiresAt))
			if err != nil {
				return err
			}
			role, err = s.roles.Sync(ctx, repo, req.UID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created new subscription", sl.SubID(sub.ID), sl.UID(sub.UID),
		slog.String("plan_id", string(sub.PlanID)), slog.Time("expires_at", sub.ExpiresAt))
	s.afterCommit(ctx, events.SubscriptionCreated, sub, role)
	return sub, nil
}

// GrantPremium выдаёт премиум с накоплением: новая запись отсчитывается от
// окончания последней активной записи, если оно в будущем, иначе от текущего момента.
// Повторная выдача по уже записанной транзакции провайдера возвращает ErrDuplicateTransaction.
func (s *EntitlementService) GrantPremium(ctx context.Context, req models.CreateRequest) (sub *models.Subscription, err error) {
	const op = "services.GrantPremium"
	defer s.observe("grant", &err)

	if err = validateRequest(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var role models.Role
	err = s.withRetry(ctx, func() error {
		return s.store.RunInTx(ctx, func(repo entitlement.Repository) error {
			if err := repo.LockUser(ctx, req.UID); err != nil {
				return err
			}
			if req.TransactionID != nil {
				dup, err := repo.GetByTransaction(ctx, req.Provider, *req.TransactionID)
				if err != nil {
					return err
				}
				if dup != nil {
					return fmt.Errorf("transaction %s granted %s: %w", *req.TransactionID, dup.ID, entitlement.ErrDuplicateTransaction)
				}
			}
			latest, err := repo.GetLatestActiveForUser(ctx, req.UID)
			if err != nil {
				return err
			}

			now := s.now()
			anchor := entitlement.Anchor(latest, now)
			expiresAt, err := entitlement.CalcExpires(anchor, req.PlanID)
			if err != nil {
				return err
			}
			sub, err = repo.Create(ctx, newSubscription(req, now, anchor, expiresAt))
			if err != nil {
				return err
			}
			role, err = s.roles.Sync(ctx, repo, req.UID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("premium granted", sl.SubID(sub.ID), sl.UID(sub.UID),
		slog.String("plan_id", string(sub.PlanID)), slog.Time("anchor_at", sub.AnchorAt),
		slog.Time("expires_at", sub.ExpiresAt))
	s.afterCommit(ctx, events.SubscriptionGranted, sub, role)
	return sub, nil
}

// CancelSubscription переводит запись в cancelled и пересчитывает роль.
func (s *EntitlementService) CancelSubscription(ctx context.Context, id string) (sub *models.Subscription, err error) {
	const op = "services.CancelSubscription"
	defer s.observe("cancel", &err)

	status := models.StatusCancelled
	sub, err = s.update(ctx, id, models.SubscriptionPatch{Status: &status}, events.SubscriptionCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// MarkExpired переводит запись в expired и пересчитывает роль.
func (s *EntitlementService) MarkExpired(ctx context.Context, id string) (sub *models.Subscription, err error) {
	const op = "services.MarkExpired"
	defer s.observe("expire", &err)

	status := models.StatusExpired
	sub, err = s.update(ctx, id, models.SubscriptionPatch{Status: &status}, events.SubscriptionExpired)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpdateSubscription применяет административный патч. Смена плана пересчитывает
// ExpiresAt от AnchorAt записи, смена статуса подчиняется правилам переходов.
func (s *EntitlementService) UpdateSubscription(ctx context.Context, id string, patch models.SubscriptionPatch) (sub *models.Subscription, err error) {
	const op = "services.UpdateSubscription"
	defer s.observe("update", &err)

	sub, err = s.update(ctx, id, patch, events.SubscriptionUpdated)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// DeleteSubscription удаляет запись и пересчитывает роль её владельца.
func (s *EntitlementService) DeleteSubscription(ctx context.Context, id string) (err error) {
	const op = "services.DeleteSubscription"
	defer s.observe("delete", &err)

	var (
		deleted *models.Subscription
		role    models.Role
	)
	err = s.withRetry(ctx, func() error {
		return s.store.RunInTx(ctx, func(repo entitlement.Repository) error {
			current, err := s.lockSubscription(ctx, repo, id)
			if err != nil {
				return err
			}
			if err = repo.Delete(ctx, id); err != nil {
				return err
			}
			deleted = current
			role, err = s.roles.Sync(ctx, repo, current.UID)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription deleted", sl.SubID(id), sl.UID(deleted.UID))
	s.afterCommit(ctx, events.SubscriptionDeleted, deleted, role)
	return nil
}

// SyncUserRole пересчитывает роль пользователя вне какой-либо мутации.
func (s *EntitlementService) SyncUserRole(ctx context.Context, uid string) (role models.Role, err error) {
	const op = "services.SyncUserRole"
	defer s.observe("sync_role", &err)

	err = s.withRetry(ctx, func() error {
		return s.store.RunInTx(ctx, func(repo entitlement.Repository) error {
			if err := repo.LockUser(ctx, uid); err != nil {
				return err
			}
			role, err = s.roles.Sync(ctx, repo, uid)
			return err
		})
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, uid)
	return role, nil
}

// GetSubscription возвращает запись по идентификатору.
func (s *EntitlementService) GetSubscription(ctx context.Context, id string) (sub *models.Subscription, err error) {
	const op = "services.GetSubscription"

	err = s.withRetry(ctx, func() error {
		sub, err = s.store.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptions возвращает записи по фильтру.
func (s *EntitlementService) ListSubscriptions(ctx context.Context, filter models.Filter) (subs []*models.Subscription, err error) {
	const op = "services.ListSubscriptions"

	err = s.withRetry(ctx, func() error {
		subs, err = s.store.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// GetEntitlement возвращает итоговое состояние доступа, используя кеш или хранилище.
func (s *EntitlementService) GetEntitlement(ctx context.Context, uid string) (*models.Entitlement, error) {
	const op = "services.GetEntitlement"

	key := entitlementKey(uid)
	if s.cache != nil {
		var cached models.Entitlement
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read entitlement from cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	var (
		user   *models.User
		latest *models.Subscription
	)
	err := s.withRetry(ctx, func() error {
		var err error
		user, err = s.store.GetUser(ctx, uid)
		if err != nil && !errors.Is(err, entitlement.ErrUserNotFound) {
			return err
		}
		latest, err = s.store.GetLatestActiveForUser(ctx, uid)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	ttl := s.opts.CacheTTL
	res := &models.Entitlement{UID: uid, Role: models.RoleUser}
	if user != nil {
		res.Role = user.Role
	}
	if latest != nil {
		res.Premium = s.roles.Policy().Grants(latest, now)
		expiresAt := latest.ExpiresAt
		res.ExpiresAt = &expiresAt
		// Кешированный ответ не должен пережить срок последней записи.
		if left := latest.ExpiresAt.Sub(now); left < ttl {
			ttl = left
		}
	}

	if s.cache != nil && ttl > 0 {
		if err := s.cache.Set(ctx, key, res, ttl); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
		}
	}
	return res, nil
}

// ExpireDue помечает просроченными активные записи с наступившим сроком
// и возвращает их число. Ошибки отдельных записей не прерывают обход и
// возвращаются вместе. Записи, уже изменённые или удалённые параллельно, ошибкой не считаются.
func (s *EntitlementService) ExpireDue(ctx context.Context, limit int) (int, error) {
	const op = "services.ExpireDue"

	var due []*models.Subscription
	err := s.withRetry(ctx, func() error {
		var err error
		due, err = s.store.ListDueForExpiry(ctx, s.now(), limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		expired int
		errs    []error
	)
	for _, sub := range due {
		if ctx.Err() != nil {
			return expired, fmt.Errorf("%s: %w", op, errors.Join(append(errs, ctx.Err())...))
		}
		if _, err := s.MarkExpired(ctx, sub.ID); err != nil {
			if errors.Is(err, entitlement.ErrNotFound) || errors.Is(err, entitlement.ErrInvalidTransition) {
				continue
			}
			s.log.Error("failed to expire subscription", sl.SubID(sub.ID), sl.Err(err))
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		expired++
	}
	if len(errs) > 0 {
		return expired, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return expired, nil
}

func (s *EntitlementService) update(ctx context.Context, id string, patch models.SubscriptionPatch, kind events.Kind) (*models.Subscription, error) {
	if patch.PlanID != nil {
		if _, err := entitlement.MonthsFor(*patch.PlanID); err != nil {
			return nil, err
		}
	}
	if patch.Provider != nil {
		if _, err := entitlement.ParseProvider(string(*patch.Provider)); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, &entitlement.InvalidStatusError{Status: string(*patch.Status)}
	}

	var (
		sub  *models.Subscription
		role models.Role
	)
	err := s.withRetry(ctx, func() error {
		return s.store.RunInTx(ctx, func(repo entitlement.Repository) error {
			current, err := s.lockSubscription(ctx, repo, id)
			if err != nil {
				return err
			}

			p := patch
			if p.Status != nil {
				if err = entitlement.CanTransition(current.Status, *p.Status); err != nil {
					return err
				}
			}
			if p.PlanID != nil && *p.PlanID != current.PlanID {
				expiresAt, err := entitlement.CalcExpires(current.AnchorAt, *p.PlanID)
				if err != nil {
					return err
				}
				p = p.WithExpiresAt(expiresAt)
			}

			sub, err = repo.Update(ctx, id, p)
			if err != nil {
				return err
			}
			role, err = s.roles.Sync(ctx, repo, sub.UID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription updated", sl.SubID(sub.ID), sl.UID(sub.UID),
		slog.String("status", string(sub.Status)), slog.String("role", string(role)))
	s.afterCommit(ctx, kind, sub, role)
	return sub, nil
}

// lockSubscription находит запись, блокирует профиль её владельца и перечитывает
// запись уже под блокировкой.
func (s *EntitlementService) lockSubscription(ctx context.Context, repo entitlement.Repository, id string) (*models.Subscription, error) {
	sub, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = repo.LockUser(ctx, sub.UID); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, id)
}

// withRetry повторяет fn с экспоненциальной задержкой только для сбоев хранилища.
func (s *EntitlementService) withRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if s.opts.RetryInitialInterval > 0 {
		b.InitialInterval = s.opts.RetryInitialInterval
	}
	if s.opts.RetryMaxInterval > 0 {
		b.MaxInterval = s.opts.RetryMaxInterval
	}

	operation := func() error {
		err := fn()
		if err != nil && !entitlement.IsRepository(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("repository call failed, retrying", sl.Err(err), slog.Duration("wait", wait))
	}
	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, s.opts.RetryAttempts), ctx), notify)
}

func (s *EntitlementService) afterCommit(ctx context.Context, kind events.Kind, sub *models.Subscription, role models.Role) {
	s.invalidate(ctx, sub.UID)
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, events.Event{
		Kind:           kind,
		SubscriptionID: sub.ID,
		UID:            sub.UID,
		Role:           role,
		OccurredAt:     s.now(),
	})
	if err != nil {
		s.log.Warn("failed to publish event", slog.String("kind", string(kind)), sl.SubID(sub.ID), sl.Err(err))
	}
}

func (s *EntitlementService) invalidate(ctx context.Context, uid string) {
	if s.cache == nil {
		return
	}
	key := entitlementKey(uid)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *EntitlementService) observe(name string, err *error) {
	if s.metrics != nil {
		s.metrics.Operation(name, *err)
	}
}

func validateRequest(req models.CreateRequest) error {
	if req.UID == "" {
		return entitlement.ErrEmptyUID
	}
	if _, err := entitlement.MonthsFor(req.PlanID); err != nil {
		return err
	}
	if _, err := entitlement.ParseProvider(string(req.Provider)); err != nil {
		return err
	}
	return nil
}

func newSubscription(req models.CreateRequest, startedAt, anchorAt, expiresAt time.Time) models.Subscription {
	return models.Subscription{
		UID:           req.UID,
		PlanID:        req.PlanID,
		Provider:      req.Provider,
		Status:        models.StatusActive,
		StartedAt:     startedAt,
		AnchorAt:      anchorAt,
		ExpiresAt:     expiresAt,
		CreatedBy:     req.CreatedBy,
		Note:          req.Note,
		TransactionID: req.TransactionID,
	}
}

func entitlementKey(uid string) string {
	return "entitlement:" + uid
}
