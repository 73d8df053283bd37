// Package payment переводит результаты платёжных шлюзов в выдачу премиума.
package payment

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

// Granter выдаёт премиум с накоплением.
type Granter interface {
	GrantPremium(ctx context.Context, req models.CreateRequest) (*models.Subscription, error)
}

// Claimer однократно закрепляет ключ за первым обработчиком.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Extend(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Result итог обработки исхода.
type Result string

const (
	// ResultGranted премиум выдан.
	ResultGranted Result = "granted"
	// ResultDuplicate транзакция уже была обработана.
	ResultDuplicate Result = "duplicate"
	// ResultIgnored исход не означает оплату.
	ResultIgnored Result = "ignored"
)

// Options сроки жизни отметки о транзакции в Redis.
type Options struct {
	// ClaimTTL срок отметки на время выдачи. После падения обработчика
	// повторная доставка снова доходит до хранилища по его истечении.
	ClaimTTL time.Duration
	// IdempotencyTTL срок отметки об успешно обработанной транзакции.
	IdempotencyTTL time.Duration
}

// PaymentService обрабатывает исходы покупок.
type PaymentService struct {
	granter Granter
	claims  Claimer
	opts    Options
	log     *slog.Logger
}

// New создаёт PaymentService.
func New(granter Granter, claims Claimer, opts Options, log *slog.Logger) *PaymentService {
	if opts.ClaimTTL <= 0 || opts.ClaimTTL > opts.IdempotencyTTL {
		opts.ClaimTTL = opts.IdempotencyTTL
	}
	return &PaymentService{
		granter: granter,
		claims:  claims,
		opts:    opts,
		log:     log,
	}
}

// HandleOutcome выдаёт премиум для завершённой оплаты. Повторная доставка той же
// транзакции не приводит к повторной выдаче: отметка в Redis отсекает повторы
// быстро, уникальность (provider, transaction_id) в хранилище гарантирует это
// окончательно. Исходы opened и cancelled только логируются.
func (s *PaymentService) HandleOutcome(ctx context.Context, out models.GatewayOutcome) (*models.Subscription, Result, error) {
	const op = "payment.HandleOutcome"
	log := s.log.With(slog.String("op", op), slog.String("transaction_id", out.TransactionID), sl.UID(out.UID))

	planID, err := entitlement.ParsePlan(out.PlanID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	provider, err := entitlement.ParseProvider(out.Provider)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if out.UID == "" {
		return nil, "", fmt.Errorf("%s: %w", op, entitlement.ErrEmptyUID)
	}

	if out.Status != models.GatewayCompleted {
		log.Info("payment outcome ignored", slog.String("status", string(out.Status)))
		return nil, ResultIgnored, nil
	}

	key := claimKey(provider, out.TransactionID)
	claimed, err := s.claims.Claim(ctx, key, s.opts.ClaimTTL)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if !claimed {
		log.Info("duplicate payment outcome")
		return nil, ResultDuplicate, nil
	}

	txID := out.TransactionID
	sub, err := s.granter.GrantPremium(ctx, models.CreateRequest{
		UID:           out.UID,
		PlanID:        planID,
		Provider:      provider,
		TransactionID: &txID,
	})

	// Отметка освобождается и продлевается и после отмены ctx запроса.
	detached := context.WithoutCancel(ctx)
	switch {
	case errors.Is(err, entitlement.ErrDuplicateTransaction):
		s.markDone(detached, key, log)
		log.Info("duplicate payment outcome", slog.String("detected_by", "storage"))
		return nil, ResultDuplicate, nil
	case err != nil:
		if relErr := s.claims.Release(detached, key); relErr != nil {
			log.Error("failed to release payment claim", sl.Err(relErr))
		}
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	s.markDone(detached, key, log)
	log.Info("premium granted for payment", sl.SubID(sub.ID), slog.Time("expires_at", sub.ExpiresAt))
	return sub, ResultGranted, nil
}

func (s *PaymentService) markDone(ctx context.Context, key string, log *slog.Logger) {
	if err := s.claims.Extend(ctx, key, s.opts.IdempotencyTTL); err != nil {
		log.Warn("failed to extend payment claim", sl.Err(err))
	}
}

func claimKey(provider models.Provider, transactionID string) string {
	return fmt.Sprintf("payment:%s:%s", provider, transactionID)
}
