// Package sweeper по расписанию помечает просроченными активные подписки,
// срок которых наступил. Одновременно обход выполняет только один экземпляр.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/premium-entitlement/internal/config"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
)

const lockName = "entitlement:sweeper"

// Expirer помечает просроченными до limit записей.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// Recorder учитывает помеченные записи.
type Recorder interface {
	SweepExpired(n int)
}

// Sweeper периодический обход просроченных подписок.
type Sweeper struct {
	expirer Expirer
	rs      *redsync.Redsync
	rec     Recorder
	cfg     config.Sweeper
	log     *slog.Logger
}

// New создаёт Sweeper. rec может быть nil.
func New(expirer Expirer, rs *redsync.Redsync, rec Recorder, cfg config.Sweeper, log *slog.Logger) *Sweeper {
	return &Sweeper{
		expirer: expirer,
		rs:      rs,
		rec:     rec,
		cfg:     cfg,
		log:     log,
	}
}

// RunOnce выполняет один обход под распределённой блокировкой.
// Если блокировка занята другим экземпляром, обход пропускается.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	const op = "sweeper.RunOnce"
	log := s.log.With(slog.String("op", op))

	mutex := s.rs.NewMutex(
		lockName,
		redsync.WithExpiry(s.cfg.LockTTL),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		log.Info("sweep skipped: lock busy or unavailable", sl.Err(err))
		return 0, nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release sweeper lock", sl.Err(err))
		}
	}()

	n, err := s.expirer.ExpireDue(ctx, s.cfg.BatchSize)
	if s.rec != nil && n > 0 {
		s.rec.SweepExpired(n)
	}
	if err != nil {
		return n, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("sweep finished", slog.Int("expired", n))
	return n, nil
}

// Start запускает обход по расписанию cfg.Schedule (cron с секундами)
// и блокируется до отмены ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	const op = "sweeper.Start"

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTTL)
		defer cancel()
		if _, err := s.RunOnce(runCtx); err != nil {
			s.log.Error("sweep failed", sl.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.Start()
	s.log.Info("sweeper started", slog.String("schedule", s.cfg.Schedule))

	<-ctx.Done()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn("sweeper stop timed out")
	}
	s.log.Info("sweeper stopped")
	return nil
}
