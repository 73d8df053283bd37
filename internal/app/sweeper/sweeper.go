// Package sweeper собирает процесс, который по расписанию помечает
// просроченные подписки и пересчитывает роли их владельцев.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/premium-entitlement/internal/cache"
	"github.com/magabrotheeeer/premium-entitlement/internal/config"
	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/events"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/metrics"
	services "github.com/magabrotheeeer/premium-entitlement/internal/services/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/services/rolesync"
	sweeperservice "github.com/magabrotheeeer/premium-entitlement/internal/services/sweeper"
	"github.com/magabrotheeeer/premium-entitlement/internal/storage/repository"
)

// App представляет приложение обхода просроченных подписок.
type App struct {
	sweeper       *sweeperservice.Sweeper
	metricsServer *http.Server
	db            *repository.Storage
	cache         *cache.Cache
	conn          *amqp.Connection
	ch            *amqp.Channel
	logger        *slog.Logger
}

// waitForDB ждёт, пока API применит миграции.
func waitForDB(ctx context.Context, db *repository.Storage, logger *slog.Logger) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(3*time.Second), 10), ctx)
	return backoff.RetryNotify(func() error {
		return db.Ready(ctx)
	}, b, func(err error, next time.Duration) {
		logger.Info("database is not ready yet", sl.Err(err), slog.Duration("retry_in", next))
	})
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "app.sweeper.New"

	policy, err := entitlement.ParsePolicy(cfg.RolePolicy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.db, err = repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = waitForDB(ctx, a.db, logger); err != nil {
		return nil, fmt.Errorf("%s: database not ready: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.conn, err = events.Connect(cfg.RabbitMQ.URL, cfg.ConnectRetries, cfg.ConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ch, err = events.SetupChannel(a.conn, cfg.Exchange, events.DefaultQueues())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	service := services.NewEntitlementService(a.db, rolesync.New(policy, m, logger), a.cache,
		events.NewPublisher(a.ch, cfg.Exchange), m, logger, services.Options{
			CacheTTL:             cfg.CacheTTL,
			RetryAttempts:        cfg.RetryAttempts,
			RetryInitialInterval: cfg.RetryInitialInterval,
			RetryMaxInterval:     cfg.RetryMaxInterval,
		})

	rs := redsync.New(goredis.NewPool(a.cache.Db))
	a.sweeper = sweeperservice.New(service, rs, m, cfg.Sweeper, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              cfg.AddressHTTP,
		Handler:           mux,
		ReadHeaderTimeout: cfg.TimeoutHTTP,
	}
	return a, nil
}

// Run запускает обход по расписанию и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metricsServer.Addr))
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", sl.Err(err))
		}
	}()

	err := a.sweeper.Start(ctx)

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.metricsServer.Shutdown(timeoutCtx)
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
