package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/premium-entitlement/internal/cache"
	"github.com/magabrotheeeer/premium-entitlement/internal/config"
	domain "github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/events"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/jwt"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/metrics"
	"github.com/magabrotheeeer/premium-entitlement/internal/migrations"
	services "github.com/magabrotheeeer/premium-entitlement/internal/services/entitlement"
	paymentservice "github.com/magabrotheeeer/premium-entitlement/internal/services/payment"
	"github.com/magabrotheeeer/premium-entitlement/internal/services/rolesync"
	"github.com/magabrotheeeer/premium-entitlement/internal/storage/repository"
)

// App HTTP API и gRPC health-сервер с общими ресурсами.
type App struct {
	server       *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *health.Server
	logger       *slog.Logger
	db           *repository.Storage
	cache        *cache.Cache
	conn         *amqp.Connection
	ch           *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "app.entitlement.New"

	policy, err := domain.ParsePolicy(cfg.RolePolicy)
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
	sqlDB, err := a.db.SQLDB()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(sqlDB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
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
	publisher := events.NewPublisher(a.ch, cfg.Exchange)

	m := metrics.New(prometheus.DefaultRegisterer)
	roles := rolesync.New(policy, m, logger)
	service := services.NewEntitlementService(a.db, roles, a.cache, publisher, m, logger, services.Options{
		CacheTTL:             cfg.CacheTTL,
		RetryAttempts:        cfg.RetryAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
	})
	payments := paymentservice.New(service, a.cache, paymentservice.Options{
		ClaimTTL:       cfg.ClaimTTL,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}, logger)

	deps := Deps{
		Service:  service,
		Payments: payments,
		Tokens:   jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Health:   a.db,
		Metrics:  m,
	}
	if cfg.SandboxEnabled {
		deps.Sandbox = paymentservice.NewSandbox(payments)
		logger.Warn("sandbox payments are enabled")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, deps)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	a.grpcListener, err = net.Listen("tcp", cfg.GRPCHealthAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.grpcServer = grpc.NewServer()
	a.health = health.NewServer()
	healthpb.RegisterHealthServer(a.grpcServer, a.health)

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()
	go func() {
		a.logger.Info("gRPC health service listening on", slog.String("address", a.grpcListener.Addr().String()))
		a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		errCh <- a.grpcServer.Serve(a.grpcListener)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	a.health.Shutdown()
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if shErr := a.server.Shutdown(timeoutCtx); shErr != nil {
		err = errors.Join(err, shErr)
	}
	a.grpcServer.GracefulStop()
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Warn("failed to close RabbitMQ channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("failed to close RabbitMQ connection", sl.Err(err))
		}
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
