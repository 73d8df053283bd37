// Package entitlement собирает HTTP API премиум-доступа: зависимости, маршруты и запуск.
package entitlement

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/premium-entitlement/internal/config"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/health"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/payment/sandbox"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/expire"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/grant"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/subscription/update"
	userentitlement "github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/user/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/handlers/user/syncrole"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/metrics"
	paymentservice "github.com/magabrotheeeer/premium-entitlement/internal/services/payment"
	services "github.com/magabrotheeeer/premium-entitlement/internal/services/entitlement"
)

// Deps зависимости, нужные маршрутам.
type Deps struct {
	Service  *services.EntitlementService
	Payments *paymentservice.PaymentService
	Sandbox  *paymentservice.Sandbox // nil, если песочница выключена
	Tokens   middlewarectx.TokenParser
	Health   health.Pinger
	Metrics  *metrics.Metrics
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		d.Metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook endpoint (без аутентификации, проверяется подпись)
		r.Post("/payments/webhook", paymentwebhook.New(logger, d.Payments, cfg.WebhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))

			r.Get("/me/entitlement", userentitlement.New(logger, d.Service).ServeHTTP)
			r.Get("/subscriptions", list.New(logger, d.Service).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, d.Service).ServeHTTP)
			r.Post("/subscriptions/{id}/cancel", cancel.New(logger, d.Service).ServeHTTP)
			if d.Sandbox != nil {
				r.Post("/payments/sandbox", sandbox.New(logger, d.Sandbox).ServeHTTP)
			}

			// Административные операции
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Post("/subscriptions", create.New(logger, d.Service).ServeHTTP)
				r.Patch("/subscriptions/{id}", update.New(logger, d.Service).ServeHTTP)
				r.Delete("/subscriptions/{id}", remove.New(logger, d.Service).ServeHTTP)
				r.Post("/subscriptions/{id}/expire", expire.New(logger, d.Service).ServeHTTP)
				r.Post("/premium/grant", grant.New(logger, d.Service).ServeHTTP)
				r.Post("/users/{uid}/sync-role", syncrole.New(logger, d.Service).ServeHTTP)
			})
		})
	})

	r.Get("/healthz", health.New(logger, d.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
