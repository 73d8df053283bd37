// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счётчиков сервиса премиум-доступа.
type Metrics struct {
	operations   *prometheus.CounterVec
	roleSyncs    *prometheus.CounterVec
	sweepExpired prometheus.Counter
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_operations_total",
			Help: "Entitlement operations by name and result.",
		}, []string{"operation", "result"}),
		roleSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_role_sync_total",
			Help: "Role synchronisations by resulting role.",
		}, []string{"role"}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entitlement_sweep_expired_total",
			Help: "Subscriptions marked expired by the sweeper.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(m.operations, m.roleSyncs, m.sweepExpired, m.httpRequests, m.httpDuration)
	return m
}

// Operation учитывает завершение операции сервиса.
func (m *Metrics) Operation(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(name, result).Inc()
}

// RoleSynced учитывает запись роли.
func (m *Metrics) RoleSynced(role string) {
	m.roleSyncs.WithLabelValues(role).Inc()
}

// SweepExpired учитывает записи, помеченные просроченными.
func (m *Metrics) SweepExpired(n int) {
	m.sweepExpired.Add(float64(n))
}

// Middleware считает запросы и их длительность по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
