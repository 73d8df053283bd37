// Package list реализует HTTP-обработчик для получения списка подписок.
//
// Поддерживаются фильтры uid и status, ограничение limit и сортировка order_by
// (started_at или expires_at, всегда по убыванию). Пользователь без роли admin
// получает только свои подписки.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler обрабатывает запросы на получение списка подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики выборки подписок.
type Service interface {
	ListSubscriptions(ctx context.Context, filter models.Filter) ([]*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список подписок
// @Tags Subscriptions
// @Produce  json
// @Param uid query string false "UID пользователя"
// @Param status query string false "Статус (active, cancelled, expired)"
// @Param limit query int false "Максимум записей"
// @Param order_by query string false "started_at или expires_at"
// @Success 200 {object} response.Response "Список подписок"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 403 {object} response.ErrorResponse "Чужие подписки"
// @Failure 422 {object} response.ErrorResponse "Неизвестный статус"
// @Router /subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	filter := models.Filter{Limit: defaultLimit}

	uid := q.Get("uid")
	if !middlewarectx.IsAdmin(r.Context()) {
		caller := middlewarectx.CallerUID(r.Context())
		if uid != "" && uid != caller {
			log.Warn("listing foreign subscriptions denied")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
			return
		}
		uid = caller
	}
	if uid != "" {
		filter.UID = &uid
	}

	if raw := q.Get("status"); raw != "" {
		status, err := entitlement.ParseStatus(raw)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		filter.Status = &status
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid limit"))
			return
		}
		filter.Limit = min(limit, maxLimit)
	}

	switch models.OrderField(q.Get("order_by")) {
	case "", models.OrderByStartedAt:
		filter.OrderBy = models.OrderByStartedAt
	case models.OrderByExpiresAt:
		filter.OrderBy = models.OrderByExpiresAt
	default:
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid order_by"))
		return
	}

	subs, err := h.service.ListSubscriptions(r.Context(), filter)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	}))
}
