// Package cancel реализует HTTP-обработчик отмены подписки.
//
// Отменить подписку может её владелец или администратор. Отмена не сдвигает
// дату окончания, но запись перестаёт давать премиум.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Handler обрабатывает запросы на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики отмены.
type Service interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response "Отменённая подписка"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Запрещённый переход статуса"
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if !middlewarectx.IsAdmin(r.Context()) {
		current, err := h.service.GetSubscription(r.Context(), id)
		if err != nil {
			status, body := response.ServiceError(err)
			w.WriteHeader(status)
			render.JSON(w, r, body)
			return
		}
		if !middlewarectx.CanAccess(r.Context(), current.UID) {
			log.Warn("cancel of foreign subscription denied", sl.SubID(id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
	}

	sub, err := h.service.CancelSubscription(r.Context(), id)
	if err != nil {
		log.Error("failed to cancel subscription", sl.SubID(id), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("subscription cancelled", sl.SubID(id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
