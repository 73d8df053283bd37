// Package expire реализует HTTP-обработчик ручной пометки подписки просроченной.
package expire

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Handler обрабатывает запросы на пометку подписки просроченной.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики.
type Service interface {
	MarkExpired(ctx context.Context, id string) (*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Пометить подписку просроченной
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response "Подписка"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Запрещённый переход статуса"
// @Router /subscriptions/{id}/expire [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.expire"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	sub, err := h.service.MarkExpired(r.Context(), id)
	if err != nil {
		log.Error("failed to mark subscription expired", sl.SubID(id), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("subscription marked expired", sl.SubID(id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
