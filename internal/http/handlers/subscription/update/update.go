// Package update реализует HTTP-обработчик административного изменения подписки.
//
// Изменять можно статус, план, платёжный канал и заметку. При смене плана срок
// пересчитывается от исходной точки отсчёта записи.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Handler обрабатывает запросы на изменение подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики изменения подписки.
type Service interface {
	UpdateSubscription(ctx context.Context, id string, patch models.SubscriptionPatch) (*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить подписку
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param id path string true "ID подписки"
// @Param request body models.DummyPatchRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или запрещённый переход"
// @Router /subscriptions/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")

	var req models.DummyPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	patch := toPatch(req)
	if patch.Empty() {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("nothing to update"))
		return
	}

	sub, err := h.service.UpdateSubscription(r.Context(), id, patch)
	if err != nil {
		log.Error("failed to update subscription", sl.SubID(id), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("subscription updated", sl.SubID(id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}

func toPatch(req models.DummyPatchRequest) models.SubscriptionPatch {
	var patch models.SubscriptionPatch
	if req.PlanID != nil {
		plan := models.PlanID(*req.PlanID)
		patch.PlanID = &plan
	}
	if req.Provider != nil {
		provider := models.Provider(*req.Provider)
		patch.Provider = &provider
	}
	if req.Status != nil {
		status := models.Status(*req.Status)
		patch.Status = &status
	}
	patch.Note = req.Note
	return patch
}
