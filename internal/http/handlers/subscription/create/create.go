// Package create реализует HTTP-обработчик административного создания подписки.
//
// Handler принимает JSON-запрос с данными подписки, валидирует их и создаёт запись,
// которая начинается в момент запроса независимо от уже действующих подписок пользователя.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Handler управляет HTTP-запросами на создание новых подписок.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики для создания подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания подписки.
type Service interface {
	CreateSubscription(ctx context.Context, req models.CreateRequest) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать подписку
// @Description Создает подписку, начинающуюся сейчас, без накопления. Только для администратора.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyCreateRequest true "Данные новой подписки"
// @Success 201 {object} response.Response "Созданная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании подписки"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCreateRequest
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

	createdBy := middlewarectx.CallerUID(r.Context())
	createReq := models.CreateRequest{
		UID:       req.UID,
		PlanID:    models.PlanID(req.PlanID),
		Provider:  models.Provider(req.Provider),
		CreatedBy: &createdBy,
	}
	if req.Note != "" {
		createReq.Note = &req.Note
	}

	sub, err := h.service.CreateSubscription(r.Context(), createReq)
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("subscription created", sl.SubID(sub.ID), sl.UID(sub.UID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
