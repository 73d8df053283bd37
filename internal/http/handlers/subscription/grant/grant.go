// Package grant реализует HTTP-обработчик выдачи премиума с накоплением.
//
// Новая запись отсчитывается от окончания последней активной подписки пользователя,
// если оно ещё не наступило, поэтому повторные выдачи складываются.
package grant

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

// Handler обрабатывает запросы на выдачу премиума.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики выдачи премиума.
type Service interface {
	GrantPremium(ctx context.Context, req models.CreateRequest) (*models.Subscription, error)
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
// @Summary Выдать премиум
// @Description Выдает премиум с накоплением срока. Только для администратора.
// @Tags Premium
// @Accept  json
// @Produce  json
// @Param request body models.DummyCreateRequest true "Пользователь и план"
// @Success 201 {object} response.Response "Созданная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /premium/grant [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.premium.grant"
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

	grantedBy := middlewarectx.CallerUID(r.Context())
	grantReq := models.CreateRequest{
		UID:       req.UID,
		PlanID:    models.PlanID(req.PlanID),
		Provider:  models.Provider(req.Provider),
		CreatedBy: &grantedBy,
	}
	if req.Note != "" {
		grantReq.Note = &req.Note
	}

	sub, err := h.service.GrantPremium(r.Context(), grantReq)
	if err != nil {
		log.Error("failed to grant premium", sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("premium granted", sl.SubID(sub.ID), sl.UID(sub.UID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
