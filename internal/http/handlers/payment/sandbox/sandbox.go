// Package sandbox реализует HTTP-обработчик тестовой покупки премиума.
//
// Пользователь выбирает план и желаемый исход шлюза, обработка идёт тем же путём,
// что и у настоящих платежей.
package sandbox

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
	"github.com/magabrotheeeer/premium-entitlement/internal/services/payment"
)

type Service interface {
	Checkout(ctx context.Context, uid string, plan string, outcome models.GatewayStatus) (string, *models.Subscription, payment.Result, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Тестовая покупка
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body models.DummySandboxCheckout true "План и исход"
// @Success 200 {object} response.Response "Результат покупки"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /payments/sandbox [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.sandbox"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid := middlewarectx.CallerUID(r.Context())
	if uid == "" {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummySandboxCheckout
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	txID, sub, res, err := h.service.Checkout(r.Context(), uid, req.PlanID, models.GatewayStatus(req.Outcome))
	if err != nil {
		log.Error("sandbox checkout failed", sl.UID(uid), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("sandbox checkout finished", sl.UID(uid), slog.String("result", string(res)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"transaction_id": txID,
		"result":         res,
		"subscription":   sub,
	}))
}
