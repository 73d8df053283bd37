package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
	"github.com/magabrotheeeer/premium-entitlement/internal/services/payment"
)

// SignatureHeader заголовок с подписью тела запроса.
const SignatureHeader = "X-Signature"

const maxBodyBytes = 64 << 10

type Service interface {
	HandleOutcome(ctx context.Context, out models.GatewayOutcome) (*models.Subscription, payment.Result, error)
}

type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
	validate      *validator.Validate
}

func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
		validate:      validator.New(),
	}
}

// Sign вычисляет подпись тела: base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Уведомление платёжного шлюза
// @Description Принимает исход покупки. Завершённая оплата выдаёт премиум один раз на транзакцию.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Signature header string true "base64(HMAC-SHA256(body))"
// @Param request body models.GatewayOutcome true "Исход покупки"
// @Success 200 {object} response.Response "Результат обработки"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(SignatureHeader)
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var out models.GatewayOutcome
	if err := json.Unmarshal(body, &out); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(out); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sub, res, err := h.service.HandleOutcome(r.Context(), out)
	if err != nil {
		log.Error("failed to process payment outcome", sl.Err(err),
			slog.Bool("validation", entitlement.IsValidation(err)))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("transaction_id", out.TransactionID), slog.String("result", string(res)))
	data := map[string]any{"result": res}
	if sub != nil {
		data["subscription"] = sub
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
