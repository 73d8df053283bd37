// Package entitlement реализует HTTP-обработчик, возвращающий текущий
// премиум-доступ аутентифицированного пользователя.
package entitlement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/response"
	"github.com/magabrotheeeer/premium-entitlement/internal/lib/sl"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	GetEntitlement(ctx context.Context, uid string) (*models.Entitlement, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущий премиум-доступ
// @Tags Users
// @Produce  json
// @Success 200 {object} response.Response "Роль, признак премиума и срок"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /me/entitlement [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.entitlement"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid := middlewarectx.CallerUID(r.Context())
	if uid == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	ent, err := h.service.GetEntitlement(r.Context(), uid)
	if err != nil {
		log.Error("failed to get entitlement", sl.UID(uid), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entitlement": ent,
	}))
}
