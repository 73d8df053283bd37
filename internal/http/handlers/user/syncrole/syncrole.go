// Package syncrole реализует HTTP-обработчик принудительного пересчёта роли пользователя.
package syncrole

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

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	SyncUserRole(ctx context.Context, uid string) (models.Role, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Пересчитать роль пользователя
// @Tags Users
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Success 200 {object} response.Response "Записанная роль"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{uid}/sync-role [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.syncrole"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid := chi.URLParam(r, "uid")
	role, err := h.service.SyncUserRole(r.Context(), uid)
	if err != nil {
		log.Error("failed to sync role", sl.UID(uid), sl.Err(err))
		status, body := response.ServiceError(err)
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	log.Info("role synced", sl.UID(uid), slog.String("role", string(role)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"uid":  uid,
		"role": role,
	}))
}
