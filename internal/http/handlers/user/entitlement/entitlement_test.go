package entitlement

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) GetEntitlement(ctx context.Context, uid string) (*models.Entitlement, error) {
	args := m.Called(ctx, uid)
	ent, _ := args.Get(0).(*models.Entitlement)
	return ent, args.Error(1)
}

func TestEntitlementHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("returns caller entitlement", func(t *testing.T) {
		expires := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
		svc := new(ServiceMock)
		svc.On("GetEntitlement", mock.Anything, "u1").Return(&models.Entitlement{
			UID: "u1", Role: models.RolePremium, Premium: true, ExpiresAt: &expires,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/me/entitlement", nil)
		ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
		ctx = context.WithValue(ctx, middlewarectx.UserUID, "u1")
		rec := httptest.NewRecorder()

		New(logger, svc).ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		ent := got["data"].(map[string]any)["entitlement"].(map[string]any)
		assert.Equal(t, true, ent["premium"])
		assert.Equal(t, "premium", ent["role"])
		assert.Equal(t, "2025-02-10T00:00:00Z", ent["expires_at"])
		svc.AssertExpectations(t)
	})

	t.Run("anonymous", func(t *testing.T) {
		svc := new(ServiceMock)
		req := httptest.NewRequest(http.MethodGet, "/me/entitlement", nil)
		rec := httptest.NewRecorder()

		New(logger, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "GetEntitlement", mock.Anything, mock.Anything)
	})
}
