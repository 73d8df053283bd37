package read

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestReadHandler_ServeHTTP(t *testing.T) {
	owned := &models.Subscription{ID: "sub-1", UID: "u1", PlanID: models.Premium3m, Status: models.StatusActive}

	tests := []struct {
		name           string
		callerUID      string
		callerRole     models.Role
		mockSub        *models.Subscription
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "owner reads own subscription",
			callerUID:      "u1",
			callerRole:     models.RoleUser,
			mockSub:        owned,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "admin reads any subscription",
			callerUID:      "root",
			callerRole:     models.RoleAdmin,
			mockSub:        owned,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "foreign subscription looks missing",
			callerUID:      "u2",
			callerRole:     models.RolePremium,
			mockSub:        owned,
			wantStatusCode: http.StatusNotFound,
			wantError:      "subscription not found",
		},
		{
			name:           "not found",
			callerUID:      "u1",
			callerRole:     models.RoleUser,
			mockErr:        entitlement.ErrNotFound,
			wantStatusCode: http.StatusNotFound,
			wantError:      "subscription not found",
		},
		{
			name:           "storage failure",
			callerUID:      "u1",
			callerRole:     models.RoleUser,
			mockErr:        &entitlement.RepositoryError{Op: "select", Err: errors.New("timeout")},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("GetSubscription", mock.Anything, "sub-1").Return(tt.mockSub, tt.mockErr).Once()
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/sub-1", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "sub-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.callerUID)
			ctx = context.WithValue(ctx, middlewarectx.Role, tt.callerRole)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
				assert.Nil(t, got["data"])
			} else {
				data := got["data"].(map[string]any)
				assert.Equal(t, "sub-1", data["subscription"].(map[string]any)["id"])
			}
			svc.AssertExpectations(t)
		})
	}
}
