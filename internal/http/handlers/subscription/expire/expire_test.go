package expire

import (
	"context"
	"encoding/json"
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
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) MarkExpired(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func TestExpireHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		mockSub        *models.Subscription
		mockErr        error
		wantStatusCode int
	}{
		{name: "expired", mockSub: &models.Subscription{ID: "sub-1", Status: models.StatusExpired}, wantStatusCode: http.StatusOK},
		{name: "cancelled record", mockErr: entitlement.ErrInvalidTransition, wantStatusCode: http.StatusUnprocessableEntity},
		{name: "missing", mockErr: entitlement.ErrNotFound, wantStatusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("MarkExpired", mock.Anything, "sub-1").Return(tt.mockSub, tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/subscriptions/sub-1/expire", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "sub-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			rec := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.mockErr == nil {
				sub := got["data"].(map[string]any)["subscription"].(map[string]any)
				assert.Equal(t, "expired", sub["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}
