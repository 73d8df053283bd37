package remove

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
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) DeleteSubscription(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRemoveHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{name: "deleted", wantStatusCode: http.StatusOK},
		{name: "not found", mockErr: entitlement.ErrNotFound, wantStatusCode: http.StatusNotFound, wantError: "subscription not found"},
		{
			name:           "storage failure",
			mockErr:        &entitlement.RepositoryError{Op: "delete", Err: errors.New("broken pipe")},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("DeleteSubscription", mock.Anything, "sub-1").Return(tt.mockErr).Once()
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodDelete, "/subscriptions/sub-1", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "sub-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, "sub-1", got["data"].(map[string]any)["deleted_id"])
			}
			svc.AssertExpectations(t)
		})
	}
}
