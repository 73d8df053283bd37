package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/premium-entitlement/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
	"github.com/magabrotheeeer/premium-entitlement/internal/services/payment"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Checkout(ctx context.Context, uid string, plan string, outcome models.GatewayStatus) (string, *models.Subscription, payment.Result, error) {
	args := m.Called(ctx, uid, plan, outcome)
	sub, _ := args.Get(1).(*models.Subscription)
	return args.String(0), sub, args.Get(2).(payment.Result), args.Error(3)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSandboxHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		callerUID      string
		body           string
		setupMock      func(m *ServiceMock)
		wantStatusCode int
		wantResult     string
		wantError      string
	}{
		{
			name:      "completed checkout",
			callerUID: "u1",
			body:      `{"plan_id":"premium3m","outcome":"completed"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Checkout", mock.Anything, "u1", "premium3m", models.GatewayCompleted).
					Return("sandbox-1", &models.Subscription{ID: "sub-1"}, payment.ResultGranted, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantResult:     "granted",
		},
		{
			name:      "cancelled checkout",
			callerUID: "u1",
			body:      `{"plan_id":"premium1m","outcome":"cancelled"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Checkout", mock.Anything, "u1", "premium1m", models.GatewayCancelled).
					Return("sandbox-2", nil, payment.ResultIgnored, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantResult:     "ignored",
		},
		{
			name:           "no caller",
			body:           `{"plan_id":"premium1m","outcome":"completed"}`,
			setupMock:      func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "unauthorized",
		},
		{
			name:           "unknown outcome",
			callerUID:      "u1",
			body:           `{"plan_id":"premium1m","outcome":"refunded"}`,
			setupMock:      func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Outcome must be one of [opened completed cancelled]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/payments/sandbox", bytes.NewBufferString(tt.body))
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			if tt.callerUID != "" {
				ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.callerUID)
				ctx = context.WithValue(ctx, middlewarectx.Role, models.RoleUser)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, tt.wantResult, got["data"].(map[string]any)["result"])
			}
			svc.AssertExpectations(t)
		})
	}
}
