package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
)

func TestServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("op: %w", entitlement.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantMsg:    "subscription not found",
		},
		{
			name:       "invalid plan",
			err:        fmt.Errorf("op: %w", &entitlement.InvalidPlanError{PlanID: "premium2m"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    `invalid plan: "premium2m"`,
		},
		{
			name:       "invalid transition",
			err:        fmt.Errorf("op: %w: cancelled -> active", entitlement.ErrInvalidTransition),
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "invalid status transition",
		},
		{
			name:       "duplicate transaction",
			err:        fmt.Errorf("op: transaction tx-1 granted sub-1: %w", entitlement.ErrDuplicateTransaction),
			wantStatus: http.StatusConflict,
			wantMsg:    "transaction already processed",
		},
		{
			name:       "repository failure is hidden",
			err:        &entitlement.RepositoryError{Op: "storage.Create", Err: errors.New("password authentication failed")},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ServiceError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, StatusError, body.Status)
		})
	}
}

func TestValidationError(t *testing.T) {
	type req struct {
		UID    string `validate:"required"`
		PlanID string `validate:"required,oneof=premium1m premium3m"`
	}

	err := validator.New().Struct(req{PlanID: "gold"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	resp := ValidationError(verrs)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "field UID is a required field, field PlanID must be one of [premium1m premium3m]", resp.Error)
}
