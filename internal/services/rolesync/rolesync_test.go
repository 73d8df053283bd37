package rolesync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
	"github.com/magabrotheeeer/premium-entitlement/internal/storage/memstore"
)

type recorder struct{ roles []string }

func (r *recorder) RoleSynced(role string) { r.roles = append(r.roles, role) }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSynchronizer_Sync(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy entitlement.RolePolicy
		subs   []models.Subscription
		user   *models.User
		want   models.Role
	}{
		{
			name:   "no subscriptions",
			policy: entitlement.PolicyStatus,
			want:   models.RoleUser,
		},
		{
			name:   "one active",
			policy: entitlement.PolicyStatus,
			subs:   []models.Subscription{{Status: models.StatusActive, ExpiresAt: now.AddDate(0, 1, 0)}},
			want:   models.RolePremium,
		},
		{
			name:   "only cancelled and expired",
			policy: entitlement.PolicyStatus,
			subs: []models.Subscription{
				{Status: models.StatusCancelled, ExpiresAt: now.AddDate(0, 1, 0)},
				{Status: models.StatusExpired, ExpiresAt: now.AddDate(0, -1, 0)},
			},
			user: &models.User{Role: models.RolePremium},
			want: models.RoleUser,
		},
		{
			name:   "active but lapsed under status policy",
			policy: entitlement.PolicyStatus,
			subs:   []models.Subscription{{Status: models.StatusActive, ExpiresAt: now.AddDate(0, 0, -1)}},
			want:   models.RolePremium,
		},
		{
			name:   "active but lapsed under expiry policy",
			policy: entitlement.PolicyStatusAndExpiry,
			subs:   []models.Subscription{{Status: models.StatusActive, ExpiresAt: now.AddDate(0, 0, -1)}},
			want:   models.RoleUser,
		},
		{
			name:   "admin is left untouched",
			policy: entitlement.PolicyStatus,
			user:   &models.User{Role: models.RoleAdmin},
			want:   models.RoleAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			if tt.user != nil {
				u := *tt.user
				u.UID = "u1"
				store.PutUser(u)
			}
			for _, sub := range tt.subs {
				sub.UID = "u1"
				_, err := store.Create(ctx, sub)
				require.NoError(t, err)
			}

			rec := &recorder{}
			s := New(tt.policy, rec, newNoopLogger()).WithClock(func() time.Time { return now })

			got, err := s.Sync(ctx, store, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			u, err := store.GetUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Role)

			if tt.want == models.RoleAdmin {
				assert.Empty(t, rec.roles)
			} else {
				assert.Equal(t, []string{string(tt.want)}, rec.roles)
			}
		})
	}
}

func TestSynchronizer_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	_, err := store.Create(ctx, models.Subscription{UID: "u1", Status: models.StatusActive})
	require.NoError(t, err)

	s := New(entitlement.PolicyStatus, nil, newNoopLogger())
	first, err := s.Sync(ctx, store, "u1")
	require.NoError(t, err)
	second, err := s.Sync(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, models.RolePremium, second)
}
