// Package memstore хранилище подписок в памяти процесса. Реализует entitlement.Store
// с теми же гарантиями, что и PostgreSQL-репозиторий: транзакции сериализуются,
// изменения видны только после успешного завершения.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

type state struct {
	subs  map[string]models.Subscription
	users map[string]models.User
}

func (s *state) clone() *state {
	c := &state{
		subs:  make(map[string]models.Subscription, len(s.subs)),
		users: make(map[string]models.User, len(s.users)),
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Store entitlement.Store в памяти.
type Store struct {
	mu        sync.Mutex
	st        *state
	now       func() time.Time
	beginErrs []error
	commits   int
}

var _ entitlement.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		st:  &state{subs: map[string]models.Subscription{}, users: map[string]models.User{}},
		now: time.Now,
	}
}

// WithClock задаёт источник времени для updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// FailBegin заставляет следующие len(errs) вызовов RunInTx завершиться
// указанными ошибками до выполнения fn.
func (s *Store) FailBegin(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginErrs = append(s.beginErrs, errs...)
}

// Commits число успешно зафиксированных транзакций.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// PutUser записывает профиль напрямую.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.UID] = u
}

// RunInTx выполняет fn над копией состояния и подменяет состояние при успехе.
func (s *Store) RunInTx(ctx context.Context, fn func(repo entitlement.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.beginErrs) > 0 {
		err := s.beginErrs[0]
		s.beginErrs = s.beginErrs[1:]
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.st.clone()
	if err := fn(&repo{st: draft, now: s.now}); err != nil {
		return err
	}
	s.st = draft
	s.commits++
	return nil
}

func (s *Store) do(fn func(r *repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repo{st: s.st, now: s.now})
}

func (s *Store) Create(ctx context.Context, sub models.Subscription) (res *models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.Create(ctx, sub); return err })
	return res, err
}

func (s *Store) GetByID(ctx context.Context, id string) (res *models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.GetByID(ctx, id); return err })
	return res, err
}

func (s *Store) GetLatestActiveForUser(ctx context.Context, uid string) (res *models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.GetLatestActiveForUser(ctx, uid); return err })
	return res, err
}

func (s *Store) List(ctx context.Context, filter models.Filter) (res []*models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.List(ctx, filter); return err })
	return res, err
}

func (s *Store) ListDueForExpiry(ctx context.Context, now time.Time, limit int) (res []*models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.ListDueForExpiry(ctx, now, limit); return err })
	return res, err
}

func (s *Store) Update(ctx context.Context, id string, patch models.SubscriptionPatch) (res *models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.Update(ctx, id, patch); return err })
	return res, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.do(func(r *repo) error { return r.Delete(ctx, id) })
}

func (s *Store) GetByTransaction(ctx context.Context, provider models.Provider, transactionID string) (res *models.Subscription, err error) {
	err = s.do(func(r *repo) error { res, err = r.GetByTransaction(ctx, provider, transactionID); return err })
	return res, err
}

func (s *Store) LockUser(ctx context.Context, uid string) error {
	return s.do(func(r *repo) error { return r.LockUser(ctx, uid) })
}

func (s *Store) GetUser(ctx context.Context, uid string) (res *models.User, err error) {
	err = s.do(func(r *repo) error { res, err = r.GetUser(ctx, uid); return err })
	return res, err
}

func (s *Store) SetUserRole(ctx context.Context, uid string, role models.Role) error {
	return s.do(func(r *repo) error { return r.SetUserRole(ctx, uid, role) })
}

type repo struct {
	st  *state
	now func() time.Time
}

func (r *repo) Create(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	if sub.TransactionID != nil {
		if dup, _ := r.GetByTransaction(ctx, sub.Provider, *sub.TransactionID); dup != nil {
			return nil, fmt.Errorf("memstore.Create: %w", entitlement.ErrDuplicateTransaction)
		}
	}
	sub.ID = uuid.NewString()
	sub.UpdatedAt = r.now()
	r.st.subs[sub.ID] = sub
	return &sub, nil
}

func (r *repo) GetByID(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := r.st.subs[id]
	if !ok {
		return nil, fmt.Errorf("memstore.GetByID: %w", entitlement.ErrNotFound)
	}
	return &sub, nil
}

func (r *repo) GetLatestActiveForUser(_ context.Context, uid string) (*models.Subscription, error) {
	var latest *models.Subscription
	for _, sub := range r.st.subs {
		if sub.UID != uid || sub.Status != models.StatusActive {
			continue
		}
		if latest == nil || sub.ExpiresAt.After(latest.ExpiresAt) {
			s := sub
			latest = &s
		}
	}
	return latest, nil
}

func (r *repo) GetByTransaction(_ context.Context, provider models.Provider, transactionID string) (*models.Subscription, error) {
	for _, sub := range r.st.subs {
		if sub.Provider == provider && sub.TransactionID != nil && *sub.TransactionID == transactionID {
			s := sub
			return &s, nil
		}
	}
	return nil, nil
}

func (r *repo) List(_ context.Context, filter models.Filter) ([]*models.Subscription, error) {
	res := make([]*models.Subscription, 0)
	for _, sub := range r.st.subs {
		if filter.UID != nil && sub.UID != *filter.UID {
			continue
		}
		if filter.Status != nil && sub.Status != *filter.Status {
			continue
		}
		s := sub
		res = append(res, &s)
	}

	key := func(s *models.Subscription) time.Time { return s.StartedAt }
	if filter.OrderBy == models.OrderByExpiresAt {
		key = func(s *models.Subscription) time.Time { return s.ExpiresAt }
	}
	sort.Slice(res, func(i, j int) bool {
		ki, kj := key(res[i]), key(res[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return res[i].ID < res[j].ID
	})

	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[:filter.Limit]
	}
	return res, nil
}

func (r *repo) ListDueForExpiry(_ context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	res := make([]*models.Subscription, 0)
	for _, sub := range r.st.subs {
		if sub.Status == models.StatusActive && !sub.ExpiresAt.After(now) {
			s := sub
			res = append(res, &s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpiresAt.Before(res[j].ExpiresAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *repo) Update(_ context.Context, id string, patch models.SubscriptionPatch) (*models.Subscription, error) {
	sub, ok := r.st.subs[id]
	if !ok {
		return nil, fmt.Errorf("memstore.Update: %w", entitlement.ErrNotFound)
	}
	if patch.PlanID != nil {
		sub.PlanID = *patch.PlanID
	}
	if patch.Provider != nil {
		sub.Provider = *patch.Provider
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	if patch.Note != nil {
		note := *patch.Note
		sub.Note = &note
	}
	if expiresAt := patch.ExpiresAt(); expiresAt != nil {
		sub.ExpiresAt = *expiresAt
	}
	sub.UpdatedAt = r.now()
	r.st.subs[id] = sub
	return &sub, nil
}

func (r *repo) Delete(_ context.Context, id string) error {
	if _, ok := r.st.subs[id]; !ok {
		return fmt.Errorf("memstore.Delete: %w", entitlement.ErrNotFound)
	}
	delete(r.st.subs, id)
	return nil
}

func (r *repo) LockUser(_ context.Context, uid string) error {
	if _, ok := r.st.users[uid]; !ok {
		r.st.users[uid] = models.User{UID: uid, Role: models.RoleUser, UpdatedAt: r.now()}
	}
	return nil
}

func (r *repo) GetUser(_ context.Context, uid string) (*models.User, error) {
	u, ok := r.st.users[uid]
	if !ok {
		return nil, fmt.Errorf("memstore.GetUser: %w", entitlement.ErrUserNotFound)
	}
	return &u, nil
}

func (r *repo) SetUserRole(_ context.Context, uid string, role models.Role) error {
	u, ok := r.st.users[uid]
	if ok && u.Role == models.RoleAdmin {
		return nil
	}
	r.st.users[uid] = models.User{UID: uid, Role: role, UpdatedAt: r.now()}
	return nil
}
