// Package memrepo holds mutex-guarded in-memory repositories. They back the
// service and handler tests and mirror the atomicity of the SQL store.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"

	"github.com/google/uuid"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

func NewUserRepo(users ...model.User) *UserRepo {
	r := &UserRepo{users: make(map[uuid.UUID]model.User)}
	for _, u := range users {
		_ = r.Create(context.Background(), &u)
	}
	return r
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) FindAll(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(model.User) bool { return true }), nil
}

func (r *UserRepo) FindByRole(_ context.Context, role model.Role) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(u model.User) bool { return u.Role == role }), nil
}

func (r *UserRepo) sorted(keep func(model.User) bool) []model.User {
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepo) Delete(_ context.Context, id uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepo) UpdateSession(_ context.Context, id uuid.UUID, tokenVersion string, loginAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.TokenVersion = tokenVersion
	u.LastLoginAt = &loginAt
	r.users[id] = u
	return nil
}

type SuggestedClientRepo struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]model.SuggestedClient
}

func NewSuggestedClientRepo(clients ...model.SuggestedClient) *SuggestedClientRepo {
	r := &SuggestedClientRepo{clients: make(map[uuid.UUID]model.SuggestedClient)}
	for _, c := range clients {
		_ = r.Create(context.Background(), &c)
	}
	return r
}

func (r *SuggestedClientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SuggestedClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *SuggestedClientRepo) FindAll(_ context.Context, filter repository.SuggestedClientFilter) ([]model.SuggestedClient, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	out := make([]model.SuggestedClient, 0, len(r.clients))
	for _, c := range r.clients {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(strings.ToLower(c.Company), search) {
			continue
		}
		if filter.MinScore != nil && c.Score < *filter.MinScore {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Score > out[j].Score
	})

	total := int64(len(out))
	return page(out, filter.Offset, filter.Limit), total, nil
}

func (r *SuggestedClientRepo) Create(_ context.Context, client *model.SuggestedClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	r.clients[client.ID] = *client
	return nil
}

func (r *SuggestedClientRepo) Update(_ context.Context, client *model.SuggestedClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.ID]; !ok {
		return repository.ErrNotFound
	}
	client.UpdatedAt = time.Now()
	r.clients[client.ID] = *client
	return nil
}

func (r *SuggestedClientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

// CreditRepo keeps balances and ledgers under one lock so every mutation
// is a compare-and-update, like the conditional UPDATE of the SQL store.
type CreditRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.CreditAccount
	history  map[uuid.UUID][]model.CreditHistory
	seq      uint
}

func NewCreditRepo() *CreditRepo {
	return &CreditRepo{
		accounts: make(map[uuid.UUID]model.CreditAccount),
		history:  make(map[uuid.UUID][]model.CreditHistory),
	}
}

// Seed sets a balance directly, bypassing the ledger.
func (r *CreditRepo) Seed(userID uuid.UUID, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.accounts[userID] = model.CreditAccount{UserID: userID, Current: current, Total: total, CreatedAt: now, UpdatedAt: now}
}

func (r *CreditRepo) FindAccount(_ context.Context, userID uuid.UUID) (*model.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *CreditRepo) FindAccounts(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]model.CreditAccount, len(userIDs))
	for _, id := range userIDs {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *CreditRepo) EnsureAccount(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(userID)
	return nil
}

func (r *CreditRepo) ensure(userID uuid.UUID) model.CreditAccount {
	a, ok := r.accounts[userID]
	if !ok {
		now := time.Now()
		a = model.CreditAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}
		r.accounts[userID] = a
	}
	return a
}

func (r *CreditRepo) Deduct(_ context.Context, userID uuid.UUID, cost int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok || a.Current < cost {
		return nil, repository.ErrInsufficientBalance
	}
	a.Current -= cost
	a.UpdatedAt = time.Now()
	r.accounts[userID] = a
	r.append(userID, entry)
	return &a, nil
}

func (r *CreditRepo) Recharge(_ context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.ensure(userID)
	now := time.Now()
	a.Current += amount
	a.Total += amount
	a.LastRecharge = &now
	a.UpdatedAt = now
	r.accounts[userID] = a
	r.append(userID, entry)
	return &a, nil
}

func (r *CreditRepo) Initialize(_ context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[userID]; ok {
		return false, nil
	}
	now := time.Now()
	r.accounts[userID] = model.CreditAccount{
		UserID:       userID,
		Current:      amount,
		Total:        amount,
		LastRecharge: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.append(userID, entry)
	return true, nil
}

func (r *CreditRepo) ListHistory(_ context.Context, userID uuid.UUID, offset, limit int) ([]model.CreditHistory, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[userID]
	out := make([]model.CreditHistory, len(entries))
	for i := range entries {
		out[len(entries)-1-i] = entries[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return page(out, offset, limit), int64(len(out)), nil
}

func (r *CreditRepo) append(userID uuid.UUID, entry *model.CreditHistory) {
	r.seq++
	entry.ID = r.seq
	entry.UserID = userID
	r.history[userID] = append(r.history[userID], *entry)
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

var (
	_ repository.UserRepository            = (*UserRepo)(nil)
	_ repository.SuggestedClientRepository = (*SuggestedClientRepo)(nil)
	_ repository.CreditRepository          = (*CreditRepo)(nil)
)
