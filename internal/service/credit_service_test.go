package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"
	"agency-crm-api/internal/repository/memrepo"
	"agency-crm-api/internal/ws"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ uuid.UUID, _ interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return true
}

type creditFixture struct {
	svc     CreditService
	users   *memrepo.UserRepo
	clients *memrepo.SuggestedClientRepo
	credits *memrepo.CreditRepo
	events  *recordingPublisher

	admin  model.User
	chef   model.User
	closer model.User
	sales  model.User
}

func newCreditFixture(t *testing.T) *creditFixture {
	t.Helper()
	f := &creditFixture{
		admin:  model.User{Email: "admin@agency.test", Username: "admin", Role: model.RoleSuperAdmin, IsActive: true},
		chef:   model.User{Email: "chef@agency.test", Username: "chef", Role: model.RoleChefDeBureau, IsActive: true},
		closer: model.User{Email: "closer@agency.test", Username: "closer", Role: model.RoleCloser, IsActive: true},
		sales:  model.User{Email: "sales@agency.test", Username: "sales", Role: model.RoleCommercial, IsActive: true},
	}
	f.users = memrepo.NewUserRepo()
	for _, u := range []*model.User{&f.admin, &f.chef, &f.closer, &f.sales} {
		require.NoError(t, f.users.Create(context.Background(), u))
	}
	f.clients = memrepo.NewSuggestedClientRepo()
	f.credits = memrepo.NewCreditRepo()
	f.events = &recordingPublisher{}
	f.svc = NewCreditService(f.users, f.clients, f.credits, f.events, nil)
	return f
}

func (f *creditFixture) lead(t *testing.T, score int, phone string) model.SuggestedClient {
	t.Helper()
	c := model.SuggestedClient{Name: "Lead", Company: "Acme", PhoneNumber: phone, Score: score}
	require.NoError(t, f.clients.Create(context.Background(), &c))
	return c
}

func actorOf(u model.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Name: u.DisplayName()}
}

func TestRevealCostBoundaries(t *testing.T) {
	cases := []struct {
		score    int
		cost     int
		category model.ScoreCategory
	}{
		{0, 1, model.ScoreLow},
		{50, 1, model.ScoreLow},
		{99, 1, model.ScoreLow},
		{100, 2, model.ScoreMedium},
		{250, 2, model.ScoreMedium},
		{400, 2, model.ScoreMedium},
		{401, 3, model.ScoreHigh},
		{500, 3, model.ScoreHigh},
	}
	for _, tc := range cases {
		f := newCreditFixture(t)
		f.credits.Seed(f.closer.ID, 10, 10)
		lead := f.lead(t, tc.score, "+33600000000")

		res, err := f.svc.RevealPhone(context.Background(), f.closer.ID, lead.ID)
		require.NoError(t, err, "score %d", tc.score)
		assert.Equal(t, tc.cost, res.CreditCost, "score %d", tc.score)
		assert.Equal(t, tc.category, res.ScoreCategory, "score %d", tc.score)
		assert.Equal(t, 10-tc.cost, res.CreditsRemaining, "score %d", tc.score)
	}
}

func TestRevealDeductsAndRecordsHistory(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	f.credits.Seed(f.closer.ID, 5, 5)
	lead := f.lead(t, 50, "+33612345678")

	res, err := f.svc.RevealPhone(ctx, f.closer.ID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "+33612345678", res.PhoneNumber)
	assert.Equal(t, 4, res.CreditsRemaining)
	assert.Equal(t, lead.ID, res.ClientID)
	assert.Equal(t, "Lead", res.ClientName)
	assert.Equal(t, 50, res.ClientScore)

	status, err := f.svc.GetStatus(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, *status.Current)
	assert.Equal(t, 1, *status.Used)

	entries, total, err := f.credits.ListHistory(ctx, f.closer.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.CreditDeduction, entries[0].Type)
	assert.Equal(t, 1, entries[0].Amount)
	assert.Equal(t, lead.ID, *entries[0].RelatedClientID)
	assert.Contains(t, entries[0].Reason, "Lead")
	assert.Equal(t, []string{ws.EventCreditsUpdated}, f.events.events)
}

func TestRevealInsufficientCreditsLeavesBalance(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	f.credits.Seed(f.closer.ID, 2, 2)
	lead := f.lead(t, 450, "+33611111111")

	_, err := f.svc.RevealPhone(ctx, f.closer.ID, lead.ID)
	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.RequiredCredits)
	assert.Equal(t, 2, insufficient.CurrentCredits)
	assert.Equal(t, 450, insufficient.ClientScore)
	assert.Equal(t, model.ScoreHigh, insufficient.ScoreCategory)
	assert.Equal(t, KindValidation, KindOf(err))

	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.Current)
	_, total, _ := f.credits.ListHistory(ctx, f.closer.ID, 0, 10)
	assert.Zero(t, total)
	assert.Empty(t, f.events.events)
}

func TestRevealCreatesAccountLazily(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	lead := f.lead(t, 10, "+33600000001")

	_, err := f.svc.RevealPhone(ctx, f.closer.ID, lead.ID)
	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Zero(t, insufficient.CurrentCredits)

	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Zero(t, account.Current)
	assert.Zero(t, account.Total)
}

func TestRevealRejections(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	f.credits.Seed(f.closer.ID, 10, 10)
	lead := f.lead(t, 10, "+33600000002")
	noPhone := f.lead(t, 10, "")

	_, err := f.svc.RevealPhone(ctx, f.sales.ID, lead.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.RevealPhone(ctx, uuid.New(), lead.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.RevealPhone(ctx, f.closer.ID, uuid.New())
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.RevealPhone(ctx, f.closer.ID, noPhone.ID)
	assert.Equal(t, KindValidation, KindOf(err))

	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, account.Current)
}

func TestConcurrentRevealsSpendBalanceOnce(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	lead := f.lead(t, 250, "+33600000003")
	cost := model.CreditCost(lead.Score)
	f.credits.Seed(f.closer.ID, cost, cost)

	const workers = 32
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.RevealPhone(ctx, f.closer.ID, lead.ID)
			var ic *InsufficientCreditsError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.As(err, &ic):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, insufficient)
	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.Current)
}

func TestRechargeValidation(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	f.credits.Seed(f.closer.ID, 3, 3)

	for _, amount := range []int{0, -5, MaxRechargeAmount + 1} {
		_, err := f.svc.Recharge(ctx, actorOf(f.admin), f.closer.ID, amount, "")
		assert.Equal(t, KindValidation, KindOf(err), "amount %d", amount)
	}

	_, err := f.svc.Recharge(ctx, actorOf(f.sales), f.closer.ID, 10, "")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.Recharge(ctx, actorOf(f.closer), f.closer.ID, 10, "")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.Recharge(ctx, actorOf(f.admin), f.sales.ID, 10, "")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.Recharge(ctx, actorOf(f.admin), uuid.New(), 10, "")
	assert.Equal(t, KindNotFound, KindOf(err))

	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, account.Current)
	assert.Equal(t, 3, account.Total)
	_, total, _ := f.credits.ListHistory(ctx, f.closer.ID, 0, 10)
	assert.Zero(t, total)
}

func TestRechargeThenRevealRoundTrip(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	f.credits.Seed(f.closer.ID, 4, 4)
	lead := f.lead(t, 401, "+33600000004")

	balance, err := f.svc.Recharge(ctx, actorOf(f.chef), f.closer.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 7, balance.Current)
	assert.Equal(t, 7, balance.Total)
	assert.NotNil(t, balance.LastRecharge)

	res, err := f.svc.RevealPhone(ctx, f.closer.ID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.CreditsRemaining)

	page, err := f.svc.GetHistory(ctx, actorOf(f.closer), f.closer.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.History, 2)
	assert.Equal(t, model.CreditDeduction, page.History[0].Type)
	assert.Equal(t, model.CreditRecharge, page.History[1].Type)
	assert.Equal(t, DefaultRechargeReason, page.History[1].Reason)
	assert.Equal(t, f.chef.ID, *page.History[1].AdminID)
}

func TestBulkInitialize(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()

	funded := model.User{Email: "funded@agency.test", Role: model.RoleCloser, IsActive: true}
	require.NoError(t, f.users.Create(ctx, &funded))
	f.credits.Seed(funded.ID, 7, 9)

	_, err := f.svc.BulkInitialize(ctx, actorOf(f.chef), DefaultInitialCredits)
	assert.Equal(t, KindForbidden, KindOf(err))

	for _, amount := range []int{0, MaxInitialCredits + 1} {
		_, err = f.svc.BulkInitialize(ctx, actorOf(f.admin), amount)
		assert.Equal(t, KindValidation, KindOf(err))
	}

	res, err := f.svc.BulkInitialize(ctx, actorOf(f.admin), DefaultInitialCredits)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 1, res.TotalEligible)
	assert.Empty(t, res.Errors)

	account, err := f.credits.FindAccount(ctx, f.closer.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialCredits, account.Current)
	assert.Equal(t, DefaultInitialCredits, account.Total)

	entries, _, err := f.credits.ListHistory(ctx, f.closer.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, InitialAllocReason, entries[0].Reason)

	untouched, err := f.credits.FindAccount(ctx, funded.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, untouched.Current)

	again, err := f.svc.BulkInitialize(ctx, actorOf(f.admin), DefaultInitialCredits)
	require.NoError(t, err)
	assert.Zero(t, again.TotalEligible)
	assert.Zero(t, again.UpdatedCount)
}

type flakyCreditRepo struct {
	repository.CreditRepository
	failFor uuid.UUID
}

func (r *flakyCreditRepo) Initialize(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (bool, error) {
	if userID == r.failFor {
		return false, errors.New("connection reset")
	}
	return r.CreditRepository.Initialize(ctx, userID, amount, entry)
}

func TestBulkInitializeCollectsFailures(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	other := model.User{Email: "other@agency.test", Role: model.RoleCloser, IsActive: true}
	require.NoError(t, f.users.Create(ctx, &other))

	repo := &flakyCreditRepo{CreditRepository: f.credits, failFor: other.ID}
	svc := NewCreditService(f.users, f.clients, repo, nil, nil)

	res, err := svc.BulkInitialize(ctx, actorOf(f.admin), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalEligible)
	assert.Equal(t, 1, res.UpdatedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, other.ID, res.Errors[0].UserID)
	assert.Equal(t, "connection reset", res.Errors[0].Error)
}

func TestGetHistoryAccessAndPaging(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.Recharge(ctx, actorOf(f.admin), f.closer.ID, i+1, "")
		require.NoError(t, err)
	}

	_, err := f.svc.GetHistory(ctx, actorOf(f.sales), f.closer.ID, 1, 20)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.GetHistory(ctx, actorOf(f.admin), uuid.New(), 1, 20)
	assert.Equal(t, KindNotFound, KindOf(err))

	page, err := f.svc.GetHistory(ctx, actorOf(f.chef), f.closer.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.History, 2)
	assert.Equal(t, 3, page.History[0].Amount)
	assert.Equal(t, 2, page.History[1].Amount)
	assert.EqualValues(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	page, err = f.svc.GetHistory(ctx, actorOf(f.closer), f.closer.ID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, MaxPageLimit, page.Pagination.Limit)
	assert.Len(t, page.History, 5)

	_, err = f.svc.GetHistory(ctx, actorOf(f.closer), f.closer.ID, math.MaxInt/MaxPageLimit+2, MaxPageLimit)
	assert.Equal(t, KindValidation, KindOf(err))

	page, err = f.svc.GetHistory(ctx, actorOf(f.closer), f.closer.ID, math.MaxInt/MaxPageLimit, MaxPageLimit)
	require.NoError(t, err)
	assert.Empty(t, page.History)
	assert.EqualValues(t, 5, page.Pagination.Total)
}

// drainedCreditRepo loses every deduction race and cannot reload the balance afterwards.
type drainedCreditRepo struct {
	repository.CreditRepository
	mu    sync.Mutex
	reads int
}

func (r *drainedCreditRepo) FindAccount(ctx context.Context, userID uuid.UUID) (*model.CreditAccount, error) {
	r.mu.Lock()
	r.reads++
	n := r.reads
	r.mu.Unlock()
	if n > 1 {
		return nil, errors.New("connection reset")
	}
	return r.CreditRepository.FindAccount(ctx, userID)
}

func (r *drainedCreditRepo) Deduct(context.Context, uuid.UUID, int, *model.CreditHistory) (*model.CreditAccount, error) {
	return nil, repository.ErrInsufficientBalance
}

func TestRevealLogsFailedBalanceReload(t *testing.T) {
	f := newCreditFixture(t)
	f.credits.Seed(f.closer.ID, 5, 5)
	lead := f.lead(t, 50, "+33600000000")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := NewCreditService(f.users, f.clients, &drainedCreditRepo{CreditRepository: f.credits}, nil, logger)

	_, err := svc.RevealPhone(context.Background(), f.closer.ID, lead.ID)
	var insufficientErr *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, 0, insufficientErr.CurrentCredits)
	assert.Contains(t, logs.String(), "reload balance after failed deduction")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestGetStatus(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()

	for _, u := range []model.User{f.admin, f.chef, f.sales} {
		status, err := f.svc.GetStatus(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, status.Current)
		assert.Nil(t, status.Total)
		assert.Nil(t, status.Used)
		assert.Nil(t, status.LastRecharge)
	}

	status, err := f.svc.GetStatus(ctx, f.closer.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Current)
	assert.Zero(t, *status.Current)
	assert.Zero(t, *status.Total)

	_, err = f.credits.FindAccount(ctx, f.closer.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListClosers(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	second := model.User{Email: "second@agency.test", FullName: "Second Closer", Role: model.RoleCloser, IsActive: true}
	require.NoError(t, f.users.Create(ctx, &second))
	f.credits.Seed(second.ID, 4, 10)

	closers, err := f.svc.ListClosers(ctx)
	require.NoError(t, err)
	require.Len(t, closers, 2)

	byID := map[uuid.UUID]CloserCredits{}
	for _, c := range closers {
		byID[c.UserID] = c
	}
	assert.Zero(t, byID[f.closer.ID].Total)
	assert.Equal(t, 4, byID[second.ID].Current)
	assert.Equal(t, 6, byID[second.ID].Used)
	assert.Equal(t, "Second Closer", byID[second.ID].Name)
}
