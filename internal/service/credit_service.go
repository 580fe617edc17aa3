package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"
	"agency-crm-api/internal/ws"

	"github.com/google/uuid"
)

const (
	MinRechargeAmount     = 1
	MaxRechargeAmount     = 10000
	DefaultInitialCredits = 100
	MaxInitialCredits     = 1000

	DefaultPageLimit = 20
	MaxPageLimit     = 100

	DefaultRechargeReason = "Recharge manuelle"
	InitialAllocReason    = "Allocation initiale"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
	Name string
}

// EventPublisher pushes realtime notifications. *ws.Hub satisfies it.
type EventPublisher interface {
	Publish(eventType string, owner uuid.UUID, data interface{}) bool
}

type CreditService interface {
	RevealPhone(ctx context.Context, userID, clientID uuid.UUID) (*RevealResult, error)
	Recharge(ctx context.Context, actor Actor, targetID uuid.UUID, amount int, reason string) (*CreditBalance, error)
	BulkInitialize(ctx context.Context, actor Actor, initialAmount int) (*BulkInitResult, error)
	GetHistory(ctx context.Context, actor Actor, targetID uuid.UUID, page, limit int) (*HistoryPage, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*CreditStatus, error)
	ListClosers(ctx context.Context) ([]CloserCredits, error)
}

type RevealResult struct {
	PhoneNumber      string              `json:"phoneNumber"`
	CreditsRemaining int                 `json:"creditsRemaining"`
	ClientName       string              `json:"clientName"`
	ClientID         uuid.UUID           `json:"clientId"`
	CreditCost       int                 `json:"creditCost"`
	ClientScore      int                 `json:"clientScore"`
	ScoreCategory    model.ScoreCategory `json:"scoreCategory"`
}

type CreditBalance struct {
	UserID       uuid.UUID  `json:"userId"`
	Current      int        `json:"current"`
	Total        int        `json:"total"`
	Used         int        `json:"used"`
	LastRecharge *time.Time `json:"lastRecharge"`
}

// CreditStatus leaves every balance field nil for roles that do not spend credits.
type CreditStatus struct {
	UserID       uuid.UUID  `json:"userId"`
	Role         model.Role `json:"role"`
	Current      *int       `json:"current"`
	Total        *int       `json:"total"`
	Used         *int       `json:"used"`
	LastRecharge *time.Time `json:"lastRecharge"`
}

type BulkInitError struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Error  string    `json:"error"`
}

type BulkInitResult struct {
	UpdatedCount  int             `json:"updatedCount"`
	TotalEligible int             `json:"totalEligible"`
	Errors        []BulkInitError `json:"errors"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// pageWindow normalizes page and limit and returns the row offset of the page.
// Pages whose offset would not fit in an int are rejected.
func pageWindow(page, limit int) (int, int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page > math.MaxInt/limit {
		return 0, 0, 0, newValidation("Page is out of range")
	}
	return page, limit, (page - 1) * limit, nil
}

type HistoryPage struct {
	UserID     uuid.UUID             `json:"userId"`
	History    []model.CreditHistory `json:"history"`
	Pagination Pagination            `json:"pagination"`
}

type CloserCredits struct {
	UserID       uuid.UUID  `json:"userId"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"isActive"`
	Current      int        `json:"current"`
	Total        int        `json:"total"`
	Used         int        `json:"used"`
	LastRecharge *time.Time `json:"lastRecharge"`
}

type creditService struct {
	userRepo   repository.UserRepository
	clientRepo repository.SuggestedClientRepository
	creditRepo repository.CreditRepository
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewCreditService(
	userRepo repository.UserRepository,
	clientRepo repository.SuggestedClientRepository,
	creditRepo repository.CreditRepository,
	events EventPublisher,
	logger *slog.Logger,
) CreditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &creditService{
		userRepo:   userRepo,
		clientRepo: clientRepo,
		creditRepo: creditRepo,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *creditService) RevealPhone(ctx context.Context, userID, clientID uuid.UUID) (*RevealResult, error) {
	// 1. Load the closer
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleCloser {
		return nil, newForbidden("Only closers spend credits to reveal phone numbers")
	}

	// 2. Get-or-create the balance
	if err := s.creditRepo.EnsureAccount(ctx, userID); err != nil {
		return nil, newInternal("Failed to initialize credits", err)
	}

	// 3. Load the lead
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newNotFound("Client not found")
		}
		return nil, newInternal("Failed to load client", err)
	}
	if client.PhoneNumber == "" {
		return nil, newValidation("This client has no phone number")
	}

	// 4. Price it
	cost := model.CreditCost(client.Score)
	category := model.CategoryForScore(client.Score)

	account, err := s.creditRepo.FindAccount(ctx, userID)
	if err != nil {
		return nil, newInternal("Failed to load credits", err)
	}
	if account.Current < cost {
		return nil, insufficient(cost, account.Current, client)
	}

	// 5. Conditional deduction; a concurrent reveal may have spent the balance since the read above
	now := s.now()
	entry := &model.CreditHistory{
		Type:            model.CreditDeduction,
		Amount:          cost,
		Reason:          fmt.Sprintf("Révélation du téléphone de %s (ID: %s) - Score: %d (%s)", client.Name, client.ID, client.Score, category),
		Date:            now,
		RelatedClientID: &client.ID,
	}
	account, err = s.creditRepo.Deduct(ctx, userID, cost, entry)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			current := 0
			fresh, ferr := s.creditRepo.FindAccount(ctx, userID)
			if ferr != nil {
				s.logger.Warn("reload balance after failed deduction", "user_id", userID, "error", ferr)
			} else {
				current = fresh.Current
			}
			return nil, insufficient(cost, current, client)
		}
		return nil, newInternal("Failed to deduct credits", err)
	}

	s.logger.Info("phone number revealed",
		"user", user.DisplayName(),
		"user_id", user.ID,
		"client_id", client.ID,
		"cost", cost,
		"score_category", category,
		"at", now,
	)
	s.publish(account)

	return &RevealResult{
		PhoneNumber:      client.PhoneNumber,
		CreditsRemaining: account.Current,
		ClientName:       client.Name,
		ClientID:         client.ID,
		CreditCost:       cost,
		ClientScore:      client.Score,
		ScoreCategory:    category,
	}, nil
}

func insufficient(cost, current int, client *model.SuggestedClient) *InsufficientCreditsError {
	return &InsufficientCreditsError{
		RequiredCredits: cost,
		CurrentCredits:  current,
		ClientScore:     client.Score,
		ScoreCategory:   model.CategoryForScore(client.Score),
	}
}

func (s *creditService) Recharge(ctx context.Context, actor Actor, targetID uuid.UUID, amount int, reason string) (*CreditBalance, error) {
	if !actor.Role.IsAdminTier() {
		return nil, newForbidden("Only administrators can add credits")
	}
	if amount < MinRechargeAmount || amount > MaxRechargeAmount {
		return nil, newValidation(fmt.Sprintf("Amount must be an integer between %d and %d", MinRechargeAmount, MaxRechargeAmount))
	}

	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role != model.RoleCloser {
		return nil, newValidation("Credits can only be added to closers")
	}

	if reason == "" {
		reason = DefaultRechargeReason
	}
	account, err := s.creditRepo.Recharge(ctx, targetID, amount, &model.CreditHistory{
		Type:    model.CreditRecharge,
		Amount:  amount,
		Reason:  reason,
		Date:    s.now(),
		AdminID: &actor.ID,
	})
	if err != nil {
		return nil, newInternal("Failed to add credits", err)
	}

	s.logger.Info("credits recharged",
		"admin", actor.Name,
		"admin_id", actor.ID,
		"user_id", targetID,
		"amount", amount,
		"current", account.Current,
	)
	s.publish(account)

	balance := toBalance(account)
	return &balance, nil
}

func (s *creditService) BulkInitialize(ctx context.Context, actor Actor, initialAmount int) (*BulkInitResult, error) {
	if actor.Role != model.RoleSuperAdmin {
		return nil, newForbidden("Only super administrators can initialize credits")
	}
	if initialAmount < MinRechargeAmount || initialAmount > MaxInitialCredits {
		return nil, newValidation(fmt.Sprintf("Initial amount must be between %d and %d", MinRechargeAmount, MaxInitialCredits))
	}

	closers, err := s.userRepo.FindByRole(ctx, model.RoleCloser)
	if err != nil {
		return nil, newInternal("Failed to load closers", err)
	}
	accounts, err := s.creditRepo.FindAccounts(ctx, userIDs(closers))
	if err != nil {
		return nil, newInternal("Failed to load credits", err)
	}

	result := &BulkInitResult{Errors: []BulkInitError{}}
	for _, closer := range closers {
		if _, ok := accounts[closer.ID]; ok {
			continue
		}
		result.TotalEligible++

		created, err := s.creditRepo.Initialize(ctx, closer.ID, initialAmount, &model.CreditHistory{
			Type:    model.CreditRecharge,
			Amount:  initialAmount,
			Reason:  InitialAllocReason,
			Date:    s.now(),
			AdminID: &actor.ID,
		})
		if err != nil {
			s.logger.Warn("credit initialization failed", "user_id", closer.ID, "error", err)
			result.Errors = append(result.Errors, BulkInitError{UserID: closer.ID, Email: closer.Email, Error: err.Error()})
			continue
		}
		if created {
			result.UpdatedCount++
			s.publish(&model.CreditAccount{UserID: closer.ID, Current: initialAmount, Total: initialAmount})
		}
	}

	s.logger.Info("credits initialized",
		"admin_id", actor.ID,
		"amount", initialAmount,
		"updated", result.UpdatedCount,
		"eligible", result.TotalEligible,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *creditService) GetHistory(ctx context.Context, actor Actor, targetID uuid.UUID, page, limit int) (*HistoryPage, error) {
	if actor.ID != targetID && !actor.Role.IsAdminTier() {
		return nil, newForbidden("You can only view your own credit history")
	}
	if _, err := s.loadUser(ctx, targetID); err != nil {
		return nil, err
	}

	page, limit, offset, err := pageWindow(page, limit)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.creditRepo.ListHistory(ctx, targetID, offset, limit)
	if err != nil {
		return nil, newInternal("Failed to load credit history", err)
	}
	if entries == nil {
		entries = []model.CreditHistory{}
	}

	return &HistoryPage{
		UserID:  targetID,
		History: entries,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (s *creditService) GetStatus(ctx context.Context, userID uuid.UUID) (*CreditStatus, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &CreditStatus{UserID: user.ID, Role: user.Role}
	if user.Role != model.RoleCloser {
		return status, nil
	}

	account, err := s.creditRepo.FindAccount(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		account = &model.CreditAccount{UserID: userID}
	case err != nil:
		return nil, newInternal("Failed to load credits", err)
	}

	current, total, used := account.Current, account.Total, account.Used()
	status.Current = &current
	status.Total = &total
	status.Used = &used
	status.LastRecharge = account.LastRecharge
	return status, nil
}

func (s *creditService) ListClosers(ctx context.Context) ([]CloserCredits, error) {
	closers, err := s.userRepo.FindByRole(ctx, model.RoleCloser)
	if err != nil {
		return nil, newInternal("Failed to load closers", err)
	}
	accounts, err := s.creditRepo.FindAccounts(ctx, userIDs(closers))
	if err != nil {
		return nil, newInternal("Failed to load credits", err)
	}

	out := make([]CloserCredits, len(closers))
	for i, closer := range closers {
		account := accounts[closer.ID]
		out[i] = CloserCredits{
			UserID:       closer.ID,
			Name:         closer.DisplayName(),
			Email:        closer.Email,
			IsActive:     closer.IsActive,
			Current:      account.Current,
			Total:        account.Total,
			Used:         account.Used(),
			LastRecharge: account.LastRecharge,
		}
	}
	return out, nil
}

func (s *creditService) loadUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newNotFound("User not found")
		}
		return nil, newInternal("Failed to load user", err)
	}
	return user, nil
}

func (s *creditService) publish(account *model.CreditAccount) {
	if s.events == nil {
		return
	}
	s.events.Publish(ws.EventCreditsUpdated, account.UserID, toBalance(account))
}

func toBalance(a *model.CreditAccount) CreditBalance {
	return CreditBalance{
		UserID:       a.UserID,
		Current:      a.Current,
		Total:        a.Total,
		Used:         a.Used(),
		LastRecharge: a.LastRecharge,
	}
}

func userIDs(users []model.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
