package repository

import (
	"context"
	"time"

	"agency-crm-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository stores closer balances and their ledger. Every mutating
// method applies the balance change and the ledger line as one atomic unit.
type CreditRepository interface {
	FindAccount(ctx context.Context, userID uuid.UUID) (*model.CreditAccount, error)
	FindAccounts(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.CreditAccount, error)
	// EnsureAccount creates a zero balance if none exists. It is idempotent.
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	// Deduct removes cost only if the balance covers it, otherwise ErrInsufficientBalance.
	Deduct(ctx context.Context, userID uuid.UUID, cost int, entry *model.CreditHistory) (*model.CreditAccount, error)
	Recharge(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (*model.CreditAccount, error)
	// Initialize creates a funded account. It reports false when one already existed.
	Initialize(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (bool, error)
	// ListHistory returns ledger lines newest first.
	ListHistory(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.CreditHistory, int64, error)
}

type creditRepo struct {
	db *gorm.DB
}

func NewCreditRepo(db *gorm.DB) CreditRepository {
	return &creditRepo{db}
}

func (r *creditRepo) FindAccount(ctx context.Context, userID uuid.UUID) (*model.CreditAccount, error) {
	var account model.CreditAccount
	if err := r.db.WithContext(ctx).First(&account, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *creditRepo) FindAccounts(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.CreditAccount, error) {
	out := make(map[uuid.UUID]model.CreditAccount, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var accounts []model.CreditAccount
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		out[a.UserID] = a
	}
	return out, nil
}

func (r *creditRepo) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	return ensureAccount(r.db.WithContext(ctx), userID)
}

func ensureAccount(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.CreditAccount{UserID: userID}).Error
}

func (r *creditRepo) Deduct(ctx context.Context, userID uuid.UUID, cost int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	var account model.CreditAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The balance predicate makes check and decrement one statement;
		// concurrent deductions serialize on the row lock.
		res := tx.Model(&model.CreditAccount{}).
			Where("user_id = ? AND current_balance >= ?", userID, cost).
			Updates(map[string]interface{}{
				"current_balance": gorm.Expr("current_balance - ?", cost),
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		entry.UserID = userID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.First(&account, "user_id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *creditRepo) Recharge(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	var account model.CreditAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, userID); err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&model.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"current_balance": gorm.Expr("current_balance + ?", amount),
				"total_granted":   gorm.Expr("total_granted + ?", amount),
				"last_recharge":   now,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}

		entry.UserID = userID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.First(&account, "user_id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *creditRepo) Initialize(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		account := model.CreditAccount{
			UserID:       userID,
			Current:      amount,
			Total:        amount,
			LastRecharge: &now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		entry.UserID = userID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *creditRepo) ListHistory(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.CreditHistory, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CreditHistory{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		return []model.CreditHistory{}, total, nil
	}

	var entries []model.CreditHistory
	err := q.Order("date DESC, id DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}
