package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreCategory buckets a lead score into a pricing tier.
type ScoreCategory string

const (
	ScoreLow    ScoreCategory = "Low"
	ScoreMedium ScoreCategory = "Medium"
	ScoreHigh   ScoreCategory = "High"
)

// CategoryForScore maps a lead score onto its tier:
// below 100 is Low, 100 through 400 is Medium, above 400 is High.
func CategoryForScore(score int) ScoreCategory {
	switch {
	case score < 100:
		return ScoreLow
	case score <= 400:
		return ScoreMedium
	default:
		return ScoreHigh
	}
}

// CreditCost returns the number of credits needed to reveal a lead with the given score.
func CreditCost(score int) int {
	switch CategoryForScore(score) {
	case ScoreLow:
		return 1
	case ScoreMedium:
		return 2
	default:
		return 3
	}
}

// CreditEntryType is the kind of a ledger entry.
type CreditEntryType string

const (
	CreditRecharge  CreditEntryType = "recharge"
	CreditDeduction CreditEntryType = "deduction"
)

// CreditAccount is a closer's spendable balance. Used is derived from
// Total and Current so the two can never drift apart.
type CreditAccount struct {
	UserID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	Current      int        `gorm:"column:current_balance;not null;default:0;check:credits_current_non_negative,current_balance >= 0" json:"current"`
	Total        int        `gorm:"column:total_granted;not null;default:0" json:"total"`
	LastRecharge *time.Time `json:"last_recharge"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CreditAccount) TableName() string {
	return "credit_accounts"
}

// Used returns the lifetime credits spent.
func (a *CreditAccount) Used() int {
	return a.Total - a.Current
}

// CreditHistory is one append-only ledger line.
type CreditHistory struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_credit_history_user_date,priority:1" json:"user_id"`
	Type            CreditEntryType `gorm:"type:varchar(20);not null" json:"type"`
	Amount          int             `gorm:"not null" json:"amount"`
	Reason          string          `gorm:"type:text" json:"reason"`
	Date            time.Time       `gorm:"not null;index:idx_credit_history_user_date,priority:2,sort:desc" json:"date"`
	RelatedClientID *uuid.UUID      `gorm:"type:uuid" json:"related_client_id,omitempty"`
	AdminID         *uuid.UUID      `gorm:"type:uuid" json:"admin_id,omitempty"`
}

// TableName specifies the table name for GORM
func (CreditHistory) TableName() string {
	return "credit_history"
}
