package model

import (
	"time"

	"github.com/google/uuid"
)

// SuggestedClient is a lead offered to closers. Score is set by the lead
// qualification pipeline and only read here.
type SuggestedClient struct {
	BaseModel
	Name        string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Company     string `gorm:"type:varchar(255)" json:"company"`
	Email       string `gorm:"type:varchar(255)" json:"email" validate:"omitempty,email"`
	PhoneNumber string `gorm:"type:varchar(30)" json:"phone_number"`
	Score       int    `gorm:"default:0;index" json:"score" validate:"gte=0"`
	Source      string `gorm:"type:varchar(100)" json:"source"`
	Notes       string `gorm:"type:text" json:"notes"`
}

// TableName specifies the table name for GORM
func (SuggestedClient) TableName() string {
	return "suggested_clients"
}

// SuggestedClientResponse is the listing form. PhoneNumber is left empty
// when the caller must pay to reveal it.
type SuggestedClientResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	HasPhone    bool      `json:"has_phone"`
	Score       int       `json:"score"`
	Category    string    `json:"score_category"`
	Source      string    `json:"source"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToResponse converts the lead, hiding the phone number when masked is set.
func (c *SuggestedClient) ToResponse(masked bool) SuggestedClientResponse {
	resp := SuggestedClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Company:   c.Company,
		Email:     c.Email,
		HasPhone:  c.PhoneNumber != "",
		Score:     c.Score,
		Category:  string(CategoryForScore(c.Score)),
		Source:    c.Source,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
	if !masked {
		resp.PhoneNumber = c.PhoneNumber
	}
	return resp
}
