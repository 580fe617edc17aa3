package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditCostSchedule(t *testing.T) {
	cases := []struct {
		score    int
		cost     int
		category ScoreCategory
	}{
		{0, 1, ScoreLow},
		{50, 1, ScoreLow},
		{99, 1, ScoreLow},
		{100, 2, ScoreMedium},
		{250, 2, ScoreMedium},
		{400, 2, ScoreMedium},
		{401, 3, ScoreHigh},
		{500, 3, ScoreHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.cost, CreditCost(tc.score), "score %d", tc.score)
		assert.Equal(t, tc.category, CategoryForScore(tc.score), "score %d", tc.score)
	}
}

func TestUsedIsDerived(t *testing.T) {
	a := CreditAccount{Current: 3, Total: 10}
	assert.Equal(t, 7, a.Used())
}

func TestSuggestedClientMasking(t *testing.T) {
	c := SuggestedClient{Name: "Lead", PhoneNumber: "+33600000000", Score: 120}

	open := c.ToResponse(false)
	assert.Equal(t, "+33600000000", open.PhoneNumber)
	assert.Equal(t, "Medium", open.Category)

	hidden := c.ToResponse(true)
	assert.Empty(t, hidden.PhoneNumber)
	assert.True(t, hidden.HasPhone)

	empty := SuggestedClient{Name: "No phone"}
	assert.False(t, empty.ToResponse(true).HasPhone)
}

func TestRoleTiers(t *testing.T) {
	assert.True(t, RoleSuperAdmin.IsAdminTier())
	assert.True(t, RoleChefDeBureau.IsAdminTier())
	assert.False(t, RoleCloser.IsAdminTier())
	assert.False(t, Role("INTERN").IsValid())
	assert.True(t, RoleComptable.IsValid())
}

func TestUserPasswordAndDisplayName(t *testing.T) {
	u := User{Email: "a@agency.test"}
	assert.NoError(t, u.SetPassword("secret123"))
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("nope"))

	assert.Equal(t, "a@agency.test", u.DisplayName())
	u.FullName = "Alice"
	assert.Equal(t, "Alice", u.DisplayName())
	u.Username = "alice"
	assert.Equal(t, "alice", u.DisplayName())
}
