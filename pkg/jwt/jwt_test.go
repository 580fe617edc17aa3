package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRoundTrip(t *testing.T) {
	m := NewManager("secret", "agency-crm-api", time.Hour)
	id := uuid.New()

	token, err := m.GenerateToken(id, "closer@example.com", "closer", "CLOSER", "v1")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "CLOSER", claims.Role)
	assert.Equal(t, "v1", claims.TokenVersion)
}

func TestManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	m := NewManager("secret", "agency-crm-api", time.Hour)

	other, err := NewManager("other-secret", "agency-crm-api", time.Hour).GenerateToken(uuid.New(), "", "", "CLOSER", "")
	require.NoError(t, err)
	_, err = m.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewManager("secret", "agency-crm-api", -time.Minute).GenerateToken(uuid.New(), "", "", "CLOSER", "")
	require.NoError(t, err)
	_, err = m.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
