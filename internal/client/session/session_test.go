package session

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSet_ValidToken(t *testing.T) {
	s := New()
	token := signToken(t, jwt.MapClaims{
		"sub": "acc-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	require.NoError(t, s.Set(token))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "acc-123", s.AccountID())

	got, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestSet_ExpiredToken(t *testing.T) {
	s := New()
	token := signToken(t, jwt.MapClaims{
		"sub": "acc-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	err := s.Set(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.False(t, s.Authenticated())
}

func TestSet_Garbage(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Set("not-a-jwt"), common.ErrInvalidToken)
}

func TestSet_MissingSubject(t *testing.T) {
	s := New()
	token := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	assert.ErrorIs(t, s.Set(token), common.ErrInvalidToken)
}

func TestTokenBilling(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := NewTokenBilling(s)

	st, err := b.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierGuest, st.Tier)

	token := signToken(t, jwt.MapClaims{
		"sub":  "acc-123",
		"tier": "premium",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, s.Set(token))

	st, err = b.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, st.Tier)
	assert.False(t, st.Loading)

	// No tier claim defaults to free.
	token = signToken(t, jwt.MapClaims{"sub": "acc-123", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, s.Set(token))

	st, err = b.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, st.Tier)
}

func TestToken_NoSession(t *testing.T) {
	s := New()
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, common.ErrNoSession)

	// after clear as well
	token := signToken(t, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, s.Set(token))
	s.Clear()
	_, err = s.Token(context.Background())
	assert.ErrorIs(t, err, common.ErrNoSession)
}
