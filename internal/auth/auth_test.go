package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(Config{JWTSecret: "secret", AccessTokenTTL: time.Hour})

	token, exp, err := issuer.Issue(42, "anna@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	p, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, "anna@example.com", p.Email)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenIssuer(Config{JWTSecret: "one"}).Issue(1, "a@b.c")
	require.NoError(t, err)

	_, err = NewTokenIssuer(Config{JWTSecret: "two"}).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer(Config{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue(1, "a@b.c")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewTokenIssuer(Config{JWTSecret: "secret"}).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("festival2025", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "festival2025"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}
