package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RoundTrip(t *testing.T) {
	s := NewService("secret", time.Hour)

	token, expiresAt, err := s.GenerateToken("ops")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "generalscaler", claims.Issuer)
}

func TestService_RequiresSubject(t *testing.T) {
	_, _, err := NewService("secret", time.Hour).GenerateToken("")
	assert.Error(t, err)
}

func TestService_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued
	s := NewService("secret", time.Minute, WithClock(func() time.Time { return now }))

	token, _, err := s.GenerateToken("ops")
	require.NoError(t, err)

	now = issued.Add(2 * time.Minute)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestService_Rejects(t *testing.T) {
	s := NewService("secret", time.Hour)

	other, _, err := NewService("other", time.Hour).GenerateToken("ops")
	require.NoError(t, err)
	wrongIssuer, _, err := NewService("secret", time.Hour, WithIssuer("someone-else")).GenerateToken("ops")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "ops",
		Issuer:  "generalscaler",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"alg none":     none,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
