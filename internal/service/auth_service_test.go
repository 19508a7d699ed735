package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapdesk/lapdesk-backend/internal/config"
)

func newAuthService() *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}, nil)
}

func signClaims(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func ownerClaims(ownerID string, expiresIn time.Duration) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		OwnerID: ownerID,
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := newAuthService()

	token := signClaims(t, "test-secret", ownerClaims("owner-123", time.Hour))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-123", claims.OwnerID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := newAuthService()

	token := signClaims(t, "other-secret", ownerClaims("owner-123", time.Hour))

	_, err := svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthService()

	token := signClaims(t, "test-secret", ownerClaims("owner-123", -time.Minute))

	_, err := svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsMissingOwner(t *testing.T) {
	svc := newAuthService()

	token := signClaims(t, "test-secret", ownerClaims("", time.Hour))

	_, err := svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestPasscodeHashRoundTrip(t *testing.T) {
	svc := newAuthService()

	hash, err := svc.HashPasscode("open-sesame")
	require.NoError(t, err)
	assert.NotEqual(t, "open-sesame", hash)

	assert.NoError(t, svc.CheckPasscode(hash, "open-sesame"))
	assert.ErrorIs(t, svc.CheckPasscode(hash, "wrong"), ErrInvalidPasscode)
}
