package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/lapdesk/lapdesk-backend/internal/config"
)

// ErrInvalidPasscode is returned when a share passcode does not match.
var ErrInvalidPasscode = errors.New("invalid passcode")

// Claims extends JWT standard claims with the owner id. Owners are
// anonymous; the id is minted at token issue time and identifies one
// browser's exam sessions.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// AuthService issues and validates anonymous owner tokens and hashes
// share passcodes.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPasscode hashes a share passcode with the configured bcrypt cost.
func (s *AuthService) HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPasscode compares a plaintext passcode against a bcrypt hash.
func (s *AuthService) CheckPasscode(hash, passcode string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return ErrInvalidPasscode
	}
	return nil
}

// IssueOwnerToken mints a fresh owner id, signs a JWT for it, and registers
// the token id in Redis with the same expiry. No account is involved.
func (s *AuthService) IssueOwnerToken(ctx context.Context) (token string, ownerID string, err error) {
	ownerID = uuid.New().String()
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		OwnerID: ownerID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.OwnerTokenKey(ownerID), jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", "", fmt.Errorf("register token: %w", err)
	}

	return signed, ownerID, nil
}

// ValidateToken parses and validates an owner JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.OwnerID == "" {
		return nil, errors.New("token missing owner id")
	}

	return claims, nil
}

// RevokeOwnerToken removes the owner's token registration from Redis.
func (s *AuthService) RevokeOwnerToken(ctx context.Context, ownerID string) error {
	return s.rdb.Del(ctx, config.CacheKey.OwnerTokenKey(ownerID)).Err()
}
