// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims carried by every access token. ID (jti) is used for revocation.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret      []byte
	ttl         time.Duration
	revocations Revocations
	now         func() time.Time
}

// NewTokens creates a token service. A nil revocation list disables logout.
func NewTokens(secret string, ttl time.Duration, rev Revocations) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{
		secret:      []byte(secret),
		ttl:         ttl,
		revocations: rev,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs a token for accountID.
func (t *Tokens) Issue(accountID string) (string, error) {
	now := t.now()
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates signature, expiry and revocation status.
func (t *Tokens) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}

	if t.revocations != nil && claims.ID != "" {
		revoked, err := t.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke invalidates the token described by claims until it would have expired.
func (t *Tokens) Revoke(ctx context.Context, claims *Claims) error {
	if t.revocations == nil {
		return errors.New("token revocation is not configured")
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	ttl := claims.ExpiresAt.Time.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.revocations.Revoke(ctx, claims.ID, ttl)
}
