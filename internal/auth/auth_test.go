package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := CheckPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "battery staple")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour, nil)

	tok, err := tokens.Issue("acc-1")
	require.NoError(t, err)

	claims, err := tokens.Parse(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.NotEmpty(t, claims.ID)
}

func TestTokens_RejectsWrongSecretAndExpired(t *testing.T) {
	issuer := NewTokens("one", time.Hour, nil)
	tok, err := issuer.Issue("acc-1")
	require.NoError(t, err)

	_, err = NewTokens("two", time.Hour, nil).Parse(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens("one", time.Minute, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("acc-1")
	require.NoError(t, err)
	_, err = issuer.Parse(context.Background(), old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{AccountID: "acc-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("s", time.Hour, nil).Parse(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_RevokeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := NewTokens("test-secret", time.Hour, NewRedisRevocations(client))
	ctx := context.Background()

	tok, err := tokens.Issue("acc-1")
	require.NoError(t, err)
	claims, err := tokens.Parse(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(ctx, claims))
	assert.True(t, mr.Exists("revoked:"+claims.ID))

	_, err = tokens.Parse(ctx, tok)
	assert.ErrorIs(t, err, ErrRevokedToken)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("revoked:"+claims.ID))
}

func TestMemoryRevocations_Expire(t *testing.T) {
	m := NewMemoryRevocations()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokens_RevokeWithoutList(t *testing.T) {
	tokens := NewTokens("s", time.Hour, nil)
	assert.Error(t, tokens.Revoke(context.Background(), &Claims{}))
}
