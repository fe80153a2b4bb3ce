package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/auth"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/store"
)

type contextKey string

const claimsCtxKey = contextKey("claims")

// JWTAuth rejects requests without a valid, unrevoked bearer token and stores
// its claims in the request context.
func JWTAuth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperr.Write(w, apperr.Authentication("missing Authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				apperr.Write(w, apperr.Authentication("invalid Authorization header"))
				return
			}

			claims, err := tokens.Parse(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, auth.ErrRevokedToken) {
					apperr.Write(w, apperr.Authentication("token has been revoked"))
					return
				}
				if !errors.Is(err, auth.ErrInvalidToken) {
					logg.Error("middleware/auth", "Token check failed", err)
					apperr.Write(w, err)
					return
				}
				apperr.Write(w, apperr.Authentication("invalid token"))
				return
			}

			markAccount(r.Context(), claims.AccountID)
			ctx := context.WithValue(r.Context(), claimsCtxKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by JWTAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*auth.Claims)
	return c, ok
}

// AccountIDFromContext returns the authenticated account id.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return c.AccountID, true
}

// LoadActor resolves the caller's groups and stores the access.Actor.
// Must run after JWTAuth. Tokens of deleted accounts are rejected.
func LoadActor(accounts store.AccountStore, memberships store.MembershipStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := AccountIDFromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.Authentication("authentication required"))
				return
			}

			exists, err := accounts.AccountExists(r.Context(), id)
			if err != nil {
				logg.Error("middleware/actor", "Failed to look up account", err)
				apperr.Write(w, err)
				return
			}
			if !exists {
				apperr.Write(w, apperr.Authentication("account no longer exists"))
				return
			}

			groups, err := memberships.GroupsOf(r.Context(), id)
			if err != nil {
				logg.Error("middleware/actor", "Failed to load groups", err)
				apperr.Write(w, err)
				return
			}

			ctx := access.WithActor(r.Context(), access.Actor{AccountID: id, Groups: groups})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability answers 403 unless the actor holds c on res.
func RequireCapability(p *access.Policy, rec metrics.Recorder, res access.Resource, c access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := access.ActorFromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.Authentication("authentication required"))
				return
			}
			if err := p.Authorize(actor, res, c); err != nil {
				rec.RecordPermissionDenied(string(res), c.String())
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
