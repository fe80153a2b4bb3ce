package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"example.com/socialapi/internal/apperr"
	"golang.org/x/time/rate"
)

// accountLimiter is one token bucket plus the last time it was used.
type accountLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps a token bucket per account.
type RateLimiter struct {
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*accountLimiter

	stopCh chan struct{}
	now    func() time.Time
}

// NewRateLimiter starts a limiter allowing rps requests per second per account
// with the given burst. Call Stop to end the cleanup goroutine.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:            rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		limiters:        make(map[string]*accountLimiter),
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware answers 429 once the caller's bucket is empty. Must run after JWTAuth.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := AccountIDFromContext(r.Context())
		if !ok {
			apperr.Write(w, apperr.Authentication("authentication required"))
			return
		}

		if !rl.limiterFor(id).Allow() {
			logg.Warn("middleware/ratelimit", "Rate limit exceeded for account_id="+id)
			rl.writeTooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Len returns the number of tracked accounts.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(id string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	al, ok := rl.limiters[id]
	if !ok {
		al = &accountLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[id] = al
	}
	al.lastAccess = rl.now()
	return al.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets accounts idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup() {
	ttl := rl.cleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, al := range rl.limiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}

func (rl *RateLimiter) writeTooManyRequests(w http.ResponseWriter) {
	retryAfter := 1
	if rl.rate > 0 {
		retryAfter = max(1, int(math.Ceil(1.0/float64(rl.rate))))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}` + "\n"))
}
