package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/socialapi/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const rawAccountID = "0190f3c2-7d4e-7a8b-9c1d-2e3f4a5b6c7d"

// observe swaps the package logger for one recording into an observer.
func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logg
	logg = logger.NewWithCore(core)
	t.Cleanup(func() { logg = prev })
	return logs
}

func assertNoAccountID(t *testing.T, logs *observer.ObservedLogs) {
	t.Helper()
	for _, e := range logs.All() {
		assert.NotContains(t, e.Message, rawAccountID)
		for k, v := range e.ContextMap() {
			assert.NotEqual(t, "account_id", k)
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, rawAccountID, k)
			}
		}
	}
}

func TestAccessLog_RedactsAccountID(t *testing.T) {
	logs := observe(t)
	h := AccessLog(logg, &metricsRecorder{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		markAccount(r.Context(), rawAccountID)
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/feed", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["authenticated"])
	assertNoAccountID(t, logs)
}

func TestRateLimiter_RedactsAccountID(t *testing.T) {
	logs := observe(t)
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()
	h := rl.Middleware(okHandler())

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), withClaims(httptest.NewRequest(http.MethodGet, "/", nil), rawAccountID))
	}

	warnings := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.True(t, strings.Contains(warnings[0].Message, "account_id=[ACCOUNT_ID]"), warnings[0].Message)
	assertNoAccountID(t, logs)
}
