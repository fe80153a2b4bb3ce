package middleware

import (
	"context"
	"net/http"
	"time"

	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/metrics"
	"go.uber.org/zap"
)

var logg = logger.New()

type requestInfoKey struct{}

// requestInfo lets inner middleware report the authenticated account back to
// the access log, which wraps them.
type requestInfo struct {
	accountID string
}

func markAccount(ctx context.Context, id string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.accountID = id
	}
}

// statusRecorder wraps http.ResponseWriter and remembers the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// AccessLog logs one line per request and reports status and latency to rec.
func AccessLog(l *logger.Logger, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			info := &requestInfo{}

			next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

			duration := time.Since(start)
			rec.RecordHTTPStatus(sr.statusCode)
			rec.RecordHTTPLatency(duration)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.statusCode),
				zap.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}
			// Account ids are redacted everywhere in logs; only note that the
			// caller was signed in.
			fields = append(fields, zap.Bool("authenticated", info.accountID != ""))

			switch {
			case sr.statusCode >= 500:
				l.Error("http", "http_request", nil, fields...)
			case sr.statusCode >= 400:
				l.Warn("http", "http_request", fields...)
			default:
				l.Info("http", "http_request", fields...)
			}
		})
	}
}
