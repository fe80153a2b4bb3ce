package logger

import (
	"os"
	"regexp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	emailRegex     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex     = regexp.MustCompile(`eyJ[^\s"]+`)
	accountIDRegex = regexp.MustCompile(`\b(user_id|account_id)\s*=\s*[0-9a-fA-F-]+`)
)

// level is shared by every Logger so SetLevel applies to package-level loggers
// created before configuration was loaded.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Logger is a centralized structured logger. Every entry carries the module
// that produced it and has its message anonymized.
type Logger struct {
	z *zap.Logger
}

// New creates a JSON Logger writing to stdout.
func New() *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), level)
	return &Logger{z: zap.New(core)}
}

// NewWithCore builds a Logger on top of an arbitrary zap core (tests, tee to files).
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core)}
}

// SetLevel changes the minimum level of all loggers ("debug", "info", "error", ...).
func SetLevel(s string) error {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = accountIDRegex.ReplaceAllString(s, "${1}=[ACCOUNT_ID]")
	return s
}

func (l *Logger) Info(module, msg string, fields ...zap.Field) {
	l.z.Info(Anonymize(msg), append(fields, zap.String("module", module))...)
}

func (l *Logger) Debug(module, msg string, fields ...zap.Field) {
	l.z.Debug(Anonymize(msg), append(fields, zap.String("module", module))...)
}

func (l *Logger) Warn(module, msg string, fields ...zap.Field) {
	l.z.Warn(Anonymize(msg), append(fields, zap.String("module", module))...)
}

func (l *Logger) Error(module, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("module", module))
	if err != nil {
		fields = append(fields, zap.String("error", Anonymize(err.Error())))
	}
	l.z.Error(Anonymize(msg), fields...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
