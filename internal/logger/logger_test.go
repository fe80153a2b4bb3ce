package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAnonymize(t *testing.T) {
	in := "login for almaz@example.com with eyJhbGciOiJIUzI1NiJ9.e30.sig account_id=0190a1b2-c3d4"
	out := Anonymize(in)

	assert.NotContains(t, out, "almaz@example.com")
	assert.NotContains(t, out, "eyJhbGci")
	assert.Contains(t, out, "[REDACTED_EMAIL]")
	assert.Contains(t, out, "[REDACTED_TOKEN]")
	assert.Contains(t, out, "account_id=[ACCOUNT_ID]")
}

func TestLogger_ModuleAndErrorFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.Error("store", "insert failed for bob@example.com", errors.New("duplicate key"), zap.String("table", "follows"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "insert failed for [REDACTED_EMAIL]", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "store", fields["module"])
	assert.Equal(t, "duplicate key", fields["error"])
	assert.Equal(t, "follows", fields["table"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	require.NoError(t, SetLevel("error"))
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
	assert.Error(t, SetLevel("loud"))
}
