package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFieldsReachCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core)

	logger.Named("save").With(String("slot", "A")).Warn("file missing",
		Int("actors", 3),
		Duration("took", time.Second),
		Strings("tags", []string{"x"}),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "file missing", entry.Message)
	assert.Equal(t, "save", entry.LoggerName)

	ctx := entry.ContextMap()
	assert.Equal(t, "A", ctx["slot"])
	assert.Equal(t, int64(3), ctx["actors"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLoggerLevelGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core)

	logger.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, logger.GetLevel())

	logger.Info("dropped")
	logger.Warn("kept")
	require.Equal(t, 1, logs.Len())

	logger.SetLevel(LevelSilent)
	logger.Error("silenced")
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, LevelSilent, logger.GetLevel())
}

func TestDerivedLoggersShareLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core)
	child := logger.Named("child")

	logger.SetLevel(LevelError)
	child.Warn("dropped")
	assert.Zero(t, logs.Len())
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal, LevelTrace, LevelSilent} {
		parsed, err := ParseLevel(lvl.String())
		require.NoError(t, err)
		assert.Equal(t, lvl, parsed)
	}

	parsed, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, parsed)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNopAndProvide(t *testing.T) {
	NewNop().Error("nothing happens")
	assert.NotNil(t, Provide())
}
