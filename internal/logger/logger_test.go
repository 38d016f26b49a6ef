package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies string-to-level conversion including unknown input.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		level zapcore.Level
		ok    bool
	}{
		"debug":   {zapcore.DebugLevel, true},
		" INFO ":  {zapcore.InfoLevel, true},
		"warn":    {zapcore.WarnLevel, true},
		"error":   {zapcore.ErrorLevel, true},
		"fatal":   {zapcore.FatalLevel, true},
		"verbose": {zapcore.InfoLevel, false},
	}

	for input, expected := range cases {
		level, ok := ParseLogLevel(input)

		require.Equal(t, expected.level, level, "input %q", input)
		require.Equal(t, expected.ok, ok, "input %q", input)
	}
}

// TestFromContext_FallsBackToGlobal asserts a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithLevel_FiltersBelowThreshold verifies the per-logger level override.
func TestWithLevel_FiltersBelowThreshold(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	scoped := zap.New(core, WithLevel(zapcore.WarnLevel)).Sugar()

	scoped.Debug("dropped")
	scoped.Info("dropped")
	scoped.With("alarm_id", 1).Warn("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "kept", entries[0].Message)
	require.Equal(t, int64(1), entries[0].ContextMap()["alarm_id"])
}

// TestWithName_ScopesLogger verifies that named loggers propagate through the context.
func TestWithName_ScopesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	scoped := zap.New(core).Sugar()

	ctx := ToContext(context.Background(), scoped)
	ctx = WithName(ctx, "scheduler")
	ctx = WithKV(ctx, "alarm_id", 42)

	Info(ctx, "armed")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "scheduler", entries[0].LoggerName)
	require.Equal(t, int64(42), entries[0].ContextMap()["alarm_id"])
}
