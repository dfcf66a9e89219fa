package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core), level), logs
}

func TestLevelFiltering(t *testing.T) {
	l, logs := observed(LevelWarn)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept too")
	assert.Equal(t, 2, logs.Len())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("now kept")
	assert.Equal(t, 3, logs.Len())
}

func TestFieldsAreTyped(t *testing.T) {
	l, logs := observed(LevelDebug)

	l.Info("tick",
		Int("tick", 3),
		Float64("x", 1.5),
		String("mode", "slide"),
		Bool("hit", true),
		Duration("elapsed", time.Second),
		Uint64("seed", 42),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, int64(3), ctx["tick"])
	assert.Equal(t, 1.5, ctx["x"])
	assert.Equal(t, "slide", ctx["mode"])
	assert.Equal(t, true, ctx["hit"])
	assert.Equal(t, time.Second, ctx["elapsed"])
	assert.Equal(t, uint64(42), ctx["seed"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWithAndContext(t *testing.T) {
	l, logs := observed(LevelInfo)

	child := l.With(Component("runner"))
	ctx := ContextWith(context.Background(), String("episode", "e-1"))
	child.WithContext(ctx).Info("done")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "runner", fields["component"])
	assert.Equal(t, "e-1", fields["episode"])

	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "warn", LevelWarn.String())
}

func TestProvideNeverNil(t *testing.T) {
	assert.NotNil(t, Provide())
}
