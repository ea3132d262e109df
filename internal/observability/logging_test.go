package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		logger, err := NewLogger(LogConfig{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := NewLogger(LogConfig{Level: "info", Format: "console", Output: "stderr"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger(LogConfig{Level: "loud"})
		assert.Error(t, err)
	})
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestWithContext(t *testing.T) {
	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-1")

	// Must not panic and must return a usable logger either way.
	assert.NotNil(t, logger.WithContext(ctx))
	assert.NotNil(t, logger.WithContext(context.Background()))
}

func TestUnderlying(t *testing.T) {
	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)
	assert.NotNil(t, Underlying(logger))

	// Non-zap loggers still get a usable zap handle.
	assert.NotNil(t, Underlying(NopLogger()))
}

func TestGlobalLogger(t *testing.T) {
	assert.NotNil(t, GetGlobalLogger())

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Equal(t, logger, GetGlobalLogger())
}
