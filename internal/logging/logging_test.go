package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dbascode/dbsync/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoAndText(t *testing.T) {
	ctx := context.Background()
	logger := logging.New("bogus-format", "bogus-level")
	require.NotNil(t, logger)
	require.True(t, logger.Enabled(ctx, slog.LevelInfo))
	require.False(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestNewHonorsDebugLevel(t *testing.T) {
	logger := logging.New("json", "debug")
	require.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewHonorsErrorLevel(t *testing.T) {
	logger := logging.New("text", "error")
	ctx := context.Background()
	require.False(t, logger.Enabled(ctx, slog.LevelWarn))
	require.True(t, logger.Enabled(ctx, slog.LevelError))
}
