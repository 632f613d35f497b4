package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TheMaster3558/toppy/internal/observability"
)

func TestGofulmenLoggers(t *testing.T) {
	t.Run("CLI", func(t *testing.T) {
		observability.InitCLILogger("toppy-test", true)
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Debug("cli logger ready", zap.String("test", t.Name()))
	})

	t.Run("Server", func(t *testing.T) {
		observability.InitServerLogger("toppy-test", "warn")
		require.NotNil(t, observability.ServerLogger)
		observability.ServerLogger.Info("server logger ready", zap.Int("port", 8080))
	})
}

func TestNewZapLogger(t *testing.T) {
	logger, err := observability.NewZapLogger("debug", "json")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = observability.NewZapLogger("bogus", "console")
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
}
