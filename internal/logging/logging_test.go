package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("指定したレベルが有効になること", func(t *testing.T) {
		t.Parallel()

		logger, err := New("warn", FormatJSON)
		require.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("console形式でも生成できること", func(t *testing.T) {
		t.Parallel()

		logger, err := New("DEBUG", FormatConsole)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("不正なレベルはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := New("verbose", FormatJSON)
		assert.Error(t, err)
	})

	t.Run("不正な形式はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := New("info", "xml")
		assert.Error(t, err)
	})
}
