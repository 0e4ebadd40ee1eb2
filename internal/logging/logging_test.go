package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/portsdriver/internal/logging"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := logging.New("warn", format)
		require.NoError(t, err, format)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	}
}

func TestNewErrors(t *testing.T) {
	_, err := logging.New("chatty", "json")
	assert.Error(t, err)

	_, err = logging.New("info", "xml")
	assert.Error(t, err)

	assert.Panics(t, func() { logging.Must("info", "xml") })
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))

	logger := logging.Must("debug", "console")
	assert.Same(t, logger, logging.OrNop(logger))
}
