package dispatcher

import (
	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// Fallback receives messages no handler matched.
type Fallback func(in port.Sender, msg message.Message)

// LogFallback returns the default fallback, which logs the unmatched message.
func LogFallback(logger *zap.Logger) Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ port.Sender, msg message.Message) {
		logger.Warn("unknown message",
			zap.String("tag", msg.Tag),
			zap.ByteString("payload", msg.Payload),
		)
	}
}
