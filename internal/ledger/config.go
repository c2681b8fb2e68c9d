package ledger

import (
	"time"

	"go.uber.org/zap"
)

// Config holds configuration for a ledger service.
type Config struct {
	// CommandBuffer is the size of the inbound command channel.
	CommandBuffer int
	// MailboxBuffer is the size of each order process mailbox.
	MailboxBuffer int
	// StashLimit bounds the messages an order process buffers while its
	// setup messages are still in flight. Excess messages are dropped
	// with a warning.
	StashLimit int
	// StopTimeout bounds the graceful stop of order process children
	// during shutdown.
	StopTimeout time.Duration
	// Logger receives ledger logs. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		CommandBuffer: 256,
		MailboxBuffer: 64,
		StashLimit:    64,
		StopTimeout:   10 * time.Second,
	}
}
