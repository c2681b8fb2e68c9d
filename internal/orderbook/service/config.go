package service

import "go.uber.org/zap"

// Config holds configuration for a book service.
type Config struct {
	// CommandBuffer is the size of the inbound command channel.
	CommandBuffer int
	// FillTapeSize is the capacity of the fill tape ring buffer.
	FillTapeSize int
	// Logger receives submission and fill logs. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		CommandBuffer: 256,
		FillTapeSize:  1000,
	}
}
