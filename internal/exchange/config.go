package exchange

import (
	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/ledger"
	bookservice "github.com/zappabad/exchange/internal/orderbook/service"
)

// Config holds configuration for an Exchange and the services it
// creates.
type Config struct {
	// Book configures every order book the exchange registers.
	Book bookservice.Config
	// Ledger configures every per-user balance ledger.
	Ledger ledger.Config
	// Logger receives exchange lifecycle logs. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Book:   bookservice.DefaultConfig(),
		Ledger: ledger.DefaultConfig(),
	}
}
