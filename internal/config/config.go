// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/zappabad/exchange/internal/exchange"
)

// LoadEnv reads a .env file into the environment if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// GetEnv returns the environment variable for key, or fallback when it
// is unset.
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt returns the environment variable for key parsed as an int,
// or fallback when it is unset or malformed.
func GetEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", key, value, err)
		return fallback
	}
	return n
}

// FromEnv builds an exchange configuration from the environment.
func FromEnv() exchange.Config {
	cfg := exchange.DefaultConfig()
	cfg.Book.CommandBuffer = GetEnvInt("BOOK_COMMAND_BUFFER", cfg.Book.CommandBuffer)
	cfg.Book.FillTapeSize = GetEnvInt("BOOK_FILL_TAPE_SIZE", cfg.Book.FillTapeSize)
	cfg.Ledger.CommandBuffer = GetEnvInt("LEDGER_COMMAND_BUFFER", cfg.Ledger.CommandBuffer)
	cfg.Ledger.MailboxBuffer = GetEnvInt("LEDGER_MAILBOX_BUFFER", cfg.Ledger.MailboxBuffer)
	cfg.Ledger.StashLimit = GetEnvInt("LEDGER_STASH_LIMIT", cfg.Ledger.StashLimit)
	return cfg
}
