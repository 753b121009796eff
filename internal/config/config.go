// internal/config/config.go
//
// Process configuration.
//
// Positional arguments (required):
//   concentration-server <port> <board-dimension>
//
// Environment variables (optional, may come from a .env file):
//   LOG_LEVEL                      zerolog level (default info)
//   LOG_PRETTY                     human readable console output
//   CONCENTRATION_REVEAL_DELAY     pause before MATCH/MISMATCH (default 500ms)
//   CONCENTRATION_CHEAT            log each new board's solution
//   CONCENTRATION_HTTP_ADDR        ops HTTP + WebSocket address (disabled if empty)
//   CONCENTRATION_ALLOWED_ORIGINS  comma separated WebSocket origin patterns
//   CONCENTRATION_DB               SQLite history file (in-memory if empty)
//   CONCENTRATION_HISTORY_LIMIT    default row count for /games/recent
//
// The board dimension is deliberately not validated here: the board engine
// rejects a bad dimension per connection.

package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrUsage is returned for a wrong argument count.
var ErrUsage = errors.New("usage: concentration-server <port> <board-dimension>")

// Args are the positional command line arguments.
type Args struct {
	Port      int
	Dimension int
}

// Addr is the TCP listen address for Port.
func (a Args) Addr() string { return ":" + strconv.Itoa(a.Port) }

// ParseArgs parses the positional arguments (without the program name).
func ParseArgs(args []string) (Args, error) {
	if len(args) != 2 {
		return Args{}, ErrUsage
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return Args{}, fmt.Errorf("port %q is not an integer: %w", args[0], err)
	}
	if port < 0 || port > 65535 {
		return Args{}, fmt.Errorf("port %d out of range", port)
	}
	dim, err := strconv.Atoi(args[1])
	if err != nil {
		return Args{}, fmt.Errorf("board dimension %q is not an integer: %w", args[1], err)
	}
	return Args{Port: port, Dimension: dim}, nil
}

// Env holds settings read from the environment.
type Env struct {
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool          `env:"LOG_PRETTY"`
	RevealDelay    time.Duration `env:"CONCENTRATION_REVEAL_DELAY" envDefault:"500ms"`
	Cheat          bool          `env:"CONCENTRATION_CHEAT"`
	HTTPAddr       string        `env:"CONCENTRATION_HTTP_ADDR"`
	AllowedOrigins []string      `env:"CONCENTRATION_ALLOWED_ORIGINS" envSeparator:","`
	DatabasePath   string        `env:"CONCENTRATION_DB"`
	HistoryLimit   int           `env:"CONCENTRATION_HISTORY_LIMIT" envDefault:"50"`
}

// LoadEnv loads an optional .env file then parses the environment.
// Variables already set in the process win over the file.
func LoadEnv(files ...string) (Env, error) {
	_ = godotenv.Load(files...)

	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RevealDelay < 0 {
		return Env{}, fmt.Errorf("CONCENTRATION_REVEAL_DELAY must not be negative, got %s", cfg.RevealDelay)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return cfg, nil
}
