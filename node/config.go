// Package node wires the cipherword subsystems into a runnable service:
// configuration, event bus, homomorphic engine, oracle, ledger, game engine,
// history journal and the RPC read API.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/game"
)

// Config holds all configuration for a cipherword node.
type Config struct {
	// DataDir is the root directory for the history journal.
	DataDir string `json:"dataDir"`

	// Name is a human-readable node identifier (used in logs).
	Name string `json:"name"`

	// RPCHost/RPCPort locate the HTTP read API and websocket event feed.
	RPCHost string `json:"rpcHost"`
	RPCPort int    `json:"rpcPort"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `json:"logLevel"`

	// EventBuffer is the per-subscriber event channel depth.
	EventBuffer int `json:"eventBuffer"`

	// Owner and Relayer are the initial role principals, hex encoded.
	Owner   string `json:"owner"`
	Relayer string `json:"relayer"`

	// RelayerDelay is the mandatory two-step rotation delay in seconds.
	RelayerDelay uint64 `json:"relayerDelay"`

	// Game carries the gameplay constants.
	Game game.Params `json:"game"`
}

// DefaultConfig returns a Config with sensible defaults. Owner and Relayer
// have no defaults; deployments must set them.
func DefaultConfig() Config {
	return Config{
		DataDir:      "cipherword-data",
		Name:         "cipherword",
		RPCHost:      "127.0.0.1",
		RPCPort:      8547,
		LogLevel:     "info",
		EventBuffer:  256,
		RelayerDelay: 24 * 60 * 60,
		Game:         game.DefaultParams(),
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", c.RPCPort)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if types.HexToAddress(c.Owner).IsZero() {
		return errors.New("config: owner address must be set")
	}
	if types.HexToAddress(c.Relayer).IsZero() {
		return errors.New("config: relayer address must be set")
	}
	if c.Game.RoomCapacity < c.Game.MinPlayers {
		return errors.New("config: room capacity below minimum players")
	}
	if c.Game.MinWordLength < 1 || c.Game.MaxWordLength < c.Game.MinWordLength {
		return errors.New("config: invalid word length bounds")
	}
	if c.Game.MaxAttempts == 0 {
		return errors.New("config: max attempts must be at least 1")
	}
	if c.Game.RoundDuration == 0 {
		return errors.New("config: round duration must be positive")
	}
	if c.Game.PruneTarget == 0 || c.Game.QualifiedCap < c.Game.PruneTarget {
		return errors.New("config: qualified cap below prune target")
	}
	return nil
}

// OwnerAddress returns the parsed owner principal.
func (c *Config) OwnerAddress() types.Address { return types.HexToAddress(c.Owner) }

// RelayerAddress returns the parsed relayer principal.
func (c *Config) RelayerAddress() types.Address { return types.HexToAddress(c.Relayer) }

// RPCAddr returns the RPC listen address string.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("%s:%d", c.RPCHost, c.RPCPort)
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// LoadConfig reads a JSON config file over the defaults, then applies
// environment overrides (CIPHERWORD_DATADIR, CIPHERWORD_RPC_PORT,
// CIPHERWORD_LOG_LEVEL, CIPHERWORD_OWNER, CIPHERWORD_RELAYER). A missing
// file is not an error; env-only deployments are supported.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("config: read %q: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CIPHERWORD_DATADIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CIPHERWORD_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPCPort = port
		}
	}
	if v := os.Getenv("CIPHERWORD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CIPHERWORD_OWNER"); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv("CIPHERWORD_RELAYER"); v != "" {
		cfg.Relayer = v
	}
}
