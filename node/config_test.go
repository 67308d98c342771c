package node

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	testOwner   = "0x00000000000000000000000000000000000000a0"
	testRelayer = "0x00000000000000000000000000000000000000b0"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Owner = testOwner
	cfg.Relayer = testRelayer
	return cfg
}

func TestDefaultConfigNeedsPrincipals(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("defaults without owner/relayer must not validate")
	}
	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"bad port", func(c *Config) { c.RPCPort = 99999 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"capacity below min players", func(c *Config) { c.Game.RoomCapacity = 1 }},
		{"inverted word lengths", func(c *Config) { c.Game.MaxWordLength = 2 }},
		{"zero attempts", func(c *Config) { c.Game.MaxAttempts = 0 }},
		{"zero duration", func(c *Config) { c.Game.RoundDuration = 0 }},
		{"cap below prune target", func(c *Config) { c.Game.QualifiedCap = 2 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: want validation error", tc.name)
		}
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"dataDir": "/data/words",
		"rpcPort": 9999,
		"logLevel": "debug",
		"owner": "` + testOwner + `",
		"relayer": "` + testRelayer + `",
		"game": {"EntryFee": 25}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != "/data/words" {
		t.Fatalf("DataDir = %q, want /data/words", cfg.DataDir)
	}
	if cfg.RPCPort != 9999 {
		t.Fatalf("RPCPort = %d, want 9999", cfg.RPCPort)
	}
	if cfg.Game.EntryFee != 25 {
		t.Fatalf("EntryFee = %d, want 25", cfg.Game.EntryFee)
	}
	// Untouched fields keep their defaults.
	if cfg.Game.RoomCapacity != DefaultConfig().Game.RoomCapacity {
		t.Fatalf("RoomCapacity = %d, want default", cfg.Game.RoomCapacity)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CIPHERWORD_OWNER", testOwner)
	t.Setenv("CIPHERWORD_RELAYER", testRelayer)
	t.Setenv("CIPHERWORD_RPC_PORT", "7654")
	t.Setenv("CIPHERWORD_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RPCPort != 7654 {
		t.Fatalf("RPCPort = %d, want 7654", cfg.RPCPort)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.OwnerAddress().IsZero() || cfg.RelayerAddress().IsZero() {
		t.Fatal("principals must be populated from the environment")
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{unclosed"), 0o600)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("want error for invalid JSON")
	}
}

func TestResolvePath(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "/data/words"

	if got := cfg.ResolvePath("history"); got != filepath.Join("/data/words", "history") {
		t.Fatalf("ResolvePath relative = %q", got)
	}
	if got := cfg.ResolvePath("/abs/path"); got != "/abs/path" {
		t.Fatalf("ResolvePath absolute = %q", got)
	}
}
