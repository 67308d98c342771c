// Command cipherword runs a confidential word-game node: encrypted ledger,
// room registry, round engine, decryption oracle and the read-only RPC API.
//
// Usage:
//
//	cipherword [flags]
//
// Flags:
//
//	--config     JSON config file path
//	--datadir    Data directory path (default: cipherword-data)
//	--rpc.host   RPC listen host (default: 127.0.0.1)
//	--rpc.port   RPC listen port (default: 8547)
//	--owner      Owner principal, hex address
//	--relayer    Relayer principal, hex address
//	--verbosity  Log level: debug, info, warn, error (default: info)
//	--version    Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cipherword/cipherword/log"
	"github.com/cipherword/cipherword/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	logger := log.New(log.ParseLevel(cfg.LogLevel))
	log.SetDefault(logger)

	logger.Info("cipherword starting",
		"version", version,
		"datadir", cfg.DataDir,
		"rpc", cfg.RPCAddr(),
		"owner", cfg.Owner,
		"relayer", cfg.Relayer,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	n, err := node.New(cfg)
	if err != nil {
		logger.Error("failed to create node", "err", err)
		return 1
	}
	if err := n.Start(); err != nil {
		logger.Error("failed to start node", "err", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if err := n.Stop(); err != nil {
		logger.Error("error during shutdown", "err", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// parseFlags resolves the effective config from the config file, environment
// and CLI flags, in increasing priority. Returns the config, whether the
// caller should exit immediately, and the exit code.
func parseFlags(args []string) (node.Config, bool, int) {
	fs := flag.NewFlagSet("cipherword", flag.ContinueOnError)

	configPath := fs.String("config", "", "JSON config file path")
	datadir := fs.String("datadir", "", "data directory path")
	rpcHost := fs.String("rpc.host", "", "RPC listen host")
	rpcPort := fs.Int("rpc.port", 0, "RPC listen port")
	owner := fs.String("owner", "", "owner principal, hex address")
	relayer := fs.String("relayer", "", "relayer principal, hex address")
	verbosity := fs.String("verbosity", "", "log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return node.Config{}, true, 2
	}
	if *showVersion {
		fmt.Printf("cipherword %s (commit %s)\n", version, commit)
		return node.Config{}, true, 0
	}

	cfg, err := node.LoadConfig(*configPath)
	if err != nil {
		// Flags may still complete the config; validate again below.
		cfg = applyFlagOverrides(cfg, *datadir, *rpcHost, *rpcPort, *owner, *relayer, *verbosity)
		if verr := cfg.Validate(); verr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cfg, true, 1
		}
		return cfg, false, 0
	}

	cfg = applyFlagOverrides(cfg, *datadir, *rpcHost, *rpcPort, *owner, *relayer, *verbosity)
	return cfg, false, 0
}

func applyFlagOverrides(cfg node.Config, datadir, rpcHost string, rpcPort int, owner, relayer, verbosity string) node.Config {
	if datadir != "" {
		cfg.DataDir = datadir
	}
	if rpcHost != "" {
		cfg.RPCHost = rpcHost
	}
	if rpcPort != 0 {
		cfg.RPCPort = rpcPort
	}
	if owner != "" {
		cfg.Owner = owner
	}
	if relayer != "" {
		cfg.Relayer = relayer
	}
	if verbosity != "" {
		cfg.LogLevel = verbosity
	}
	return cfg
}
