// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/config"
	"github.com/bureau-foundation/revenant/lib/process"
	"github.com/bureau-foundation/revenant/lib/version"
	"github.com/bureau-foundation/revenant/vigil"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		identity    string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to revenant.yaml (defaults to REVENANT_CONFIG)")
	flag.StringVar(&identity, "identity", "", "process identity this daemon runs as (overrides the config file)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("revenant-daemon %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if identity != "" {
		cfg.Identity = identity
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Identity == "" {
		return fmt.Errorf("--identity is required (or set identity in the config file)")
	}
	pairs := cfg.PairsFor(cfg.Identity)
	if len(pairs) == 0 {
		return fmt.Errorf("no configured pair names identity %q", cfg.Identity)
	}
	if err := cfg.EnsureRoot(); err != nil {
		return err
	}

	logger := process.NewLogger().With("identity", cfg.Identity)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Attach once for the whole process. An unavailable transport is
	// not fatal: detection still runs, revivals are inert, and the
	// verdict is visible on the status socket.
	transport := binder.NewTransport(cfg.Device)
	if transport.Attach() {
		logger.Info("transaction transport attached", "device", cfg.Device)
	} else {
		logger.Warn("transaction transport unavailable, revivals will be inert",
			"device", cfg.Device, "error", transport.Err())
	}

	set, err := vigil.StartSet(cfg, cfg.Identity, transport, logger)
	if err != nil {
		return err
	}
	logger.Info("watchdog set started",
		"pairs", len(pairs),
		"helper", set.Spawner.HelperPath(),
		"helper_digest", set.Spawner.HelperDigest())

	server := &statusServer{
		identity:  cfg.Identity,
		startedAt: time.Now(),
		transport: transport,
		set:       set,
		logger:    logger,
	}
	socketPath := cfg.StatusSocketPath(cfg.Identity)
	listener, err := listenSocket(socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)
	defer listener.Close()
	logger.Info("status socket listening", "socket", socketPath)

	go server.serve(ctx, listener)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// listenSocket creates the status socket, replacing any stale socket
// file left by a previous run.
func listenSocket(socketPath string) (net.Listener, error) {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating socket directory %s: %w", socketDir, err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return listener, nil
}
