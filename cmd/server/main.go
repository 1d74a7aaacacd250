// Package main is the standalone entry point for the cloudwright API
// server. It serves the same routes as `cloudwright serve` without the
// rest of the CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudwright/api"
	_ "cloudwright/clouds/aws"
	_ "cloudwright/clouds/azure"
	_ "cloudwright/clouds/gcp"
	"cloudwright/core/engine"
	"cloudwright/internal/config"
	"cloudwright/internal/logging"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgFile := flag.String("config", "", "config file path")
	addr := flag.String("addr", "", "listen address (default from config)")
	flag.Parse()

	cfg := config.Get()
	if *cfgFile != "" {
		loaded, err := config.Load(*cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		config.Set(cfg)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logging.Sync()

	eng, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = cfg.Server.Addr
	}
	server := api.NewServer(eng, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(listenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
