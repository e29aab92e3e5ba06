package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyhdev/site/internal/buildinfo"
	"github.com/cyhdev/site/internal/config"
	"github.com/cyhdev/site/internal/server"
)

func main() {
	// 1. Load and validate environment config
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 2. Route process logs into the dated file (tee'd to stderr)
	logw, err := server.OpenLogWriter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	log.Printf("[site] %s %s (%s, built %s) starting in %s",
		cfg.AppNameVersion, buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime, cfg.CurrentEnv)

	// 3. Assemble the backend core
	state, err := server.NewBuilder(cfg).WithLogWriter(logw).Build()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// 4. Warm every cache before serving
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := state.SyncAll(ctx); err != nil {
		cancel()
		log.Fatalf("fatal: initial sync: %v", err)
	}
	cancel()

	// 5. Start the maintenance loops
	state.StartJobs()
	log.Printf("[site] caches warm, jobs running")

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("[site] received signal %s, shutting down", sig)

	if err := state.Close(); err != nil {
		log.Printf("[site] shutdown error: %v", err)
	}
	log.Printf("[site] stopped")
}
