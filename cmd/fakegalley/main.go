// Package main serves the in-memory galley double for local runs of the checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galleyprobe/config"
	"galleyprobe/internal/fakegalley"
	"galleyprobe/internal/logging"
	"galleyprobe/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	addrFlag := flag.String("addr", "", "listen address (default :$PORT)")
	domainFlag := flag.String("domain", "", "domain reported in qualified ids")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Format, cfg.Logging.Level, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid logging configuration:", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	srv := fakegalley.New(&fakegalley.Config{
		Domain:        *domainFlag,
		VersionHeader: cfg.Harness.VersionHeader,
		BodySizeLimit: cfg.Server.BodySizeLimit,
		Logger:        logger,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down fake galley...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := *addrFlag
	if addr == "" {
		addr = ":" + cfg.Server.Port
	}
	slog.Info("starting fake galley", "address", addr, "version", version.Version)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
