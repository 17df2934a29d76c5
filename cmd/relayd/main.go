package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tailored-agentic-units/relay/credentials"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configFile = flag.String("config", "", "Path to relay config file (JSON, TOML or YAML)")
		email      = flag.String("email", "", "Store account credentials before starting (requires -password)")
		password   = flag.String("password", "", "Account password stored with -email")
		overHTTP   = flag.Bool("http", false, "Serve calls over the loopback HTTP transport (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if (*email == "") != (*password == "") {
		fmt.Fprintln(os.Stderr, "Usage: relayd [-config <file>] [-email <address> -password <secret>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := service.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *overHTTP {
		cfg.IPC.OverHTTP = true
	}

	logger, err := observability.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	svc, err := service.New(cfg, service.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	if *email != "" {
		creds := credentials.Credentials{Email: *email, Password: *password}
		if err := svc.Credentials().Save(creds); err != nil {
			log.Fatalf("Failed to store credentials: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	logger.Info(
		"relay running",
		slog.String("mode", svc.Client().Mode().String()),
		slog.Bool("logged_in", svc.Access().IsLoggedIn(ctx)),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
}
