package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/keyfleet/internal/config"
	"git.home.luguber.info/inful/keyfleet/internal/coordinator"
	"git.home.luguber.info/inful/keyfleet/internal/events"
	"git.home.luguber.info/inful/keyfleet/internal/logfields"
	"git.home.luguber.info/inful/keyfleet/internal/metrics"
	"git.home.luguber.info/inful/keyfleet/internal/server"
	"git.home.luguber.info/inful/keyfleet/internal/transport"
)

var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"keyfleet.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
	} `cmd:"" help:"Run the fleet coordinator until interrupted"`

	Init struct {
		Force bool `help:"Overwrite existing configuration files"`
	} `cmd:"" help:"Initialize example configuration and membership files"`

	Version struct {
	} `cmd:"" help:"Print version and exit"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "run":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runCoordinator(cfg); err != nil {
			slog.Error("Coordinator failed", "error", err)
			os.Exit(1)
		}
	case "init":
		instancesPath := "instances.yaml"
		if err := config.Init(CLI.Config, instancesPath, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration initialized",
			"config", CLI.Config,
			"instances", instancesPath)
	case "version":
		fmt.Println(version)
	}
}

func runCoordinator(cfg *config.Config) error {
	descriptors, err := config.LoadInstances(cfg.Fleet.InstancesFile)
	if err != nil {
		return fmt.Errorf("failed to load fleet membership: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := coordinator.Options{Transport: transport.NewCloudShell()}

	registry := prometheus.NewRegistry()
	if cfg.Server.Enabled {
		opts.Metrics = metrics.NewPrometheusRecorder(registry)
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		opts.Publisher = publisher
	}

	c, err := coordinator.New(cfg, descriptors, opts)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	var admin *server.Server
	if cfg.Server.Enabled {
		admin = server.New(cfg.Server.Addr, c.Fleet(), registry)
		go func() {
			if err := admin.Start(); err != nil {
				slog.Error("Admin server failed", logfields.Error(err))
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Start(ctx)
	}()

	slog.Info("Coordinator started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("coordinator error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping coordinator...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := c.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop coordinator: %w", err)
	}
	if admin != nil {
		if err := admin.Shutdown(stopCtx); err != nil {
			slog.Warn("Admin server shutdown failed", logfields.Error(err))
		}
	}

	slog.Info("Coordinator stopped successfully")
	return nil
}
