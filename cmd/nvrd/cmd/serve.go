package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/nvrengine/engine/internal/api"
	"github.com/nvrengine/engine/internal/auth"
	"github.com/nvrengine/engine/internal/config"
	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/detection"
	"github.com/nvrengine/engine/internal/pathutil"
	"github.com/nvrengine/engine/internal/retention"
	"github.com/nvrengine/engine/internal/shutdown"
	"github.com/nvrengine/engine/internal/slogutil"
	"github.com/nvrengine/engine/internal/stream"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recording lifecycle engine",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger, leveler := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting recording lifecycle engine",
		"web_port", cfg.WebPort, "storage_path", cfg.StoragePath, "retention_days", cfg.RetentionDays)

	configManager := config.NewManager(cfg, configFile)
	configManager.OnConfigChange(func(old, newCfg *config.Config) {
		if old != nil && old.Log.Level == newCfg.Log.Level {
			return
		}
		newLevel := slogutil.ParseLevel(newCfg.Log.Level)
		leveler.SetLevel(newLevel)
		logger.Info("log level updated", "level", newLevel)
	})

	if err := pathutil.CheckDirectoryWritable(cfg.StoragePath); err != nil {
		logger.Error("storage path unusable", "path", cfg.StoragePath, "err", err)
		return err
	}
	if err := pathutil.CheckFileDirectoryWritable(cfg.Database.Path, "database"); err != nil {
		logger.Error("database path unusable", "path", cfg.Database.Path, "err", err)
		return err
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		logger.Error("failed to open catalog", "err", err)
		return err
	}
	defer db.Close()

	coordinator := shutdown.Global()

	streams := stream.New(len(cfg.Streams))
	for _, s := range cfg.Streams {
		if _, err := streams.Create(stream.Config{Name: s.Name}); err != nil {
			logger.Warn("failed to register configured stream", "stream", s.Name, "err", err)
		}
		if _, err := db.AddStreamConfig(context.Background(), database.StreamConfig{
			Name:                    s.Name,
			SourceURL:               s.SourceURL,
			StreamingEnabled:        s.StreamingEnabled,
			DetectionBasedRecording: s.DetectionBasedRecording,
		}); err != nil {
			logger.Warn("failed to persist configured stream", "stream", s.Name, "err", err)
		}
	}

	gate := detection.New(db)

	retentionEngine := retention.New(db, cfg.StoragePath, retention.StatfsSpacer)
	retentionWorker := retention.NewWorker(retentionEngine, time.Hour, coordinator, 10)
	retentionWorker.Start()

	if cfg.RetentionSchedule != "" {
		cronWorker, err := retention.NewCronWorker(retentionEngine, cfg.RetentionSchedule, coordinator, 9)
		if err != nil {
			logger.Warn("invalid retention_schedule, skipping scheduled scan", "schedule", cfg.RetentionSchedule, "err", err)
		} else {
			cronWorker.Start()
		}
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authCfg := auth.DefaultConfig()
		authCfg.JWTSecret = cfg.Auth.JWTSecret
		authCfg.DefaultUsername = cfg.Auth.Username
		authCfg.TokenDuration = time.Duration(cfg.Auth.TimeoutHours) * time.Hour
		authService, err = auth.NewService(context.Background(), authCfg, db)
		if err != nil {
			logger.Warn("failed to initialize auth service", "err", err)
		}
	}

	apiServer := api.NewServer(api.DefaultConfig(), db, configManager, retentionEngine, streams, gate, authService, coordinator)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	apiServer.SetupRoutes(app)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.WebPort)
		if err := app.Listen(":" + strconv.Itoa(cfg.WebPort)); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server stopped unexpectedly", "err", err)
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	coordinator.InitiateShutdown()
	if !coordinator.WaitForAllStopped(30 * time.Second) {
		logger.Warn("shutdown grace period expired with components still running")
	}
	_ = app.ShutdownWithTimeout(10 * time.Second)
	streams.Shutdown(stream.DefaultDrainTimeout)

	logger.Info("shutdown complete")
	return nil
}
