package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/db"
	"github.com/USA-RedDragon/crashula/internal/events"
	"github.com/USA-RedDragon/crashula/internal/metrics"
	"github.com/USA-RedDragon/crashula/internal/server"
	"github.com/USA-RedDragon/crashula/internal/sessions"
	"github.com/USA-RedDragon/crashula/internal/storage"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"golang.org/x/sync/errgroup"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "crashula",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd)
	cmd.AddCommand(newUserCommand(), newAppCommand())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Info("crashula", "version", cmd.Annotations["version"], "commit", cmd.Annotations["commit"])

	config, err := config.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	store, err := storage.NewStorage(cmd.Context(), config)
	if err != nil {
		return fmt.Errorf("failed to open uploads storage: %w", err)
	}
	defer store.Close()
	reports, err := store.Sub("reports")
	if err != nil {
		return fmt.Errorf("failed to open crash log storage: %w", err)
	}
	defer reports.Close()

	var redisClient redis.UniversalClient
	if config.Redis.Enabled {
		redisClient = connectRedis(config)
		defer redisClient.Close()
		if err := redisClient.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		slog.Info("Redis connection established")
	}

	var natsConn *nats.Conn
	var eventBus *events.EventBus
	if config.NATS.Enabled {
		natsConn, err = events.Connect(config.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		eventBus = events.NewEventBus(natsConn)
		slog.Info("NATS connection established")
	}

	db, err := db.MakeDB(config)
	if err != nil {
		return fmt.Errorf("failed to make database: %w", err)
	}
	slog.Info("Database connection established")

	slog.Info("Starting HTTP server")
	server := server.NewServer(config, server.Dependencies{
		DB:      db,
		Metrics: metrics.NewMetrics(prometheus.DefaultRegisterer),
		Events:  eventBus,
		Storage: reports,
		Revoker: sessions.NewRevoker(redisClient),
	})
	err = server.Start()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	stop := func(_ os.Signal) {
		slog.Info("Shutting down")

		errGrp := errgroup.Group{}

		errGrp.Go(func() error {
			return server.Stop()
		})

		err := errGrp.Wait()
		if err != nil {
			slog.Error("Shutdown error", "error", err.Error())
		}

		// requests are drained, flush what they queued
		eventBus.Close()
		if natsConn != nil {
			if err := natsConn.Drain(); err != nil {
				slog.Error("Failed to drain NATS connection", "error", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Failed to close database", "error", err)
			}
		}
		slog.Info("Shutdown complete")
	}

	if cmd.Annotations["version"] == "testing" {
		doneChannel := make(chan struct{})
		go func() {
			slog.Info("Sleeping for 5 seconds")
			time.Sleep(5 * time.Second)
			slog.Info("Sending SIGTERM")
			stop(syscall.SIGTERM)
			doneChannel <- struct{}{}
		}()
		<-doneChannel
	} else {
		shutdown.AddWithParam(stop)
		shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT)
	}

	return nil
}

func connectRedis(config *config.Config) redis.UniversalClient {
	if config.Redis.Sentinel.Enabled {
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       config.Redis.Sentinel.MasterName,
			SentinelAddrs:    config.Redis.Sentinel.Addresses,
			SentinelPassword: config.Redis.Sentinel.Password,
			Password:         config.Redis.Password,
			Username:         config.Redis.Username,
			DB:               config.Redis.Database,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     config.Redis.Address,
		Username: config.Redis.Username,
		Password: config.Redis.Password,
		DB:       config.Redis.Database,
	})
}
