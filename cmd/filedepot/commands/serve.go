package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/data"
	"github.com/filedepot/filedepot/handler"
	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/pipeline"
	"github.com/filedepot/filedepot/service"
	"github.com/filedepot/filedepot/storage"
	"github.com/filedepot/filedepot/version"

	_ "github.com/filedepot/filedepot/data/postgres"
	_ "github.com/filedepot/filedepot/data/sqlite"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var confPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and processing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(confPath)
		},
	}

	cmd.Flags().StringVarP(&confPath, "conf", "c", "", "config file path, e.g. ./config.yaml")
	return cmd
}

func runServe(confPath string) error {
	cfg, err := config.LoadConfig(confPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCleanup()
	log := logger.StdLogger()
	ctx := context.Background()

	// Log level follows config changes without a restart.
	config.Watch(func(updated *config.Config) {
		if updated.Logger != nil {
			logger.SetLevel(updated.Logger.Level)
			log.Info(ctx, "Configuration reloaded", "log_level", updated.Logger.Level)
		}
	})

	dataLayer, dataCleanup, err := data.New(ctx, cfg.Data)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer dataCleanup()

	led, err := ledger.NewSQLLedger(ctx, dataLayer)
	if err != nil {
		return fmt.Errorf("failed to initialize job ledger: %w", err)
	}

	store, err := storage.NewFileSystem(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	pipe := pipeline.New(cfg.Pipeline, led, store, log)
	pipeline.RegisterBuiltInHandlers(pipe)
	pipe.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pipe.Stop(stopCtx)
	}()

	intake := service.NewIntakeService(cfg.Storage, store, led, log)
	export := service.NewExportService(store, led, log)

	jobHandler := handler.NewJobHandler(intake, export, pipe.Metrics, log)
	healthHandler := handler.NewHealthHandler(dataLayer, cfg.Storage.Root)
	router := handler.NewRouter(cfg.RunMode, jobHandler, healthHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info(ctx, "Starting server", "addr", addr, "version", version.GetVersionInfo().Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "Server shutdown failed", "error", err)
	}

	log.Info(ctx, "Server exited")
	return nil
}
