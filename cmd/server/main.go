// Package main is the entry point for the querydesk server binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"querydesk/internal/api"
	"querydesk/internal/config"
	internaldb "querydesk/internal/db"
	"querydesk/internal/db/repository"
	"querydesk/internal/engine"
	"querydesk/internal/export"
	"querydesk/internal/ingest"
	"querydesk/internal/insights"
	"querydesk/internal/registry"
	"querydesk/internal/service"
	"querydesk/internal/sqlcheck"
	"querydesk/internal/translate"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "querydesk",
		Short:         "Natural language question answering over uploaded CSV data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data store.
	store, err := internaldb.OpenDuckDB(cfg.DataDBPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	// Metastore.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		return fmt.Errorf("open metastore: %w", err)
	}
	defer writeDB.Close() //nolint:errcheck
	defer readDB.Close()  //nolint:errcheck

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return fmt.Errorf("migrate metastore: %w", err)
	}

	// Catalog, restored from the metastore. Entries whose data table is
	// gone (e.g. an in-memory store after a restart) are dropped.
	tableRepo := repository.NewTableRepo(writeDB)
	historyRepo := repository.NewHistoryRepo(writeDB, readDB)

	loader := ingest.NewLoader(store)
	reg := registry.New(tableRepo, logger)
	if err := reg.Restore(ctx, loader.Exists); err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}

	// Pipeline.
	model := translate.NewOpenAIModel(cfg.Model)
	translator := translate.NewTranslator(model, cfg.Model.Timeout, cfg.Model.MaxRetries, logger)
	validator, err := sqlcheck.New(cfg.RowCap)
	if err != nil {
		return err
	}
	executor := engine.New(store, cfg.ExecTimeout, cfg.RowCap, logger)
	uploads := ingest.NewService(loader, reg, logger)
	queries := service.NewQueryService(reg, translator, validator, executor, historyRepo, logger)
	gen := insights.NewGenerator(model, cfg.InsightsLimit, cfg.Model.MaxRetries, cfg.InsightsRows, logger)
	exports := export.NewService(store)

	sweeper := service.NewRetentionSweeper(historyRepo, cfg.HistoryRetentionDays, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	handlers := api.NewHandlers(uploads, reg, queries, gen, exports, executor, cfg.MaxUploadBytes(), logger)
	router, stopLimiter := api.NewRouter(handlers, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)
	defer stopLimiter()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.ListenAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
