package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querypilot/querypilot/internal/api"
	"github.com/querypilot/querypilot/internal/archive"
	"github.com/querypilot/querypilot/internal/assistant"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/schema"
	s3store "github.com/querypilot/querypilot/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("querypilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	completer, err := nl2sql.NewCompleter(nl2sql.ProviderConfig{
		Provider:    cfg.AI.Provider,
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("no model api key configured; translation requests will fail", slog.String("provider", cfg.AI.Provider))
	}

	readiness := []api.ReadinessCheck{api.CheckAIKey(cfg)}
	pipeline := assistant.Service{
		Opener: database.DriverOpener{
			PingTimeout:     cfg.Database.PingTimeout,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		},
		Translator:     nl2sql.NewTranslator(completer),
		Executor:       query.Executor{MaxRows: cfg.Query.MaxRows},
		Store:          schema.NewStore(cfg.Session.Capacity),
		DefaultDialect: cfg.Database.DefaultDialect,
		Logger:         logger,
	}

	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		snapshots, err := archive.New(objectStore, archive.Options{KeepVersions: cfg.Archive.KeepVersions})
		if err != nil {
			logger.Error("failed to initialize snapshot archive", slog.Any("error", err))
			os.Exit(1)
		}
		pipeline.Archive = snapshots
		readiness = append(readiness, snapshots.Ping)
		logger.Info("snapshot archive enabled",
			slog.String("bucket", cfg.ObjectStore.Bucket),
			slog.Int("keep_versions", cfg.Archive.KeepVersions),
		)
	}

	svc, err := assistant.New(pipeline)
	if err != nil {
		logger.Error("failed to initialize query pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Pipeline:          svc,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("provider", cfg.AI.Provider),
			slog.String("default_dialect", string(svc.DefaultDialect)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
