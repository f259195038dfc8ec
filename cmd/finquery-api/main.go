package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/finquery/finquery/internal/api"
	"github.com/finquery/finquery/internal/auth"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/engine"
	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/llm"
	"github.com/finquery/finquery/internal/observability"
	"github.com/finquery/finquery/internal/params"
	"github.com/finquery/finquery/internal/refdata"
	"github.com/finquery/finquery/internal/service"
	"github.com/finquery/finquery/internal/sqlcheck"
	"github.com/finquery/finquery/internal/sqlgen"
	"github.com/finquery/finquery/internal/storage"
	s3store "github.com/finquery/finquery/internal/storage/s3"
	"github.com/finquery/finquery/internal/templates"
	templatepostgres "github.com/finquery/finquery/internal/templates/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("finquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	var objectStore storage.ObjectStore
	if cfg.ObjectStore.Endpoint != "" {
		store, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = store
	}

	var templateSource templates.Source
	var readiness []api.ReadinessCheck
	if cfg.Templates.DSN != "" {
		templateDB, err := templatepostgres.Open(ctx, templatepostgres.DBConfig{
			DSN:             cfg.Templates.DSN,
			MaxOpenConns:    cfg.Templates.MaxOpenConns,
			MaxIdleConns:    cfg.Templates.MaxIdleConns,
			ConnMaxIdleTime: cfg.Templates.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Templates.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open template store", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = templateDB.Close() }()
		source := templatepostgres.NewSource(templateDB)
		templateSource = source
		readiness = append(readiness, source.HealthCheck)
	}

	catalog, err := templates.Load(ctx, templateSource, logger)
	if err != nil {
		logger.Error("failed to load template catalog", slog.Any("error", err))
		os.Exit(1)
	}

	companies, err := loadCompanies(ctx, cfg, objectStore)
	if err != nil {
		logger.Warn("company reference data unavailable, canonicalization disabled", slog.Any("error", err))
	}
	canonicalizer := refdata.NewCanonicalizer(companies)
	resolver := params.NewResolver(canonicalizer, logger)

	var llmClient llm.Client
	if cfg.LLM.Enabled {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			RetryDelay:  cfg.LLM.RetryDelay,
		})
		if err != nil {
			logger.Error("failed to initialize llm client", slog.Any("error", err))
			os.Exit(1)
		}
		llmClient = client
	} else {
		logger.Warn("llm disabled, operating in deterministic mode")
	}

	validator := sqlcheck.New(llmClient, logger)
	generator, err := sqlgen.New(catalog, resolver, validator, llmClient, sqlgen.Config{
		MinConfidence:     cfg.Pipeline.MinConfidence,
		FastPathThreshold: cfg.Pipeline.FastPathThreshold,
		LLMThreshold:      cfg.Pipeline.LLMThreshold,
	}, logger)
	if err != nil {
		logger.Error("failed to build sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	queryEngine, err := engine.New(ctx, engine.Config{
		LocalDir: cfg.Data.LocalDir,
		Files: map[string]string{
			"companies": cfg.Data.CompaniesFile,
			"sub":       cfg.Data.SubFile,
			"num":       cfg.Data.NumFile,
			"tag":       cfg.Data.TagFile,
			"pre":       cfg.Data.PreFile,
		},
		MemoryLimit: cfg.Data.MemoryLimit,
		Threads:     cfg.Data.Threads,
		RowLimit:    cfg.Pipeline.RowLimit,
	}, objectStore, logger)
	if err != nil {
		logger.Error("failed to initialize query engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queryEngine.Close() }()
	readiness = append(readiness, api.CheckEngine(queryEngine))

	pipeline, err := service.New(entities.NewExtractor(logger), generator, validator, queryEngine, logger)
	if err != nil {
		logger.Error("failed to build query service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Pipeline:          pipeline,
		Catalog:           catalog,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		keyValidator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, keyValidator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func loadCompanies(ctx context.Context, cfg config.Config, store storage.ObjectStore) ([]refdata.Company, error) {
	localPath := filepath.Join(cfg.Data.LocalDir, cfg.Data.CompaniesFile)
	if _, err := os.Stat(localPath); err == nil {
		return refdata.LoadLocal(localPath)
	}
	if store != nil {
		return refdata.LoadFromStore(ctx, store, cfg.Data.CompaniesFile)
	}
	return nil, os.ErrNotExist
}
