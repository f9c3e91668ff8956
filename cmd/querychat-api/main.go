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

	"github.com/joho/godotenv"

	"github.com/querychat/querychat/internal/api"
	"github.com/querychat/querychat/internal/auth"
	chatpostgres "github.com/querychat/querychat/internal/chat/postgres"
	"github.com/querychat/querychat/internal/config"
	"github.com/querychat/querychat/internal/llm"
	"github.com/querychat/querychat/internal/observability"
	"github.com/querychat/querychat/internal/pipeline"
	"github.com/querychat/querychat/internal/quota"
	"github.com/querychat/querychat/internal/schemacache"
	s3store "github.com/querychat/querychat/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("querychat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	storeDB, err := chatpostgres.Open(context.Background(), chatpostgres.DBConfig{
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = storeDB.Close() }()

	store := chatpostgres.NewRepository(storeDB, cfg.Quota.DefaultQueriesAllowed)

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

	gateway, err := llm.NewOpenAIGateway(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model gateway", slog.Any("error", err))
		os.Exit(1)
	}

	var schemas schemacache.Cache = schemacache.Noop{}
	if cfg.Cache.Enabled {
		redisCache := schemacache.NewRedis(schemacache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.SchemaTTL,
		})
		defer func() { _ = redisCache.Close() }()
		schemas = redisCache
	}

	processor := pipeline.NewService(
		store,
		quota.NewLedger(store),
		gateway,
		&pipeline.StoreResolver{Store: store, Objects: objectStore},
		schemas,
		logger,
	)

	deps := api.Dependencies{
		Logger:    logger,
		Store:     store,
		Processor: processor,
		Objects:   objectStore,
		Readiness: api.CombineReadinessChecks(
			store.HealthCheck,
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validators := auth.Chain{}
		staticValidator, err := auth.NewStaticKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		validators = append(validators, staticValidator)
		if cfg.Auth.JWTSecret != "" {
			jwtValidator, err := auth.NewJWTValidator(cfg.Auth.JWTSecret)
			if err != nil {
				logger.Error("failed to initialize jwt validator", slog.Any("error", err))
				os.Exit(1)
			}
			validators = append(validators, jwtValidator)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validators)
	}

	handler := api.NewHandler(cfg, deps)
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
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
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
