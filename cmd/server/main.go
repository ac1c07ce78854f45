// Package main provides the entry point for the proxy router platform server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxy-router-platform/internal/api/routes"
	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/crypto"
	"proxy-router-platform/internal/database"
	"proxy-router-platform/internal/metrics"
	"proxy-router-platform/internal/repository"
	"proxy-router-platform/internal/service/failover"
	"proxy-router-platform/internal/service/health"
	"proxy-router-platform/internal/service/provider"
	"proxy-router-platform/internal/service/router"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// resultCacheCapacity bounds the health result cache.
const resultCacheCapacity = 1024

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(&cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		return err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return err
	}

	accountRepo := repository.NewAccountRepository(db.DB)
	ruleRepo := repository.NewRoutingRuleRepository(db.DB)
	modelConfigRepo := repository.NewModelConfigRepository(db.DB)
	eventRepo := repository.NewFailoverEventRepository(db.DB)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	clk := clock.New()

	resultCache, err := health.NewResultCache(resultCacheCapacity, cfg.HealthCheck.Interval)
	if err != nil {
		return err
	}
	defer resultCache.Close()

	assessor := health.NewAssessor(accountRepo, resultCache, clk, cfg.HealthCheck, m, logger)
	notifier := health.NewNotifier(cfg.Alert, logger)

	providerRegistry := provider.NewRegistry(logger)

	routerService := router.NewRouter(
		accountRepo,
		ruleRepo,
		modelConfigRepo,
		assessor,
		resultCache,
		providerRegistry,
		cfg.Scoring,
		clk,
		m,
		logger,
	)

	controller := failover.NewController(
		accountRepo,
		eventRepo,
		assessor,
		routerService,
		clk,
		cfg.Failover,
		notifier.Notify,
		m,
		logger,
	)

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	routes.Setup(engine, cfg, &routes.Services{
		Router:       routerService,
		Assessor:     assessor,
		Failover:     controller,
		Accounts:     accountRepo,
		Rules:        ruleRepo,
		ModelConfigs: modelConfigRepo,
		Events:       eventRepo,
		Encryptor:    encryptor,
		Registry:     registry,
	}, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	loopCtx, cancelLoops := context.WithCancel(context.Background())
	defer cancelLoops()

	if cfg.HealthCheck.Enabled {
		go assessor.Start(loopCtx)
	}
	if cfg.Failover.Enabled {
		go controller.Start(loopCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	assessor.Stop()
	controller.Stop()
	cancelLoops()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	if cfg.Format == "console" {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
