package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/api/rest"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/cache"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/config"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/database"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/events"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-risk-engine/internal/metrics"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

const meterName = "github.com/davidleathers/fraud-risk-engine"

func main() {
	configPath := flag.String("config", config.DefaultConfigFile, "Path to configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("application failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting fraud risk engine",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port))

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	cacheManager, err := cache.NewManager(&cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cacheManager.Close(); err != nil {
			logger.Warn("cache close failed", zap.Error(err))
		}
	}()

	initial, err := rulesFromConfig(cfg.Fraud.Rules)
	if err != nil {
		return fmt.Errorf("invalid fraud rule overrides: %w", err)
	}
	var ruleRepo fraud.RuleRepository
	if cfg.Fraud.PersistRules {
		ruleRepo = cacheManager.Rules
	}
	rules, err := fraud.NewRuleManager(initial, ruleRepo)
	if err != nil {
		return fmt.Errorf("failed to create rule manager: %w", err)
	}
	if loaded, err := rules.Load(ctx); err != nil {
		logger.Warn("persisted fraud rules unavailable, using configured rules", zap.Error(err))
	} else if loaded {
		logger.Info("loaded persisted fraud rules")
	}

	recorder, err := metrics.NewRegistry(meterName)
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}

	location, err := cfg.Fraud.Location()
	if err != nil {
		return err
	}

	opts := []fraud.Option{fraud.WithRecorder(recorder)}
	health := rest.NewHealthService(cfg.Version, 2*time.Second)
	health.RegisterChecker(rest.HealthCheckFunc{CheckName: "postgres", Fn: pool.Ping}, true)
	health.RegisterChecker(rest.HealthCheckFunc{CheckName: "redis", Fn: cacheManager.HealthCheck}, false)

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaAlertPublisher(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka publisher close failed", zap.Error(err))
			}
		}()
		opts = append(opts, fraud.WithAlertPublisher(publisher))

		brokers := cfg.Kafka.Brokers
		health.RegisterChecker(rest.HealthCheckFunc{CheckName: "kafka", Fn: func(ctx context.Context) error {
			return events.PingBrokers(ctx, brokers)
		}}, false)
	} else {
		logger.Info("kafka brokers not configured, alerts are stored only")
	}

	store := cacheManager.Blacklist(
		database.NewMetricsStore(pool),
		cfg.Fraud.BlacklistCacheTTL,
		cfg.Fraud.BlacklistNegativeTTL,
	)

	engine, err := fraud.NewEngine(
		store,
		database.NewAssessmentRepository(pool),
		rules,
		fraud.Config{CheckTimeout: cfg.Fraud.CheckTimeout, TimeZone: location},
		logger,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create fraud engine: %w", err)
	}

	server := rest.NewServer(cfg, rest.Dependencies{
		Service:     engine,
		Auth:        rest.NewAuthMiddleware(rest.AuthConfig{JWTSecret: []byte(cfg.Security.JWTSecret), Issuer: cfg.Telemetry.ServiceName}),
		Health:      health,
		RateLimiter: cacheManager.RateLimiter,
		Registry:    newPromRegistry(cfg.Version),
		Logger:      logger,
	})

	return server.Start(ctx)
}
