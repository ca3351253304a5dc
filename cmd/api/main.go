package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/api/rest"
	"github.com/davidleathers/transaction-monitor/internal/api/websocket"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/cache"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/config"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/database"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/events"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/geoip"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/notify"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/telemetry"
	"github.com/davidleathers/transaction-monitor/internal/service/dashboard"
	"github.com/davidleathers/transaction-monitor/internal/service/ingestion"
	"github.com/davidleathers/transaction-monitor/internal/service/review"
	"github.com/davidleathers/transaction-monitor/internal/service/risk"
)

const serviceName = "transaction-monitor"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	provider, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	collector, err := newCollector(provider.MeterProvider.Meter(serviceName))
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	checkers := []rest.HealthChecker{rest.NewPingChecker("store", store.Ping)}

	// Dashboard stats cache and the Redis history index
	var statsCache cache.Cache
	var historyIndex *cache.HistoryIndex
	if redisClient != nil {
		statsCache = cache.NewSnapshotCache(redisClient, logger)
		historyIndex = cache.NewHistoryIndex(redisClient, 2*cfg.Scoring.StructuringWindow, logger)
		checkers = append(checkers, rest.NewPingChecker("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	var history risk.HistoryLookup = store.Transactions()
	if cfg.Scoring.HistorySource == "redis" {
		history = historyIndex
	}
	evaluator := risk.NewEvaluator(history,
		risk.WithWindow(cfg.Scoring.StructuringWindow),
		risk.WithLookupTimeout(cfg.Scoring.LookupTimeout),
		risk.WithLogger(logger),
		risk.WithRecorder(collector),
	)
	pipeline := risk.NewPipeline(evaluator, collector)

	// Event fanout: live dashboard feed plus optional Kafka
	hub := websocket.NewHub(logger)
	defer hub.Close()
	publishers := []events.Publisher{hub}
	if cfg.Kafka.Enabled {
		kafka := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka), cfg.Kafka, logger)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("kafka writer close failed", zap.Error(err))
			}
		}()
		publishers = append(publishers, kafka)
	}
	publisher := events.NewFanout(logger, publishers...)

	geo, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		return err
	}
	defer geo.Close()

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Telegram.Enabled {
		bot, err := notify.NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		notifier = notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID, logger)
	}

	dash := dashboard.NewService(store, statsCache, cfg.Redis.StatsTTL, logger)
	deps := ingestion.Dependencies{
		Store:     store.Transactions(),
		Pipeline:  pipeline,
		Publisher: publisher,
		Notifier:  notifier,
		Geo:       geo,
		Metrics:   collector,
		Listener:  dash,
		Logger:    logger,
		Workers:   cfg.Scoring.BatchWorkers,
	}
	if historyIndex != nil {
		deps.History = historyIndex
	}
	services := rest.Services{
		Ingestion: ingestion.NewService(deps),
		Review:    review.NewService(store.Transactions(), store.Alerts(), publisher, dash, logger),
		Dashboard: dash,
	}

	if cfg.Storage.SeedMetrics {
		if _, err := dash.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed system metrics: %w", err)
		}
	}

	routerCfg := rest.RouterConfig{
		Handler:     rest.NewHandler(services, cfg.Upload.MaxBytes, cfg.Upload.MaxErrorReport, logger),
		Guard:       rest.NewJWTGuard(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, logger),
		Health:      rest.NewHealthService(cfg.Version, 2*time.Second, checkers...),
		Observer:    collector,
		Metrics:     collector.Handler(),
		WebSocket:   hub,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	}
	if limit := cfg.Security.RateLimit; limit.RequestsPerSecond > 0 {
		switch limit.Backend {
		case "redis":
			routerCfg.RateLimit = rest.NewRedisRateLimiter(redisClient, limit.RequestsPerSecond, limit.BurstSize, logger).Middleware()
		default:
			routerCfg.RateLimit = rest.NewRateLimiter(limit.RequestsPerSecond, limit.BurstSize).Middleware()
		}
	}
	if cfg.Server.ValidateRequests {
		contract, err := rest.NewContractValidator()
		if err != nil {
			return err
		}
		routerCfg.Contract = contract
	}

	logger.Info("transaction monitor configured",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("history_source", cfg.Scoring.HistorySource),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Bool("telegram", cfg.Telegram.Enabled),
		zap.Bool("auth", routerCfg.Guard.Enabled()))

	server := rest.NewServer(cfg.Server, rest.NewRouter(routerCfg), logger)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore connects the configured transaction store, migrating Postgres
// first when enabled.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	if cfg.Storage.Driver != "postgres" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}
	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return repository.NewPostgresStore(pool, logger), nil
}
