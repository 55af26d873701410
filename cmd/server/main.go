package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/feliven/qrpulse/config"
	appmodel "github.com/feliven/qrpulse/internal/app/model"
	apprepository "github.com/feliven/qrpulse/internal/app/repository"
	appserver "github.com/feliven/qrpulse/internal/app/server"
	appservice "github.com/feliven/qrpulse/internal/app/service"
	"github.com/feliven/qrpulse/internal/enrich"
	httpUtil "github.com/feliven/qrpulse/internal/http/util"
	"github.com/feliven/qrpulse/internal/infra/logger"
	infraNATS "github.com/feliven/qrpulse/internal/infra/nats"
	infraPostgres "github.com/feliven/qrpulse/internal/infra/postgres"
	infraPrometheus "github.com/feliven/qrpulse/internal/infra/prometheus"
	infraRedis "github.com/feliven/qrpulse/internal/infra/redis"
	"go.uber.org/zap"
)

const defaultTokenTTL = 24 * time.Hour

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("base_url", cfg.Server.BaseURL),
	)

	if cfg.Auth.TokenSecret == "" {
		log.Fatal("TOKEN_SECRET must be set")
	}
	tokenTTL := parseDuration(log, "auth token ttl", cfg.Auth.TokenTTL, defaultTokenTTL)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.User{}, &appmodel.QRCode{}, &appmodel.ScanEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	userRepo := apprepository.NewUserRepository(gormDB)
	qrRepo := apprepository.NewQRCodeRepository(gormDB)
	scanRepo := apprepository.NewScanEventRepository(gormDB)
	analyticsRepo := apprepository.NewAnalyticsRepository(pool)

	codeFilter := appservice.NewCodeFilter()
	codes, err := qrRepo.ListCodes(ctx)
	if err != nil {
		log.Fatal("Failed to load codes for the bloom filter", zap.Error(err))
	}
	codeFilter.Seed(codes)
	log.Info("Seeded code filter", zap.Int("codes", len(codes)))

	geoResolver := enrich.NewGeoResolver(log, redisClient, enrich.GeoResolverConfig{
		Endpoint: cfg.Geo.Endpoint,
		Timeout:  parseDuration(log, "geo lookup timeout", cfg.Geo.Timeout, 0),
		CacheTTL: parseDuration(log, "geo cache ttl", cfg.Geo.CacheTTL, 0),
	})

	consumer := appservice.NewScanConsumer(js, log, scanRepo, geoResolver)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start scan consumer", zap.Error(err))
	}
	log.Info("Scan consumer started")

	server := appserver.New(appserver.Dependencies{
		Logger:     log,
		Redis:      redisClient,
		QRCodes:    qrRepo,
		Auth:       appservice.NewAuthService(userRepo),
		QRs:        appservice.NewQRService(qrRepo, scanRepo),
		Analytics:  appservice.NewAnalyticsService(log, qrRepo, analyticsRepo),
		Publisher:  appservice.NewScanPublisher(js),
		CodeFilter: codeFilter,
		Tokens:     httpUtil.NewTokenSigner([]byte(cfg.Auth.TokenSecret), tokenTTL),
		BaseURL:    cfg.Server.BaseURL,
	})

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := server.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

// parseDuration parses a configured duration, falling back when unset or
// malformed. Zero fallbacks defer to the component's own default.
func parseDuration(log *zap.Logger, name, raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn("Invalid duration in config, using default",
			zap.String("setting", name), zap.String("value", raw))
		return fallback
	}
	return d
}
