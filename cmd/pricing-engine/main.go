package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/happydiving/pricing-engine/internal/api"
	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/internal/invalidation"
	"github.com/happydiving/pricing-engine/internal/jobs"
	"github.com/happydiving/pricing-engine/internal/pricing"
	"github.com/happydiving/pricing-engine/internal/publisher"
	"github.com/happydiving/pricing-engine/internal/rate"
	internalsecrets "github.com/happydiving/pricing-engine/internal/secrets"
	"github.com/happydiving/pricing-engine/internal/store"
	"github.com/happydiving/pricing-engine/pkg/config"
	"github.com/happydiving/pricing-engine/pkg/logger"
	"github.com/happydiving/pricing-engine/pkg/secrets"
	"github.com/happydiving/pricing-engine/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)

	// --- Database DSN (optionally from AWS Secrets Manager) ---
	dsn := cfg.DatabaseURL
	if cfg.DBSecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		resolver := internalsecrets.NewDSNResolver(logg.Desugar(), awsProvider, secrets.NewCache[string](cfg.SecretCacheTTL))
		if dsn, err = resolver.Resolve(ctx, cfg.DBSecretName); err != nil {
			logg.Fatalw("failed to resolve database secret", "error", err)
		}
	}
	logg.Info("connection to DSN: ", utils.MaskDSN(dsn))

	// --- Postgres store ---
	pg, err := store.NewPG(ctx, dsn, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Redis status store (optional) ---
	var status *store.StatusStore
	if cfg.RedisAddr != "" {
		if status, err = store.NewStatus(ctx, cfg.RedisAddr, cfg.RedisDB, logg.Desugar()); err != nil {
			logg.Warnw("redis unavailable; warm-up reports stay local", "error", err)
			status = nil
		}
	}

	// --- NATS (optional) ---
	var nc *nats.Conn
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		if pub, err = publisher.New(nc, cfg.ServiceName, cfg.NATSJetStream); err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	}

	// --- Cache + pricing service ---
	appCache := cache.New(cache.DefaultConfig(), logg.Desugar())
	stopCleaner := make(chan struct{})
	go appCache.StartCleaner(cfg.CacheCleanupFreq, stopCleaner)

	siteType, err := pricing.ParseContentTypeRef(cfg.DiveSiteContentType)
	if err != nil {
		logg.Fatalw("invalid DIVE_SITE_CONTENT_TYPE", "error", err)
	}
	orgType, err := pricing.ParseContentTypeRef(cfg.OrganizationContentType)
	if err != nil {
		logg.Fatalw("invalid ORGANIZATION_CONTENT_TYPE", "error", err)
	}
	svc := pricing.NewService(pg, appCache, pricing.Config{
		DiveSiteContentType:     siteType,
		OrganizationContentType: orgType,
	}, logg.Desugar())

	// --- Cache warmer ---
	var warmer *jobs.CacheWarmer
	if cfg.CacheWarmEnabled {
		var statusWriter jobs.StatusWriter
		if status != nil {
			statusWriter = status
		}
		var events jobs.EventPublisher
		if pub != nil {
			events = pub
		}
		warmer = jobs.NewCacheWarmer(logg.Desugar(), pg, appCache, statusWriter, events, cfg.CacheWarmInterval)
		go warmer.Start(ctx)
	}

	// --- Invalidation listeners ---
	invHandler := invalidation.NewHandler(appCache, logg.Desugar())
	var subscriber *invalidation.Subscriber
	if nc != nil {
		subscriber = invalidation.NewSubscriber(nc, cfg.CacheInvalidationSubject, invHandler, logg.Desugar())
		if err := subscriber.Start(); err != nil {
			logg.Fatalw("failed to subscribe to invalidation subject", "error", err)
		}
	}
	var consumer *invalidation.Consumer
	if cfg.RabbitMQURL != "" {
		if consumer, err = invalidation.NewConsumer(cfg.RabbitMQURL, cfg.CacheInvalidationQueue, invHandler, logg.Desugar()); err != nil {
			logg.Fatalw("failed to connect to RabbitMQ", "error", err)
		}
		if err := consumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start invalidation consumer", "error", err)
		}
	}
	var feed *invalidation.WSListener
	if cfg.CMSEventsWSURL != "" {
		feed = invalidation.NewWSListener(cfg.CMSEventsWSURL, invHandler, logg.Desugar())
		if err := feed.Connect(ctx); err != nil {
			logg.Fatalw("failed to connect to CMS event feed", "error", err)
		}
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	deps := api.Deps{
		Store:   pg,
		NC:      nc,
		Pricing: api.NewPricingHandler(logg.Desugar(), svc),
	}
	if status != nil {
		deps.Redis = status
	}
	if cfg.RateLimitRPS > 0 {
		deps.Limiter = rate.NewManager(rate.Config{RequestsPerSecond: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
		go deps.Limiter.StartPruner(time.Minute, 10*time.Minute, stopCleaner)
	}
	var warmerAPI api.Warmer
	if warmer != nil {
		warmerAPI = warmer
	}
	var statusAPI api.StatusReader
	if status != nil {
		statusAPI = status
	}
	deps.Cache = api.NewCacheHandler(logg.Desugar(), svc, invHandler, warmerAPI, statusAPI)

	api.RegisterRoutes(app, deps)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow(fmt.Sprintf("[%s] running", cfg.ServiceName),
		"env", cfg.Env,
		"nats", cfg.NATSURL != "",
		"redis", status != nil,
		"rabbitmq", consumer != nil,
		"cms_feed", feed != nil,
		"warm_interval", cfg.CacheWarmInterval)

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	close(stopCleaner)
	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logg.Warnw("rabbitmq.close_failed", "error", err)
		}
	}
	if subscriber != nil {
		_ = subscriber.Close()
	}
	if feed != nil {
		_ = feed.Close()
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if status != nil {
		if err := status.Close(); err != nil {
			logg.Warnw("redis.close_failed", "error", err)
		}
	}
	if err := pg.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
