package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"query-gateway/gateway"
	"query-gateway/gateway/application"
	"query-gateway/gateway/domain"
	"query-gateway/gateway/infra"
	"query-gateway/middleware/ratelimit"
	rlapp "query-gateway/middleware/ratelimit/application"
	rldomain "query-gateway/middleware/ratelimit/domain"
	rlinfra "query-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := readConfig(newViper())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func newLogger(cfg config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.logFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// cliente Redis criado uma vez e injetado em cache, limiter e estatísticas
	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr(),
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.redisAddr(), err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	svc, err := newQueryService(ctx, cfg, rdb, metrics, logger)
	if err != nil {
		return err
	}

	rateOpts, debugStats, err := newRateLimitOptions(ctx, cfg, rdb, reg, logger)
	if err != nil {
		return err
	}

	var health func(context.Context) error
	if rdb != nil {
		health = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	h := gateway.NewHandler(gateway.Options{
		Service:     svc,
		RateEnabled: cfg.rateEnabled,
		RateLimit:   rateOpts,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		Health:     health,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		DebugStats: debugStats,
		Logger:     logger,
	})

	// WriteTimeout acima do timeout do backend para o 500 genérico sempre chegar ao cliente
	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.backendTimeout + 20*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("query_service", cfg.queryServiceURL),
		zap.String("ingestion_service", cfg.ingestionServiceURL),
		zap.Duration("backend_timeout", cfg.backendTimeout),
		zap.Bool("backend_breaker", cfg.backendBreakerEnabled),
	)
	logger.Info("cache",
		zap.String("backend", cfg.cacheBackend),
		zap.Duration("ttl", cfg.cacheTTL),
		zap.Bool("singleflight", cfg.cacheSingleFlight),
	)
	logger.Info("rate limit",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Int("limit", cfg.rateLimit),
		zap.Duration("window", cfg.rateWindow),
		zap.String("store", cfg.rateStore),
		zap.String("key_header", cfg.rateKeyHeader),
		zap.Bool("trust_xff", cfg.trustXFF),
		zap.Float64("local_rps", cfg.localRateRPS),
		zap.String("stats", cfg.rateStatsBackend),
	)
	logger.Info("concurrency", zap.Int("max", cfg.concurrencyMax), zap.Duration("acquire_timeout", cfg.concurrencyTimeout))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newQueryService(ctx context.Context, cfg config, rdb *redis.Client, metrics *infra.Metrics, logger *zap.Logger) (application.Service, error) {
	var store domain.CacheStore
	switch cfg.cacheBackend {
	case "memory":
		mem, err := infra.NewMemoryCacheStore(cfg.cacheMemoryMaxEntries, cfg.cacheTTL)
		if err != nil {
			return application.Service{}, err
		}
		store = mem
	default:
		store = infra.NewRedisCacheStore(rdb)
	}

	resolver := &dnscache.Resolver{}
	go refreshDNS(ctx, resolver)

	backendOpts := []infra.BackendOption{
		infra.WithTimeout(cfg.backendTimeout),
		infra.WithResolver(resolver),
		infra.WithBackendMetrics(metrics),
		infra.WithBackendLogger(logger),
	}
	if cfg.backendBreakerEnabled {
		backendOpts = append(backendOpts, infra.WithBreaker(cfg.backendBreakerFailures, cfg.backendBreakerOpenFor))
	}

	cache := application.NewResponseCache(store, infra.NewBackendClient(backendOpts...),
		application.WithTTL(cfg.cacheTTL),
		application.WithSingleFlight(cfg.cacheSingleFlight, cfg.backendTimeout),
		application.WithObserver(metrics),
		application.WithLogger(logger),
	)
	return application.Service{
		Router: application.NewRouter(cfg.queryServiceURL),
		Cache:  cache,
	}, nil
}

func newRateLimitOptions(ctx context.Context, cfg config, rdb *redis.Client, reg prometheus.Registerer, logger *zap.Logger) (ratelimit.Options, *rlinfra.MemoryStatsStore, error) {
	var limiters []rldomain.Limiter
	if cfg.localRateRPS > 0 {
		tb := rlinfra.NewTokenBucket(cfg.localRateRPS, cfg.localRateBurst)
		tb.StartJanitor(ctx)
		limiters = append(limiters, tb)
	}

	var windows rldomain.WindowStore
	if cfg.rateStore == "memory" {
		mem := rlinfra.NewMemoryWindowStore()
		mem.StartJanitor(ctx)
		windows = mem
	} else {
		windows = rlinfra.NewRedisWindowStore(rdb, rlinfra.WithWindowPrefix(cfg.ratePrefix))
	}
	limiters = append(limiters, rlapp.FixedWindow{
		Store:  windows,
		Max:    cfg.rateLimit,
		Window: cfg.rateWindow,
		Scope:  "/ask",
	})

	promStats, err := rlinfra.NewPrometheusStatsStore(reg)
	if err != nil {
		return ratelimit.Options{}, nil, err
	}
	stats := rldomain.MultiStats{promStats}

	var debugStats *rlinfra.MemoryStatsStore
	switch cfg.rateStatsBackend {
	case "memory":
		debugStats = rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(cfg.rateStatsTrackKeys))
		stats = append(stats, debugStats)
	case "redis":
		stats = append(stats, rlinfra.NewRedisStatsStore(
			rdb,
			rlinfra.WithStatsPrefix(cfg.rateStatsPrefix),
			rlinfra.WithStatsTTL(cfg.rateStatsTTL),
			rlinfra.WithStatsBucket(cfg.rateStatsBucket),
			rlinfra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		))
	}

	return ratelimit.Options{
		Limiters:            limiters,
		Stats:               stats,
		KeyHeader:           cfg.rateKeyHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		RejectStatus:        http.StatusTooManyRequests,
		AddRateLimitHeaders: cfg.addHeaders,
		Logger:              logger,
	}, debugStats, nil
}

func refreshDNS(ctx context.Context, r *dnscache.Resolver) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Refresh(true)
		}
	}
}
