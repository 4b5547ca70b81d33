package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minDuration barra valores sem unidade ("60" vira 60ns no viper).
const minDuration = time.Second

type config struct {
	listenAddr string

	redisHost     string
	redisPort     int
	redisDB       int
	redisPassword string

	queryServiceURL     string
	ingestionServiceURL string

	backendTimeout         time.Duration
	backendBreakerEnabled  bool
	backendBreakerFailures uint32
	backendBreakerOpenFor  time.Duration

	cacheBackend          string
	cacheTTL              time.Duration
	cacheSingleFlight     bool
	cacheMemoryMaxEntries int

	rateEnabled    bool
	rateLimit      int
	rateWindow     time.Duration
	rateStore      string
	ratePrefix     string
	rateKeyHeader  string
	trustXFF       bool
	addHeaders     bool
	localRateRPS   float64
	localRateBurst int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsBackend   string
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	logLevel  string
	logFormat string
}

func (c config) redisAddr() string {
	return net.JoinHostPort(c.redisHost, strconv.Itoa(c.redisPort))
}

func (c config) usesRedis() bool {
	return c.cacheBackend == "redis" ||
		(c.rateEnabled && c.rateStore == "redis") ||
		c.rateStatsBackend == "redis"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("DATA_STORAGE_QUERY_SERVICE_URL", "http://0.0.0.0:8000")
	v.SetDefault("DATA_INGESTION_SERVICE_URL", "http://0.0.0.0:8001")

	v.SetDefault("BACKEND_TIMEOUT", 10*time.Second)
	v.SetDefault("BACKEND_BREAKER_ENABLED", false)
	v.SetDefault("BACKEND_BREAKER_FAILURES", 5)
	v.SetDefault("BACKEND_BREAKER_OPEN_FOR", 30*time.Second)

	v.SetDefault("CACHE_BACKEND", "redis")
	v.SetDefault("CACHE_TTL", 60*time.Second)
	v.SetDefault("CACHE_SINGLEFLIGHT", true)
	v.SetDefault("CACHE_MEMORY_MAX_ENTRIES", 10_000)

	v.SetDefault("RATE_ENABLED", true)
	v.SetDefault("RATE_LIMIT", 5)
	v.SetDefault("RATE_WINDOW", 60*time.Second)
	v.SetDefault("RATE_STORE", "redis")
	v.SetDefault("RATE_PREFIX", "ratelimit")
	v.SetDefault("RATE_KEY_HEADER", "")
	v.SetDefault("TRUST_XFF", false)
	v.SetDefault("ADD_RATELIMIT_HEADERS", false)
	// IMPORTANTE: o token bucket local é só uma barreira contra rajadas;
	// com LOCAL_RATE_RPS=0 ele fica desligado e só vale a janela fixa.
	v.SetDefault("LOCAL_RATE_RPS", 0.0)
	v.SetDefault("LOCAL_RATE_BURST", 10)

	v.SetDefault("CONCURRENCY_MAX", 100)
	v.SetDefault("CONCURRENCY_TIMEOUT", time.Duration(0))

	v.SetDefault("RATE_STATS_BACKEND", "")
	v.SetDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("RATE_STATS_BUCKET", "minute")
	v.SetDefault("RATE_STATS_TRACK_KEYS", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr: v.GetString("LISTEN_ADDR"),

		redisHost:     v.GetString("REDIS_HOST"),
		redisPort:     v.GetInt("REDIS_PORT"),
		redisDB:       v.GetInt("REDIS_DB"),
		redisPassword: v.GetString("REDIS_PASSWORD"),

		queryServiceURL:     strings.TrimRight(v.GetString("DATA_STORAGE_QUERY_SERVICE_URL"), "/"),
		ingestionServiceURL: v.GetString("DATA_INGESTION_SERVICE_URL"),

		backendTimeout:         v.GetDuration("BACKEND_TIMEOUT"),
		backendBreakerEnabled:  v.GetBool("BACKEND_BREAKER_ENABLED"),
		backendBreakerFailures: v.GetUint32("BACKEND_BREAKER_FAILURES"),
		backendBreakerOpenFor:  v.GetDuration("BACKEND_BREAKER_OPEN_FOR"),

		cacheBackend:          strings.ToLower(v.GetString("CACHE_BACKEND")),
		cacheTTL:              v.GetDuration("CACHE_TTL"),
		cacheSingleFlight:     v.GetBool("CACHE_SINGLEFLIGHT"),
		cacheMemoryMaxEntries: v.GetInt("CACHE_MEMORY_MAX_ENTRIES"),

		rateEnabled:    v.GetBool("RATE_ENABLED"),
		rateLimit:      v.GetInt("RATE_LIMIT"),
		rateWindow:     v.GetDuration("RATE_WINDOW"),
		rateStore:      strings.ToLower(v.GetString("RATE_STORE")),
		ratePrefix:     v.GetString("RATE_PREFIX"),
		rateKeyHeader:  v.GetString("RATE_KEY_HEADER"),
		trustXFF:       v.GetBool("TRUST_XFF"),
		addHeaders:     v.GetBool("ADD_RATELIMIT_HEADERS"),
		localRateRPS:   v.GetFloat64("LOCAL_RATE_RPS"),
		localRateBurst: v.GetInt("LOCAL_RATE_BURST"),

		concurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
		concurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),

		rateStatsBackend:   strings.ToLower(v.GetString("RATE_STATS_BACKEND")),
		rateStatsPrefix:    v.GetString("RATE_STATS_PREFIX"),
		rateStatsTTL:       v.GetDuration("RATE_STATS_TTL"),
		rateStatsBucket:    v.GetString("RATE_STATS_BUCKET"),
		rateStatsTrackKeys: v.GetBool("RATE_STATS_TRACK_KEYS"),

		logLevel:  v.GetString("LOG_LEVEL"),
		logFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if u, err := url.Parse(cfg.queryServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return config{}, fmt.Errorf("DATA_STORAGE_QUERY_SERVICE_URL %q is not an absolute URL", cfg.queryServiceURL)
	}
	if cfg.redisPort <= 0 || cfg.redisPort > 65535 {
		return config{}, errors.New("REDIS_PORT must be in 1..65535")
	}
	if cfg.backendTimeout < minDuration {
		return config{}, fmt.Errorf("BACKEND_TIMEOUT must be >= %s, got %s", minDuration, cfg.backendTimeout)
	}
	if cfg.cacheBackend != "redis" && cfg.cacheBackend != "memory" {
		return config{}, fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", cfg.cacheBackend)
	}
	if cfg.cacheTTL < minDuration {
		return config{}, fmt.Errorf("CACHE_TTL must be >= %s, got %s", minDuration, cfg.cacheTTL)
	}
	if cfg.rateStore != "redis" && cfg.rateStore != "memory" {
		return config{}, fmt.Errorf("RATE_STORE must be redis or memory, got %q", cfg.rateStore)
	}
	if cfg.rateEnabled && cfg.rateLimit <= 0 {
		return config{}, errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.rateEnabled && cfg.rateWindow < minDuration {
		return config{}, fmt.Errorf("RATE_WINDOW must be >= %s, got %s", minDuration, cfg.rateWindow)
	}
	if cfg.localRateRPS < 0 {
		return config{}, errors.New("LOCAL_RATE_RPS must be >= 0")
	}
	if cfg.localRateRPS > 0 && cfg.localRateBurst <= 0 {
		return config{}, errors.New("LOCAL_RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	switch cfg.rateStatsBackend {
	case "", "memory", "redis":
	default:
		return config{}, fmt.Errorf("RATE_STATS_BACKEND must be empty, memory or redis, got %q", cfg.rateStatsBackend)
	}
	return cfg, nil
}
