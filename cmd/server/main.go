// Command server starts the ClipStash API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipstash/internal/api"
	"clipstash/internal/observability/logging"
	"clipstash/internal/observability/metrics"
	"clipstash/internal/server"
	"clipstash/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	mediaRoot := flag.String("media-root", "", "directory for stored clip and avatar files")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	retentionTTL := flag.Duration("retention-ttl", 0, "age after which clips are purged (default 168h)")
	sweepInterval := flag.Duration("sweep-interval", 0, "interval between retention sweeps (default 1h)")
	lockTimeout := flag.Duration("lock-timeout", 0, "wait bound when acquiring a resource token")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum accepted upload size in bytes")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	voteLimit := flag.Int("rate-vote-limit", 0, "maximum vote submissions per window for a single IP")
	voteWindow := flag.Duration("rate-vote-window", 0, "window for counting vote submissions")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed vote throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed vote throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPSTASH_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPSTASH_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPSTASH_ADDR"), ":8080")
	mediaDir := firstNonEmpty(*mediaRoot, os.Getenv("CLIPSTASH_MEDIA_ROOT"), "data/media")

	blobs, err := storage.NewBlobStore(mediaDir)
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	options := []storage.Option{storage.WithLogger(logging.WithComponent(logger, "storage"))}
	ttl := resolveDuration(*retentionTTL, "CLIPSTASH_RETENTION_TTL", 0)
	if ttl > 0 {
		options = append(options, storage.WithRetentionTTL(ttl))
	}
	if timeout := resolveDuration(*lockTimeout, "CLIPSTASH_LOCK_TIMEOUT", 0); timeout > 0 {
		options = append(options, storage.WithLockTimeout(timeout))
	}

	dsn := strings.TrimSpace(firstNonEmpty(*postgresDSN, os.Getenv("CLIPSTASH_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
	driver := strings.ToLower(firstNonEmpty(*storageDriver, os.Getenv("CLIPSTASH_STORAGE_DRIVER")))
	if driver == "" {
		if dsn != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}

	var store storage.Repository
	switch driver {
	case "json":
		dataFile := firstNonEmpty(*dataPath, os.Getenv("CLIPSTASH_DATA"), "data/store.json")
		store, err = storage.NewStorage(dataFile, blobs, options...)
	case "postgres":
		if dsn == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		pgOptions := append([]storage.Option(nil), options...)
		maxConns := resolveInt(*postgresMaxConns, "CLIPSTASH_POSTGRES_MAX_CONNS")
		minConns := resolveInt(*postgresMinConns, "CLIPSTASH_POSTGRES_MIN_CONNS")
		if maxConns > 0 || minConns > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolLimits(int32(maxConns), int32(minConns)))
		}
		if acquire := resolveDuration(*postgresAcquireTimeout, "CLIPSTASH_POSTGRES_ACQUIRE_TIMEOUT", 0); acquire > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresAcquireTimeout(acquire))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("CLIPSTASH_POSTGRES_APP_NAME")); appName != "" {
			pgOptions = append(pgOptions, storage.WithPostgresApplicationName(appName))
		}
		store, err = storage.NewPostgresRepository(dsn, blobs, pgOptions...)
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store)
	handler.Logger = logging.WithComponent(logger, "api")
	handler.Metrics = recorder
	if limit := resolveInt64(*maxUploadBytes, "CLIPSTASH_MAX_UPLOAD_BYTES"); limit > 0 {
		handler.MaxUploadBytes = limit
	}

	interval := resolveDuration(*sweepInterval, "CLIPSTASH_SWEEP_INTERVAL", time.Hour)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	sweepStop := startRetentionWorker(workerCtx, logging.WithComponent(logger, "retention"), recorder, store, interval)
	defer sweepStop()

	rateCfg := server.RateLimitConfig{
		GlobalRPS:     resolveFloat(*globalRPS, "CLIPSTASH_RATE_GLOBAL_RPS"),
		GlobalBurst:   resolveInt(*globalBurst, "CLIPSTASH_RATE_GLOBAL_BURST"),
		VoteLimit:     resolveInt(*voteLimit, "CLIPSTASH_RATE_VOTE_LIMIT"),
		VoteWindow:    resolveDuration(*voteWindow, "CLIPSTASH_RATE_VOTE_WINDOW", time.Minute),
		RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("CLIPSTASH_RATE_REDIS_ADDR")),
		RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("CLIPSTASH_RATE_REDIS_PASSWORD")),
		RedisTimeout:  resolveDuration(*redisTimeout, "CLIPSTASH_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	tlsCfg := server.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPSTASH_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPSTASH_TLS_KEY")),
	}

	srv, err := server.New(handler, server.Config{
		Addr:      listenAddr,
		TLS:       tlsCfg,
		RateLimit: rateCfg,
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPSTASH_CORS_ORIGINS"))),
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("ClipStash API listening", "addr", listenAddr, "driver", driver)
		if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
			logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
		}
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	sweepStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if err := store.Close(ctx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}

	logger.Info("server stopped")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}
