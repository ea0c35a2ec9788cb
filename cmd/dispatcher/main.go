// cmd/dispatcher/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tender-alerts/internal/audit"
	"tender-alerts/internal/cache"
	"tender-alerts/internal/channels"
	"tender-alerts/internal/channels/email"
	"tender-alerts/internal/channels/sms"
	"tender-alerts/internal/channels/telegram"
	"tender-alerts/internal/channels/whatsapp"
	"tender-alerts/internal/common/aws"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/database"
	commonhttp "tender-alerts/internal/common/http"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/common/observability"
	"tender-alerts/internal/dispatch"
	"tender-alerts/internal/source"
	"tender-alerts/internal/subscriptions"
	"tender-alerts/internal/tracker"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatcher...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("dispatcher")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Audit index (optional) ---
	var auditor audit.Indexer = audit.NoOpIndexer{}
	if cfg.Audit.Enabled && cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			// Audit is best effort; the dispatcher runs without it.
			zapLog.Warn("elasticsearch unavailable, audit indexing disabled", zap.Error(err))
		} else {
			auditor = audit.NewElasticsearchIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Assemble channels ---
	contextTTL := time.Duration(cfg.Channels.ContextTTLMinutes) * time.Minute
	contextCache := cache.NewContextCache(rdb.Client, contextTTL)
	sendTimeout := time.Duration(cfg.Dispatch.SendTimeoutSeconds) * time.Second
	httpClient := commonhttp.NewClient(sendTimeout)

	registry := channels.NewRegistry(
		telegram.New(cfg.Channels.Telegram, httpClient, contextCache, log),
		whatsapp.New(cfg.Channels.WhatsApp, httpClient, contextCache, log),
	)

	if cfg.Channels.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Channels.Email.AWSRegion)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		registry.Register(email.New(cfg.Channels.Email, sesClient, log))
	}

	if cfg.Channels.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Channels.SMS.AWSRegion)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		registry.Register(sms.New(cfg.Channels.SMS, snsClient, log))
	}

	zapLog.Info("Channels registered", zap.Strings("channels", registry.Names()))

	// --- Engine and scheduler ---
	engine := dispatch.NewEngine(
		source.NewClient(cfg.Source, rdb.Client, log),
		subscriptions.NewPostgresStore(pg.DB, log),
		tracker.NewPostgresTracker(pg.DB, log),
		registry,
		auditor,
		cfg.Dispatch,
		log,
	)
	scheduler := dispatch.NewScheduler(engine, cfg.Dispatch, obs, log)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	scheduler.Run(ctx)

	zapLog.Info("Dispatcher stopped gracefully")
}
