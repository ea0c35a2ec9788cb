// cmd/webhook-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tender-alerts/internal/cache"
	"tender-alerts/internal/channels"
	"tender-alerts/internal/channels/telegram"
	"tender-alerts/internal/channels/whatsapp"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/database"
	commonhttp "tender-alerts/internal/common/http"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/common/observability"
	"tender-alerts/internal/inbound"
	"tender-alerts/internal/models"
	"tender-alerts/internal/queue"
	"tender-alerts/internal/resolver"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting webhook server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("webhook-server")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis client failed", zap.Error(err))
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		zapLog.Fatal("redis unreachable", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	// --- Assemble resolver ---
	contextTTL := time.Duration(cfg.Channels.ContextTTLMinutes) * time.Minute
	contextCache := cache.NewContextCache(rdb.Client, contextTTL)
	sendTimeout := time.Duration(cfg.Dispatch.SendTimeoutSeconds) * time.Second
	httpClient := commonhttp.NewClient(sendTimeout)

	registry := channels.NewRegistry(
		telegram.New(cfg.Channels.Telegram, httpClient, contextCache, log),
		whatsapp.New(cfg.Channels.WhatsApp, httpClient, contextCache, log),
	)

	callbackResolver := resolver.New(
		contextCache,
		registry,
		resolver.NewHTTPDocumentFetcher(cfg.Source.BaseURL, httpClient),
		resolver.NewSummaryAnalyzer(),
		models.ChannelWhatsApp,
		log,
	)

	// --- Queue and consumer ---
	inboundQueue := queue.NewInboundQueue(
		rdb.Client,
		cfg.Inbound.QueueCap,
		time.Duration(cfg.Inbound.QueueTTLHours)*time.Hour,
	)
	consumer := resolver.NewConsumer(inboundQueue, callbackResolver, 2*time.Second, log)
	go consumer.Run(ctx)

	// --- Gateway ---
	gateway := inbound.NewGateway(cfg.Inbound, inboundQueue, callbackResolver, log)
	mux := http.NewServeMux()
	gateway.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Inbound.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		zapLog.Info("Webhook server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("webhook server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zapLog.Info("Shutdown signal received, stopping webhook server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down webhook server", zap.Error(err))
	}

	zapLog.Info("Webhook server stopped gracefully")
}
