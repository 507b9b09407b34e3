package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerlink/internal/api"
	"brokerlink/internal/config"
	"brokerlink/internal/gateway"
	"brokerlink/internal/quote"
	"brokerlink/internal/reconcile"
	"brokerlink/internal/util"
)

func main() {
	cfgPath := "config/brokerlink.yaml"
	if p := os.Getenv("BROKERLINK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	quoteCache, err := quote.NewCache(cfg.Storage.DataDir, logger)
	if err != nil {
		log.Fatalf("opening quote cache: %v", err)
	}
	resolver := quote.NewResolverFromConfig(cfg.Providers, quoteCache, logger)

	dummy, err := reconcile.NewDummyStore(cfg.Storage.DataDir, logger)
	if err != nil {
		log.Fatalf("opening dummy dataset: %v", err)
	}

	sessions := gateway.NewSessionCache(cfg.Gateway, logger)
	reconciler := reconcile.NewReconciler(reconcile.CacheSource(sessions), resolver, dummy, logger)

	maxAge := time.Duration(cfg.Providers.MaxAgeHours) * time.Hour
	srv := api.NewServer(reconciler, resolver, sessions, dummy, maxAge, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("brokerlink server listening",
			"addr", httpServer.Addr, "gateway", fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down brokerlink server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if session := sessions.Current(); session != nil {
		if err := session.Disconnect(); err != nil {
			logger.Error("disconnecting gateway session", "error", err)
		}
	}
}
