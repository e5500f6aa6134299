// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market-chat-gateway/internal/config"
	"market-chat-gateway/internal/conversation"
	"market-chat-gateway/internal/infra/backend"
	"market-chat-gateway/internal/infra/logging"
	"market-chat-gateway/internal/infra/metrics"
	red "market-chat-gateway/internal/infra/redis"
	"market-chat-gateway/internal/infra/web"
	"market-chat-gateway/internal/realtime"
	"market-chat-gateway/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed origins)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Redis (optional intraday cache) ----
	var cache realtime.Cache
	if cfg.Redis.Enabled {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		cache = red.NewIntradayCache(redisClient, cfg.Redis.TTL, logger)
	}

	// ---- Analysis backend ----
	analysis, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.IntradayBaseURL, cfg.Backend.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	// ---- Realtime ----
	hub := web.NewHub(cfg.Server.AllowedOrigins, logger)
	controller := realtime.NewController(
		analysis, cache,
		cfg.Realtime.PollInterval, cfg.Realtime.FetchTimeout,
		hub.Publish, logger,
	)
	controller.Start(ctx)

	// ---- Use case + HTTP ----
	uc := usecase.NewConversationUseCase(conversation.NewStore(), analysis, controller, logger)
	server := web.NewServer(cfg.Server.Port, uc, hub, controller, logger)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	controller.Shutdown()
}
