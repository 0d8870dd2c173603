package main

import (
	"context"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stocktrack/internal/adapter/gateway"
	"stocktrack/internal/config"
	"stocktrack/internal/logging"
	"stocktrack/internal/port"
)

// paths that get a per-client request ceiling on top of authentication
var protectedPaths = []string{"/api/inventory/reserve"}

func main() {
	config.Load()
	cfg := config.GatewayFromEnv()
	logger := logging.New("stocktrack-gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.UpstreamURL).Msg("invalid upstream URL")
	}

	limiter, closeLimiter := buildLimiter(ctx, cfg, logger)
	defer closeLimiter()

	gw := gateway.New(target, gateway.NewAuthenticator(cfg.JWTSecret), limiter, protectedPaths, logger)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: gw.Handler()}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("upstream", cfg.UpstreamURL).
			Msg("gateway listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("gateway error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	logger.Info().Msg("stopped")
}

func buildLimiter(ctx context.Context, cfg config.Gateway, logger zerolog.Logger) (port.RateLimiter, func()) {
	switch cfg.LimiterBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		logger.Info().Msg("using redis rate limiter")
		return gateway.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow), func() { client.Close() }

	default:
		logger.Info().Msg("using in-memory rate limiter")
		return gateway.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow), func() {}
	}
}
