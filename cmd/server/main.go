package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stocktrack/internal/adapter/handler"
	"stocktrack/internal/adapter/notifier"
	"stocktrack/internal/adapter/storage"
	"stocktrack/internal/config"
	"stocktrack/internal/core/service"
	"stocktrack/internal/diagnosis"
	"stocktrack/internal/logging"
	"stocktrack/internal/metrics"
	"stocktrack/internal/port"
)

const serviceName = "stocktrack"

func main() {
	config.Load()
	cfg := config.ServerFromEnv()
	logger := logging.New(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer closeStore()

	notif, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	m := metrics.New(serviceName, prometheus.DefaultRegisterer)
	diag := diagnosis.NewService(logger)
	inventory := service.NewInventoryService(store, notif, logger, cfg.ReserveMaxAttempts)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(inventory, logger, m, diag).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("stopped")
}

func buildStore(ctx context.Context, cfg config.Server, logger zerolog.Logger) (port.ItemStore, func(), error) {
	switch cfg.StorageBackend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info().Msg("connected to mysql")
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil

	default:
		logger.Info().Msg("using in-memory item store")
		return storage.NewMemoryAdapter(), func() {}, nil
	}
}

func buildNotifier(cfg config.Server, logger zerolog.Logger) (port.Notifier, func()) {
	switch cfg.NotifierBackend {
	case "kafka":
		n := notifier.NewKafkaNotifier([]string{cfg.KafkaBrokers}, cfg.KafkaTopic)
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("publishing stock events to kafka")
		return n, func() { n.Close() }

	default:
		return notifier.NewLogNotifier(logger), func() {}
	}
}
