package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/greenbasket/checkout-service/internal/application"
	"github.com/greenbasket/checkout-service/internal/config"
	"github.com/greenbasket/checkout-service/internal/events"
	"github.com/greenbasket/checkout-service/internal/kafka"
	"github.com/greenbasket/checkout-service/internal/logger"
	"github.com/greenbasket/checkout-service/internal/migrate"
	"github.com/greenbasket/checkout-service/internal/presentation"
	"github.com/greenbasket/checkout-service/internal/repository"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// Wiring
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// The event bus lives exactly as long as the server.
	bus := events.NewBus(cfg.BUS_BUFFER)
	defer bus.Close()

	notifier := kafka.NewNotifier(cfg.KAFKA_BROKERS, cfg.NOTIFY_TOPIC)
	defer notifier.Close()

	cartSvc := application.NewCartService(cartRepo, productRepo)
	checkoutSvc := application.NewCheckoutService(cartRepo, orderRepo, productRepo, bus, notifier)

	// Payment confirmations from the mock gateway
	_, _ = kafka.StartPaymentConsumer(ctx, checkoutSvc, kafka.ConsumerConfig{
		Brokers: cfg.KAFKA_BROKERS,
		Topic:   cfg.PAYMENTS_TOPIC,
		GroupID: cfg.PAYMENTS_GROUP_ID,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := presentation.NewHandler(cartSvc, checkoutSvc, bus)
	h.Register(r)

	addr := ":" + cfg.HTTP_PORT
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting http", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server crashed", "err", err)
		os.Exit(1)
	}
}
