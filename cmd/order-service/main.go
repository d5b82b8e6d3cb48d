package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/brybell/backend/internal/config"
	"github.com/brybell/backend/internal/events"
	"github.com/brybell/backend/internal/handler"
	"github.com/brybell/backend/internal/metrics"
	"github.com/brybell/backend/internal/middleware"
	"github.com/brybell/backend/internal/repository"
	"github.com/brybell/backend/internal/service"
	"github.com/brybell/backend/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	if err := repository.EnsureOrderSchema(ctx, dbPool); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis (payment worker idempotency)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := events.Setup(amqpCh); err != nil {
		log.Error("setup event exchange", "error", err)
		os.Exit(1)
	}
	if err := worker.SetupPayments(amqpCh); err != nil {
		log.Error("setup payment queue", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Metrics
	m, meterProvider, err := metrics.Init(ctx, cfg.Telemetry, "order-service")
	if err != nil {
		log.Error("init metrics", "error", err)
		os.Exit(1)
	}

	// Wiring
	orderRepo := repository.NewOrderRepository(dbPool)
	publisher := events.NewPublisher(amqpCh)
	orderSvc := service.NewOrderService(orderRepo, publisher, m)
	orderH := handler.NewOrderHandler(orderSvc)
	healthH := handler.NewHealthHandler("Order Service",
		handler.ReadyCheck{Name: "postgres", Check: dbPool.Ping},
		handler.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
		handler.ReadyCheck{Name: "rabbitmq", Check: func(context.Context) error {
			if amqpConn.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		}},
	)

	paymentWorker := worker.NewPaymentWorker(amqpCh, orderSvc, redisClient, log)

	// Router
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middleware.Metrics(m))
	router.GET("/", healthH.Root)
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	orders := router.Group("/api/orders")
	{
		orders.POST("", orderH.Create)
		orders.GET("", orderH.List)
		orders.GET("/:id", orderH.Get)
		orders.PUT("/:id/status", orderH.UpdateStatus)
		orders.PUT("/:id/payment-status", orderH.UpdatePaymentStatus)
		orders.DELETE("/:id", orderH.Cancel)
		orders.GET("/user/:id", orderH.ListByUser)
		orders.GET("/tracking/:tracking_number", orderH.Track)
		orders.GET("/stats/summary", orderH.Stats)
	}

	if err := paymentWorker.Start(ctx); err != nil {
		log.Error("start payment worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if meterProvider != nil {
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown", "error", err)
		}
	}

	paymentWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
