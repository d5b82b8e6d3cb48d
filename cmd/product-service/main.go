package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/brybell/backend/internal/config"
	"github.com/brybell/backend/internal/handler"
	"github.com/brybell/backend/internal/metrics"
	"github.com/brybell/backend/internal/middleware"
	"github.com/brybell/backend/internal/repository"
	"github.com/brybell/backend/internal/service"
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
	if err := repository.EnsureProductSchema(ctx, dbPool); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis (read cache)
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

	// Metrics
	m, meterProvider, err := metrics.Init(ctx, cfg.Telemetry, "product-service")
	if err != nil {
		log.Error("init metrics", "error", err)
		os.Exit(1)
	}

	// Wiring
	productRepo := repository.NewProductRepository(dbPool)
	productSvc := service.NewProductService(productRepo, redisClient)
	productH := handler.NewProductHandler(productSvc)
	healthH := handler.NewHealthHandler("Product Service",
		handler.ReadyCheck{Name: "postgres", Check: dbPool.Ping},
		handler.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)

	// Router
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middleware.Metrics(m))
	router.GET("/", healthH.Root)
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	products := router.Group("/api/products")
	{
		products.GET("", productH.List)
		products.POST("", productH.Create)
		products.GET("/featured", productH.ListFeatured)
		products.GET("/category/:category", productH.ListByCategory)
		products.GET("/:id", productH.Get)
		products.PUT("/:id", productH.Update)
		products.DELETE("/:id", productH.Delete)
		products.PATCH("/:id/stock", productH.SetStock)
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

	log.Info("server stopped")
}
