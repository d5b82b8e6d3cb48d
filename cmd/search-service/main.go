package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/brybell/backend/internal/config"
	"github.com/brybell/backend/internal/handler"
	"github.com/brybell/backend/internal/metrics"
	"github.com/brybell/backend/internal/middleware"
	"github.com/brybell/backend/internal/search"
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

	// Elasticsearch
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		log.Error("create elasticsearch client", "error", err)
		os.Exit(1)
	}

	gateway := search.NewGateway(esClient)
	if err := gateway.EnsureIndex(ctx); err != nil {
		log.Error("ensure index", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Elasticsearch")

	// Metrics
	m, meterProvider, err := metrics.Init(ctx, cfg.Telemetry, "search-service")
	if err != nil {
		log.Error("init metrics", "error", err)
		os.Exit(1)
	}

	// Wiring
	searchH := handler.NewSearchHandler(gateway)
	healthH := handler.NewHealthHandler("Search Service",
		handler.ReadyCheck{Name: "elasticsearch", Check: func(ctx context.Context) error {
			res, err := esClient.Ping(esClient.Ping.WithContext(ctx))
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.IsError() {
				return fmt.Errorf("elasticsearch ping: %s", res.Status())
			}
			return nil
		}},
	)

	// Router
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middleware.Metrics(m))
	router.GET("/", healthH.Root)
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	searchRoutes := router.Group("/api/search")
	{
		searchRoutes.GET("", searchH.Search)
		searchRoutes.GET("/suggestions", searchH.Suggestions)
		searchRoutes.GET("/filters", searchH.Filters)
		searchRoutes.POST("/index", searchH.Index)
		searchRoutes.POST("/index/bulk", searchH.BulkIndex)
		searchRoutes.DELETE("/index/:id", searchH.Delete)
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
