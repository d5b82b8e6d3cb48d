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
	if err := repository.EnsureUserSchema(ctx, dbPool); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Metrics
	m, meterProvider, err := metrics.Init(ctx, cfg.Telemetry, "user-service")
	if err != nil {
		log.Error("init metrics", "error", err)
		os.Exit(1)
	}

	// Wiring
	userRepo := repository.NewUserRepository(dbPool)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	userH := handler.NewUserHandler(authSvc)
	healthH := handler.NewHealthHandler("User Service",
		handler.ReadyCheck{Name: "postgres", Check: dbPool.Ping},
	)

	// Router
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middleware.Metrics(m))
	router.GET("/", healthH.Root)
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	users := router.Group("/api/users")
	{
		users.POST("/register", userH.Register)
		users.POST("/login", userH.Login)
		users.POST("/reset-password", userH.ResetPassword)
		users.POST("/refresh", userH.Refresh)

		authed := users.Group("", middleware.RequireAuth(authSvc))
		authed.POST("/logout", userH.Logout)
		authed.GET("/profile", userH.GetProfile)
		authed.PUT("/profile", userH.UpdateProfile)
		authed.GET("/verify-token", userH.VerifyToken)
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
