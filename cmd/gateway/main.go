package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence-gateway/internal/api/middleware"
	"presence-gateway/internal/config"
	"presence-gateway/internal/domain"
	"presence-gateway/internal/infrastructure/mysql"
	"presence-gateway/internal/infrastructure/redis"
	"presence-gateway/internal/infrastructure/websocket"
	"presence-gateway/internal/services"
	"presence-gateway/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
)

func main() {
	log := logger.New()
	log.Info("Starting presence gateway")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// The permission store is only dialed when checks are enabled; the
	// default configuration grants everything without it.
	var accessRepo domain.EntityAccessRepository
	if cfg.Permissions.Enabled {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Error("Failed to connect to MySQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL")

		accessRepo = mysql.NewEntityAccessRepository(db)
	}

	// Initialize components
	bus := redis.NewEventBus(rdb, log)
	gate := services.NewPermissionGate(accessRepo, cfg.Permissions.Enabled, log)
	registry := websocket.NewRegistry(log)
	router := services.NewSubscriptionRouter(bus, gate, registry, log)
	presence := services.NewPresenceAggregator(bus, log)
	heartbeat := services.NewHeartbeat(registry, log)
	wsHandler := websocket.NewHandler(router, registry, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start background services
	go router.Run(runCtx)

	if err := presence.Start(runCtx); err != nil {
		log.Error("Failed to start presence aggregator", "error", err)
		os.Exit(1)
	}

	if err := heartbeat.Start(); err != nil {
		log.Error("Failed to start heartbeat", "error", err)
		os.Exit(1)
	}

	// Setup routes. Every upgrade request lands on the websocket
	// handler; anything that is not /connect is rejected in-protocol.
	httpRouter := mux.NewRouter()
	httpRouter.Use(middleware.CORS)

	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	httpRouter.PathPrefix("/").HandlerFunc(wsHandler.HandleConnection)

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: httpRouter,
	}

	go func() {
		log.Info("Gateway listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down presence gateway...")

	heartbeat.Stop()
	stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Presence gateway stopped")
}
