package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"presence-gateway/internal/config"
	"presence-gateway/internal/domain"
	"presence-gateway/internal/infrastructure/redis"
	"presence-gateway/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// PresenceSnapshot is the latest online-users event seen for one
// resource.
type PresenceSnapshot struct {
	ResourceID    string   `json:"resource_id"`
	OnlineUserIDs []string `json:"online_user_ids"`
	UpdatedBy     string   `json:"updated_by"`
	UpdatedAt     int64    `json:"updated_at"`
}

// SnapshotCache holds the newest snapshot per resource, fed from the
// online-users channel. Derived data only; the gateway owns the
// authoritative presence state.
type SnapshotCache struct {
	mutex      sync.RWMutex
	byResource map[string]*PresenceSnapshot
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{byResource: make(map[string]*PresenceSnapshot)}
}

func (c *SnapshotCache) Update(event *domain.Event) error {
	resourceID, ok := domain.FieldString(event.Payload, domain.FieldResourceID)
	if !ok {
		return fmt.Errorf("missing field %s", domain.FieldResourceID)
	}
	encoded, ok := domain.FieldString(event.Payload, domain.FieldOnlineUserIDs)
	if !ok {
		return fmt.Errorf("missing field %s", domain.FieldOnlineUserIDs)
	}

	var ids []string
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return fmt.Errorf("decode %s: %w", domain.FieldOnlineUserIDs, err)
	}

	snapshot := &PresenceSnapshot{ResourceID: resourceID, OnlineUserIDs: ids}
	if by, ok := domain.FieldString(event.Payload, domain.FieldCreatedBy); ok {
		snapshot.UpdatedBy = by
	}
	if at, ok := event.Payload[domain.FieldCreatedAt].(float64); ok {
		snapshot.UpdatedAt = int64(at)
	}

	c.mutex.Lock()
	c.byResource[resourceID] = snapshot
	c.mutex.Unlock()
	return nil
}

func (c *SnapshotCache) Get(resourceID string) (*PresenceSnapshot, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	snapshot, ok := c.byResource[resourceID]
	return snapshot, ok
}

func main() {
	log := logger.New()
	log.Info("Starting presence admin service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	bus := redis.NewEventBus(rdb, log)
	cache := NewSnapshotCache()

	if err := bus.Subscribe(context.Background(), domain.ChannelOnlineUsers, func(event *domain.Event) {
		if err := cache.Update(event); err != nil {
			log.Error("Failed to parse online users event", "payload", event.Payload, "error", err)
		}
	}); err != nil {
		log.Error("Failed to subscribe to online users channel", "error", err)
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/api/v1/presence/:resourceId", func(c echo.Context) error {
		snapshot, ok := cache.Get(c.Param("resourceId"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no presence data for resource"})
		}
		return c.JSON(http.StatusOK, snapshot)
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Admin.Port)
		log.Info("Presence admin listening", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down presence admin service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Presence admin service stopped")
}
