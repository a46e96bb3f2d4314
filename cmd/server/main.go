/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance and payroll accrual server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the store (sqlite, postgres or memory)
  3. Build the accrual cache (memory, redis or none)
  4. Wire session, policy and payroll services into the API handler
  5. Start the payroll scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: HTTP_PORT or 8080)
  -db      SQLite database path (default: SQLITE_PATH or attendance.db)
           Use ":memory:" for in-memory database
  -store   Storage backend: sqlite, postgres, memory
  -cache   Accrual cache: memory, redis, none

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and redis connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/attendance.db"

  # Run against postgres with a shared redis cache
  STORE_BACKEND=postgres DATABASE_URL=postgres://... CACHE_BACKEND=redis ./server

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  See config/config.go for every key.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	memstore "github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/redis"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	loc, _ := cfg.Location()

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	// Initialize accrual cache
	clock := generic.SystemClock{}
	cache, cacheProbe, closeCache := openCache(cfg, clock)
	defer closeCache()

	// Domain services
	engine := payroll.NewEngine(store, cache)

	sessions := attendance.NewSessionService(store, clock, loc)
	sessions.Invalidator = engine
	sessions.RejectNonWorkingDays = cfg.RejectNonWorkingDays

	var validators []attendance.PolicyValidator
	if cfg.EnforceThresholdOrder {
		validators = append(validators, attendance.ValidateThresholdOrdering)
	}
	policies := attendance.NewPolicyService(store, clock, validators...)

	// Initialize handler
	handler := api.NewHandler(store, sessions, policies, engine)
	if cacheProbe != nil {
		handler.Probes["cache"] = cacheProbe
	}

	// Payroll scheduler
	scheduler := api.NewPayrollScheduler(handler)
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (store=%s cache=%s tz=%s)",
			cfg.HTTPPort, cfg.StoreBackend, cfg.CacheBackend, loc)
		log.Printf("API available at http://localhost:%d/api", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openStore(cfg config.App) (api.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.StoreMemory:
		log.Println("Using in-memory store; data is lost on restart")
		return newMemoryBackend(), nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

// openCache returns the accrual cache, an optional health probe for it and
// a cleanup function.
func openCache(cfg config.App, clock generic.Clock) (payroll.AccrualCache, api.Pinger, func()) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client := redis.NewClient(cfg.RedisAddr)
		cache := redis.NewCache(client, cfg.CacheTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(ctx); err != nil {
			log.Printf("Warning: redis at %s not reachable; accruals will be recomputed until it is: %v", cfg.RedisAddr, err)
		}
		return cache, cache, func() { client.Close() }
	case config.CacheNone:
		return nil, nil, func() {}
	default:
		return payroll.NewMemoryCache(clock, cfg.CacheTTL), nil, func() {}
	}
}

// memoryBackend pairs the in-memory attendance store with in-memory
// payroll runs.
type memoryBackend struct {
	*memstore.Memory
	*payroll.MemoryRuns
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{Memory: memstore.NewMemory(), MemoryRuns: payroll.NewMemoryRuns()}
}

func (m *memoryBackend) Reset(ctx context.Context) error {
	m.MemoryRuns.Clear()
	return m.Memory.Reset(ctx)
}
