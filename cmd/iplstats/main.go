package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/api/rest"
	"github.com/fortuna/iplstats/internal/api/websocket"
	"github.com/fortuna/iplstats/internal/app"
	"github.com/fortuna/iplstats/internal/cache"
	"github.com/fortuna/iplstats/internal/config"
	"github.com/fortuna/iplstats/internal/logging"
	"github.com/fortuna/iplstats/internal/publisher"
	"github.com/fortuna/iplstats/internal/scheduler"
)

const (
	serviceName    = "iplstats"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", os.Getenv("IPLSTATS_CONFIG"), "path to YAML config file")
	flag.Parse()

	// Load configuration from file and environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	log.Printf("Starting %s v%s - IPL Team Statistics Service", serviceName, serviceVersion)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer application.Close()

	log.Printf("✓ Dataset source: %s (cache: %v)", application.Store.Source(), cfg.Dataset.Cache)

	deps := rest.Dependencies{
		Stats:   application.Stats,
		Dataset: application.Store,
		Version: serviceVersion,
	}

	// Redis is optional: response cache and reload stream
	var streamPublisher *publisher.RedisStreamPublisher
	if cfg.Redis.URL != "" {
		redisCache := connectRedis(cfg)
		if redisCache != nil {
			defer redisCache.Close()
			deps.Cache = redisCache
			deps.Redis = redisCache
			streamPublisher = publisher.NewRedisStreamPublisher(redisCache.Client(), cfg.Redis.Stream)
			log.Printf("✓ Connected to Redis (response TTL %v, stream %s)", redisCache.TTL(), streamPublisher.Stream())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reload notifications for websocket subscribers
	var wsServer *websocket.Server
	if cfg.Server.WSPort != "" {
		wsServer = websocket.NewServer(application.Store)
		go func() {
			log.Printf("Starting WebSocket server on port %s", cfg.Server.WSPort)
			if err := wsServer.Start(cfg.Server.WSPort); err != nil {
				log.Printf("WebSocket server error: %v", err)
			}
		}()
	}

	// Keep the match table warm in the background
	var sched *scheduler.Orchestrator
	if cfg.Dataset.Cache && cfg.Refresh.Schedule != "" {
		schedulerConfig := &scheduler.Config{
			Schedule:   cfg.Refresh.Schedule,
			MaxRetries: cfg.Refresh.MaxRetries,
			RetryDelay: cfg.Refresh.RetryDelay,
		}

		var reloads []scheduler.ReloadPublisher
		if streamPublisher != nil {
			reloads = append(reloads, streamPublisher)
		}
		if wsServer != nil {
			reloads = append(reloads, wsServer)
		}

		sched, err = scheduler.NewOrchestrator(application.Store, schedulerConfig, reloads...)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		deps.Scheduler = sched

		go sched.Start(ctx)
		log.Println("✓ Scheduler started")
	}

	// Initialize REST API server
	restServer := rest.NewServer(cfg.Server.Port, deps)
	go func() {
		log.Printf("Starting REST API server on port %s", cfg.Server.Port)
		if err := restServer.Start(); err != nil {
			log.Printf("REST server error: %v", err)
		}
	}()

	log.Printf("✓ %s v%s started successfully", serviceName, serviceVersion)
	log.Printf("  REST API: http://0.0.0.0:%s", cfg.Server.Port)
	if wsServer != nil {
		log.Printf("  WebSocket: ws://0.0.0.0:%s/ws/dataset", cfg.Server.WSPort)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Graceful shutdown
	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("WebSocket server shutdown error: %v", err)
		}
	}

	log.Printf("%s stopped", serviceName)
}

// connectRedis retries the connection a few times. Redis only accelerates
// responses, so the service starts without it when it stays unreachable.
func connectRedis(cfg *config.Config) *cache.RedisCache {
	maxRetries := 5
	retryDelay := 2 * time.Second

	log.Println("Connecting to Redis...")
	for i := 0; i < maxRetries; i++ {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.TTL)
		if err == nil {
			return redisCache
		}

		if i < maxRetries-1 {
			log.Printf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		} else {
			log.Warnf("⚠️  Redis unreachable after %d attempts: %v (continuing without response cache)", maxRetries, err)
		}
	}
	return nil
}
