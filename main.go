package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drone-gateway/cache"
	"drone-gateway/config"
	"drone-gateway/gateway"
	"drone-gateway/handlers"
	"drone-gateway/relay"
)

func main() {
	cfg := config.Load()

	// Redis is optional: without it the gateway still runs, the dashboard
	// just has nothing to read
	var redisClient *cache.RedisClient
	if cfg.Redis.Addr != "" {
		var err error
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		defer redisClient.Close()
		log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
	}

	sender := relay.NewTCPUplink(cfg.Uplink.ServerAddr, cfg.Uplink.DialTimeout)
	defer sender.Close()

	coordinator := gateway.NewCoordinator(cfg, sender, redisClient)

	r := mux.NewRouter()

	statusHandler := handlers.NewStatusHandler(coordinator)

	r.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	r.HandleFunc("/status", statusHandler.HandleStatus).Methods("GET")
	r.HandleFunc("/sensors", statusHandler.HandleSensors).Methods("GET")

	r.Path("/metrics").Handler(promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Status server starting on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Status server failed to start: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down gateway...")
		cancel()
	}()

	runErr := coordinator.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: status server forced to shutdown: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Gateway halted: %v", runErr)
	}
	log.Println("Gateway exited")
}
