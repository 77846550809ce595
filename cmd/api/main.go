package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pageza/mealplanner/backend/config"
	"github.com/pageza/mealplanner/backend/internal/database"
	"github.com/pageza/mealplanner/backend/internal/server"
)

func main() {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if config.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler).With("service", "backend"))

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.RunMigrations(ctx, db); err != nil {
		cancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis only backs the conversion rate limit; run without it if absent.
	var redisClient *redis.Client
	if rc, err := database.NewRedisClient(ctx, cfg); err != nil {
		slog.Default().Warn("redis unavailable, conversion rate limit disabled",
			"module", "main",
			"error", err,
		)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}
	cancel()

	srv, err := server.New(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		log.Println("Starting server...")
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
