package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorlink-backend/internal/config"
	"mentorlink-backend/internal/database"
	"mentorlink-backend/internal/handlers"
	"mentorlink-backend/internal/middleware"
	"mentorlink-backend/internal/repository"
	"mentorlink-backend/internal/router"
	"mentorlink-backend/internal/services"
	"mentorlink-backend/internal/websocket"
	"mentorlink-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting MentorLink Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	studentRepo := repository.NewStudentRepo(pool)
	checkInRepo := repository.NewCheckInRepo(pool)
	interventionRepo := repository.NewInterventionRepo(pool)

	// ──── Initialize Realtime Core ────
	registry := websocket.NewRegistry()
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	dispatcher := services.NewDispatcher(registry, redisClients.PubSub, cfg.ReviewMode)
	reviewService := services.NewReviewService(
		cfg.ReviewMode,
		time.Duration(cfg.ReviewDelaySeconds)*time.Second,
		services.NewRealScheduler(),
		interventionRepo,
		dispatcher,
		redisClients.Queue,
	)
	checkInService := services.NewCheckInService(checkInRepo, interventionRepo, reviewService)
	authService := services.NewAuthService(studentRepo, redisClients.Queue, jwtAuth)
	log.Printf("✓ Review policy: %s (delay %ds)", cfg.ReviewMode, cfg.ReviewDelaySeconds)

	// ──── Step 5: Start Notify Worker Pool (delegated mode) ────
	var notifyPool *worker.Pool
	if cfg.ReviewMode == config.ReviewModeDelegated {
		notifyPool = worker.NewPool(redisClients.Queue, cfg.WorkflowWebhookURL, cfg.WorkflowWebhookSecret, cfg.NotifyWorkers)
		notifyPool.Start()
		log.Printf("✓ Notify worker pool started (%d goroutines)", cfg.NotifyWorkers)
	}

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(registry, jwtAuth, checkInService, redisClients.PubSub, cfg.ReviewMode)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	interventionHandler := handlers.NewInterventionHandler(interventionRepo, checkInRepo, reviewService)
	webhookHandler := handlers.NewWebhookHandler(reviewService, handlers.NewRedisReplayGuard(redisClients.Queue), cfg.WorkflowWebhookSecret)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		interventionHandler,
		webhookHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		if notifyPool != nil {
			notifyPool.Stop()
		}
		reviewService.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ MentorLink Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
