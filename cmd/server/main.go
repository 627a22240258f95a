package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/wastetrack/bulk-movements/internal/batch"
	"github.com/wastetrack/bulk-movements/internal/config"
	"github.com/wastetrack/bulk-movements/internal/db"
	"github.com/wastetrack/bulk-movements/internal/ingestion"
	"github.com/wastetrack/bulk-movements/internal/middleware"
	"github.com/wastetrack/bulk-movements/internal/repository"
	"github.com/wastetrack/bulk-movements/internal/validation"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	batchRepo := repository.NewBatchRepository(conn.Pool)
	submissionRepo := repository.NewSubmissionRepository(conn.Pool)

	// Create the batch service
	assembler := ingestion.NewAssembler(validation.NewRowValidator(), cfg.Upload.MaxRows)
	service := batch.NewService(batchRepo, submissionRepo, assembler, batch.Config{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PageSize:       cfg.PageSize,
	})

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	apiHandler := middleware.LoggingMiddleware(
		middleware.AccountScopeMiddleware(batch.NewHTTPHandler(service)),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(apiHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting waste movements server on %s", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
