package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/bugbase/bugbase/internal/agent"
	"github.com/bugbase/bugbase/internal/config"
	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/handlers"
	"github.com/bugbase/bugbase/internal/llm"
	"github.com/bugbase/bugbase/internal/middleware"
	"github.com/bugbase/bugbase/internal/notify"
	"github.com/bugbase/bugbase/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting BugBase (%s mode)...", cfg.Environment)

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	if cfg.SeedFile != "" {
		if err := database.SeedFromFile(database.GetDB(), cfg.SeedFile); err != nil {
			log.Printf("Warning: Failed to seed database from %s: %v", cfg.SeedFile, err)
		} else {
			log.Printf("Seed fixtures loaded from %s", cfg.SeedFile)
		}
	}

	// AI providers. Without an API key the app still runs: bugs are stored
	// without embeddings or suggestions and similarity search is unavailable.
	var embedder services.EmbeddingProvider
	var classifier services.BugClassifier
	var completer services.CompletionProvider
	if cfg.OpenAIAPIKey != "" {
		client := llm.NewClient(llm.ClientConfig{
			APIKey:         cfg.OpenAIAPIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			RequestsPerSec: cfg.RequestsPerSec,
			Burst:          cfg.RequestBurst,
		})
		embedder = llm.NewEmbeddingService(client)
		classifier = llm.NewClassifier(client, cfg.ChatModel)
		completer = client
		log.Printf("AI providers initialized (chat=%s, embeddings=%s)", cfg.ChatModel, cfg.EmbeddingModel)
	} else {
		log.Printf("OPENAI_API_KEY not set, AI features disabled")
	}

	// Slack notifications (no-op without a token)
	notifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel)
	if notifier.Enabled() {
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications disabled")
	}

	// Services
	db := database.GetDB()
	similarityService := services.NewSimilarityService(db, embedder)
	bugService := services.NewBugService(db, embedder, classifier, similarityService, notifier)
	mergeService := services.NewMergeService(db, completer, embedder, notifier, cfg.MergeModel)
	updateService := services.NewUpdateService(db)
	trendsService := services.NewTrendsService(db)

	// Agent tool surface with approval gate
	dispatcher := agent.NewDispatcher(bugService, similarityService, mergeService, updateService, trendsService, cfg.IsProduction())

	// Event stream; approval transitions are pushed to connected clients
	eventsHandler := handlers.NewEventsHandler()
	dispatcher.Gate.OnEvent = eventsHandler.BroadcastApproval

	// HTTP surface
	httpHandler := handlers.NewHTTPHandler()
	apiHandler := handlers.NewAPIHandler(bugService, similarityService, dispatcher, cfg.IsProduction())

	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	eventsHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware()
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(mux))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Event stream: ws://localhost:%d/ws/events", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}
