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

	"github.com/clearquote/assistant/internal/adapter/embedding"
	"github.com/clearquote/assistant/internal/adapter/llm"
	"github.com/clearquote/assistant/internal/chat"
	"github.com/clearquote/assistant/internal/config"
	"github.com/clearquote/assistant/internal/guardrail"
	"github.com/clearquote/assistant/internal/ratelimit"
	"github.com/clearquote/assistant/internal/retrieval"
	"github.com/clearquote/assistant/internal/store"
	transport "github.com/clearquote/assistant/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting assistant...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM URL: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize rate limiter
	limiter := ratelimit.New(cfg.RateLimitPerMinute, nil)

	// Initialize guardrails
	matcher := guardrail.NewMatcher()
	loader, err := guardrail.NewStoreLoader(db, guardrail.DefaultConfig(), cfg.GuardrailPolicyPath)
	if err != nil {
		log.Fatalf("Failed to initialize guardrail loader: %v", err)
	}
	defer loader.Close()

	// Initialize clients
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	embedder := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, 30*time.Second)

	// Initialize retrieval
	retriever := retrieval.NewRetriever(db, embedder, cfg.RetrievalTopK, cfg.SimilarityThreshold)

	// Initialize chat service
	svc := chat.New(db, limiter, matcher, loader, retriever, llmClient, cfg)

	// Create HTTP server
	server := transport.NewServer(svc, db)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Assistant API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down assistant...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	// Let in-flight background work (title refinement) finish.
	svc.Wait()

	log.Println("Assistant stopped")
}
