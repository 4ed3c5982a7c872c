package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"thinkflow/backend/internal/adapter"
	"thinkflow/backend/internal/api"
	"thinkflow/backend/internal/bootstrap"
	"thinkflow/backend/internal/chat"
	"thinkflow/backend/internal/workspace"
	"thinkflow/backend/pkg/config"
	"thinkflow/backend/pkg/logger"
)

const systemPrompt = "You are a thinking partner inside a mind map. Earlier messages marked as context come from related nodes; use them, but answer the latest user message."

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx := context.Background()
	backend, err := bootstrap.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open persistence backend", zap.Error(err))
	}
	defer backend.Close()

	// Initialize dependencies
	ws := workspace.New(backend,
		workspace.WithAutosave(cfg.Autosave),
		workspace.WithHistoryLimit(cfg.HistoryLimit),
	)
	orch := chat.NewOrchestrator(ws, newLLM(cfg, log), chat.WithSystemPrompt(systemPrompt))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(ws, orch, api.WithLLMDefaults(cfg.LLMBaseURL, cfg.ModelID, llmOptions(cfg)...))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(handler),
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("backend", backend.Name()),
		zap.Bool("chat", orch.Available()),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := ws.Flush(shutdownCtx); err != nil {
		log.Error("Failed to flush mind maps", zap.Error(err))
	}

	log.Info("Server exited")
}

// newLLM returns nil when no endpoint is configured so chat reports itself
// unavailable instead of failing every request
func newLLM(cfg *config.Config, log *zap.Logger) chat.LLM {
	if !cfg.ChatEnabled() {
		log.Warn("LLM_BASE_URL not set, chat disabled until POST /api/config/ai")
		return nil
	}
	return adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID, llmOptions(cfg)...)
}

func llmOptions(cfg *config.Config) []adapter.Option {
	return []adapter.Option{
		adapter.WithTemperature(float32(cfg.LLMTemperature)),
		adapter.WithMaxTokens(cfg.LLMMaxTokens),
	}
}
