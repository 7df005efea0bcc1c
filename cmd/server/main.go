package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"healthmate.app/health-assistant/internal/api"
	"healthmate.app/health-assistant/internal/config"
	"healthmate.app/health-assistant/internal/core"
	"healthmate.app/health-assistant/internal/logger"
	"healthmate.app/health-assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	if err := os.MkdirAll(config.AppConfig.DataDir, 0o755); err != nil {
		logger.Log.WithError(err).Fatal("Failed to create data directory")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(filepath.Join(config.AppConfig.DataDir, config.AppConfig.DatabaseURL))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer dbStore.Close()

	// Initialize services
	llmService := core.NewLLMService(
		config.AppConfig.PromptID,
		config.AppConfig.PromptVersion,
		config.AppConfig.SystemPrompt,
		config.AppConfig.GatewayTimeout,
	)
	docService := core.NewDocumentService(
		filepath.Join(config.AppConfig.DataDir, "uploads"),
		config.AppConfig.MaxUploadBytes,
		config.AppConfig.ExcerptBudget,
	)
	sessions := core.NewSessionStore(config.AppConfig.TranscriptCap)
	chatService := core.NewChatService(
		dbStore,
		llmService,
		docService,
		sessions,
		config.AppConfig.HistoryWindow,
		config.AppConfig.ExcerptBudget,
	)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, chatService, docService, sessions, config.AppConfig.MaxUploadBytes)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.AppConfig.GatewayTimeout + 30*time.Second, // model calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Log.WithField("addr", serverAddr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Could not listen")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Log.Info("Server exiting gracefully")
}
