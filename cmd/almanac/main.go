package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fernhollow/almanac/internal/ai"
	"github.com/fernhollow/almanac/internal/conflict"
	"github.com/fernhollow/almanac/internal/database"
	"github.com/fernhollow/almanac/internal/logging"
	"github.com/fernhollow/almanac/internal/server"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("ALMANAC_LOG_LEVEL"))

	port := envDefault("ALMANAC_PORT", "8080")
	dbPath := envDefault("ALMANAC_DB_PATH", "almanac.db")

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	generator := ai.NewClient(ai.Config{
		BaseURL: envDefault("ALMANAC_AI_URL", "https://api.openai.com/v1/chat/completions"),
		APIKey:  os.Getenv("ALMANAC_AI_KEY"),
		Model:   envDefault("ALMANAC_AI_MODEL", "gpt-4o-mini"),
	})

	conflictOpts := conflict.DefaultOptions()
	if v := os.Getenv("ALMANAC_BUFFER_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			conflictOpts.BufferMinutes = n
		}
	}

	defaultDuration := time.Hour
	if v := os.Getenv("ALMANAC_DEFAULT_DURATION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			defaultDuration = time.Duration(n) * time.Hour
		}
	}

	cfg := server.Config{
		AccessCodeHash:  os.Getenv("ALMANAC_ACCESS_CODE_HASH"),
		DefaultTimezone: envDefault("ALMANAC_TIMEZONE", "UTC"),
		DefaultDuration: defaultDuration,
		Conflict:        conflictOpts,
	}

	srv := server.New(db, generator, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // proposals wait on the model API
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Almanac running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
