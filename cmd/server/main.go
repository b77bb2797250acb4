package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/api"
	"github.com/cheolwanpark/leadsignal/engine/internal/campaign"
	"github.com/cheolwanpark/leadsignal/engine/internal/config"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/email"
	"github.com/cheolwanpark/leadsignal/engine/internal/llm"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
	"github.com/cheolwanpark/leadsignal/engine/internal/scheduler"
	"github.com/cheolwanpark/leadsignal/engine/internal/scoring"
	"github.com/cheolwanpark/leadsignal/engine/internal/source"
	"github.com/cheolwanpark/leadsignal/engine/internal/usage"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting engine service...")
	log.Printf("Configuration: DB=%s, Port=%d, LogLevel=%s, RedditProvider=%s, LLMProvider=%s",
		cfg.DBPath, cfg.Port, cfg.LogLevel, cfg.RedditAPIProvider, cfg.LLMProvider)

	database, err := db.Init(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()
	log.Println("Database initialized")

	ctx := context.Background()

	llmClient, err := llm.Factory(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	creds := config.NewCredentialStore(database.DB)
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	redditSource, err := source.Factory(cfg, creds, limiter)
	if err != nil {
		log.Fatalf("Failed to initialize Reddit source: %v", err)
	}

	var sender email.Sender
	if cfg.SESAccessKey != "" && cfg.SESFromAddr != "" {
		sender = email.NewSESSender(cfg.SESAccessKey, cfg.SESSecretKey, cfg.SESRegion, cfg.SESFromAddr)
	} else {
		slog.Warn("no SES credentials configured, falling back to a no-op email sender")
		sender = &email.NoopSender{}
	}

	usageCounter := usage.New(database)
	scoringSvc := scoring.New(llmClient, usageCounter, cfg.DefaultBatchSize, cfg.MaxConcurrent)
	campaignSvc := campaign.New(database, llmClient)
	engine := pollengine.New(database, redditSource, scoringSvc, sender, usageCounter, cfg.MinRelevancyScore, cfg.AutoSuggestionThreshold)

	sched := scheduler.New(database, engine, cfg.EnableScheduledPolling, cfg.PollTimesStarter, cfg.PollTimesPremium)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Println("Scheduler started")

	router := api.SetupRouter(database, campaignSvc, engine, sched)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}

	case sig := <-shutdown:
		log.Printf("Received signal %v, starting graceful shutdown...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			server.Close()
		}

		schedulerCtx, schedulerCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer schedulerCancel()

		if err := sched.Stop(schedulerCtx); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}

		log.Println("Graceful shutdown complete")
	}
}
