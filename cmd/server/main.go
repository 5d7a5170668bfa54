package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/auth"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/config"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/database"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/discord"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/logging"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/poller"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/server"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/store"
)

func main() {
	// .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			log.Printf("WARNING: dev seed failed: %v", err)
		}
	}

	timers := store.NewTimerStore(db)
	profiles := store.NewProfileStore(db, cfg.DefaultTZ)
	dmClient := discord.NewClient(discord.DefaultAPIBase, cfg.DiscordBotToken)

	auth.InitProviders(cfg)

	api := &server.API{
		Timers:   timers,
		Profiles: profiles,
		Notifier: dmClient,
		Cfg:      cfg,
		Log:      logger,
	}
	router := server.NewRouter(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The poller is the only long-lived background task; it stops with the
	// process, there is no other termination condition.
	p := poller.New(
		timers,
		profiles,
		dmClient,
		time.Duration(cfg.PollSeconds)*time.Second,
		cfg.PollLimit,
		cfg.DefaultTZ,
		logger,
	)
	go p.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}
}
