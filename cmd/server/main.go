// Package main is the entry point for the tic-tac-toe promo server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tictactoe-promo/internal/bot"
	"tictactoe-promo/internal/config"
	"tictactoe-promo/internal/game"
	"tictactoe-promo/internal/httpapi"
	"tictactoe-promo/internal/notify"
	"tictactoe-promo/internal/pkg/db"
	"tictactoe-promo/internal/pkg/lock"
	"tictactoe-promo/internal/pkg/ratelimit"
	"tictactoe-promo/internal/repository"
	"tictactoe-promo/internal/service"
	"tictactoe-promo/internal/settings"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	sessionRepo := repository.NewSessionRepository(dbPool.Pool)
	voucherRepo := repository.NewVoucherRepository(dbPool.Pool)
	settingsRepo := repository.NewSettingsRepository(dbPool.Pool)

	settingsProvider := settings.NewProvider(cfg, settingsRepo)

	var notifier service.Notifier = notify.Noop{}
	var dispatcher *notify.Dispatcher
	if cfg.Telegram.Token != "" {
		sender, err := notify.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.SendTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram sender")
		}
		dispatcher = notify.NewDispatcher(sender, cfg.Telegram.ChatUsername)
		notifier = dispatcher
	} else {
		log.Warn().Msg("telegram.token is empty, notifications are disabled")
	}

	strategies := game.NewDefaultRegistry()
	log.Info().
		Int("strategy_count", strategies.Count()).
		Interface("difficulties", strategies.Difficulties()).
		Msg("Opponent strategies registered")

	voucherService := service.NewVoucherService(voucherRepo)
	gameService := service.NewGameService(
		sessionRepo,
		voucherService,
		strategies,
		settingsProvider,
		notifier,
		lock.NewKeyLock(),
	)
	operatorService := service.NewOperatorService(sessionRepo, sessionRepo, voucherRepo, settingsProvider)

	opts := httpapi.Options{
		NewGamePerMinute:   cfg.RateLimit.NewGamePerMinute,
		GiftPromoPerMinute: cfg.RateLimit.GiftPromoPerMinute,
		Health:             dbPool.HealthCheck,
	}
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = ratelimit.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		opts.Limiter = ratelimit.New(redisClient)
	} else {
		log.Info().Msg("redis.addr is empty, rate limiting is disabled")
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewServer(gameService, opts),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	var operatorBot *bot.Bot
	if cfg.Telegram.Poll && cfg.Telegram.Token != "" {
		operatorBot, err = bot.New(&bot.Dependencies{Config: cfg, Operator: operatorService})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create operator bot")
		}
		go operatorBot.Start()
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if operatorBot != nil {
		operatorBot.Stop()
	}
	if dispatcher != nil {
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Pending notifications dropped on shutdown")
		}
	}

	log.Info().Msg("Server stopped gracefully")
}

// setupLogger applies log.level and log.format.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
