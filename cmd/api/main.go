package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/webhook-chat/backend/internal/config"
	"github.com/zhouzirui/webhook-chat/backend/internal/handler"
	"github.com/zhouzirui/webhook-chat/backend/internal/handler/webhook"
	"github.com/zhouzirui/webhook-chat/backend/internal/logging"
	"github.com/zhouzirui/webhook-chat/backend/internal/model/starter"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/ai"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
	"github.com/zhouzirui/webhook-chat/backend/internal/storage/kv"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("webhook chat backend exited")
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Log)

	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	store, err := kv.Open(ctx, storageOptions(cfg.Storage))
	if err != nil {
		return fmt.Errorf("failed to open %s settings storage: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	settingsService := settings.NewService(store, cfg.Widget.DefaultSettings())
	chatService := chat.NewService()
	dispatcher := dispatch.New(dispatch.Options{
		MaxMessageLength: cfg.Widget.MaxMessageLength,
		ClientInfo:       cfg.Widget.ClientInfo,
	})
	controller := widget.New(ctx, dispatcher, settingsService, chatService, widget.Options{
		ThinkingInterval: cfg.Widget.ThinkingInterval,
	})

	// Initialize AI service for the local webhook
	var replier webhook.Replier
	if cfg.Widget.DevWebhookEnabled {
		if cfg.AI.Enabled() {
			aiService, err := ai.NewService(ctx, cfg.AI)
			if err != nil {
				log.Warn().Err(err).Msg("failed to initialize AI service, dev webhook will echo")
			} else {
				replier = aiService
				log.Info().Str("model", cfg.AI.Model).Msg("AI service initialized successfully")
			}
		} else {
			log.Info().Msg("Ark credentials not configured, dev webhook will echo")
		}
	}

	router := handler.NewRouter(handler.Dependencies{
		Controller: controller,
		Settings:   settingsService,
		Starters:   starter.NewMemoryStore(starter.Seed()),
		DevWebhook: cfg.Widget.DevWebhookEnabled,
		Replier:    replier,
	})

	return startServer(ctx, cfg.Server, router)
}

func storageOptions(c config.StorageConfig) kv.Options {
	return kv.Options{
		Driver:     c.Driver,
		SQLitePath: c.SQLitePath,
		Redis: kv.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		},
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("webhook chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
