package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/webhook-chat/backend/internal/config"
	"github.com/zhouzirui/webhook-chat/backend/internal/logging"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
	"github.com/zhouzirui/webhook-chat/backend/internal/storage/kv"
)

func main() {
	var (
		sessionID string
		webhook   string
		logFile   string
	)

	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with the configured webhook from the terminal",
		Long: `chatcli drives the same widget controller as the HTTP backend, in-process.
Messages are posted to the webhook from the persisted settings (or WEBHOOK_URL),
and replies are shown as they arrive. Enter sends, Ctrl+K clears, Ctrl+C quits.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), sessionID, webhook, logFile)
		},
	}

	rootCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Resume or name a session (default: new session)")
	rootCmd.Flags().StringVarP(&webhook, "webhook", "w", "", "Webhook URL to save before starting")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of discarding them")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, sessionID, webhook, logFile string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.SetupWriter(cfg.Log, logOut)

	store, err := kv.Open(ctx, kv.Options{
		Driver:     cfg.Storage.Driver,
		SQLitePath: cfg.Storage.SQLitePath,
		Redis: kv.RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.RedisPrefix,
		},
	})
	if err != nil {
		return fmt.Errorf("open settings storage: %w", err)
	}
	defer store.Close()

	settingsService := settings.NewService(store, cfg.Widget.DefaultSettings())
	if webhook != "" {
		current, err := settingsService.Load(ctx)
		if err != nil {
			return err
		}
		current.EndpointURL = webhook
		if _, err := settingsService.Save(ctx, current); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controller := widget.New(ctx, dispatch.New(dispatch.Options{
		MaxMessageLength: cfg.Widget.MaxMessageLength,
		ClientInfo:       cfg.Widget.ClientInfo,
	}), settingsService, chat.NewService(), widget.Options{
		ThinkingInterval: cfg.Widget.ThinkingInterval,
	})

	session, err := controller.Open(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	events, unsubscribe := controller.Subscribe(session.ID)
	defer unsubscribe()

	transcript, err := controller.Transcript(ctx, session.ID)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newModel(ctx, controller, session.ID, transcript, events))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
