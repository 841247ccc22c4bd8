package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	settingsModel "github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/storage/kv"
)

// Persistence keys, kept identical to the browser widget's localStorage keys.
const (
	KeyWebhookURL = "chatbot_webhook_url"
	KeyAPITimeout = "chatbot_api_timeout"
)

// Service merges persisted widget settings over configured defaults.
type Service struct {
	store    kv.Store
	defaults settingsModel.Settings
}

// NewService wraps store; defaults are returned for anything not persisted.
func NewService(store kv.Store, defaults settingsModel.Settings) *Service {
	return &Service{store: store, defaults: defaults}
}

// Defaults returns the configured settings.
func (s *Service) Defaults() settingsModel.Settings {
	return s.defaults
}

// Load returns persisted values merged over the defaults. A persisted
// timeout that does not parse or falls outside the allowed window is
// ignored in favour of the default.
func (s *Service) Load(ctx context.Context) (settingsModel.Settings, error) {
	current := s.defaults

	url, ok, err := s.store.Get(ctx, KeyWebhookURL)
	if err != nil {
		return s.defaults, fmt.Errorf("load %s: %w", KeyWebhookURL, err)
	}
	if ok && strings.TrimSpace(url) != "" {
		current.EndpointURL = url
	}

	rawTimeout, ok, err := s.store.Get(ctx, KeyAPITimeout)
	if err != nil {
		return s.defaults, fmt.Errorf("load %s: %w", KeyAPITimeout, err)
	}
	if ok {
		timeout, convErr := strconv.Atoi(strings.TrimSpace(rawTimeout))
		switch {
		case convErr != nil:
			log.Warn().Str("component", "settings").Str("value", rawTimeout).Msg("ignoring unparsable persisted timeout")
		case timeout < settingsModel.MinTimeoutSeconds || timeout > settingsModel.MaxTimeoutSeconds:
			log.Warn().Str("component", "settings").Int("value", timeout).Msg("ignoring out of range persisted timeout")
		default:
			current.TimeoutSeconds = timeout
		}
	}

	return current, nil
}

// Save validates and persists next. Nothing is written when validation fails.
func (s *Service) Save(ctx context.Context, next settingsModel.Settings) (settingsModel.Settings, error) {
	next.EndpointURL = strings.TrimSpace(next.EndpointURL)
	if err := next.Validate(); err != nil {
		return settingsModel.Settings{}, err
	}

	// Both keys land together so a failed save leaves the old record intact.
	if err := s.store.SetMany(ctx, map[string]string{
		KeyWebhookURL: next.EndpointURL,
		KeyAPITimeout: strconv.Itoa(next.TimeoutSeconds),
	}); err != nil {
		return settingsModel.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	log.Info().Str("component", "settings").Str("endpoint", next.EndpointURL).Int("timeoutSeconds", next.TimeoutSeconds).Msg("settings saved")
	return next, nil
}

// Reset clears persisted values and returns the defaults.
func (s *Service) Reset(ctx context.Context) (settingsModel.Settings, error) {
	if err := s.store.Delete(ctx, KeyWebhookURL, KeyAPITimeout); err != nil {
		return settingsModel.Settings{}, fmt.Errorf("reset settings: %w", err)
	}
	log.Info().Str("component", "settings").Msg("settings reset to defaults")
	return s.defaults, nil
}
