package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Widget.MaxMessageLength)
	assert.Equal(t, 30, cfg.Widget.APITimeout)
	assert.Equal(t, 2*time.Second, cfg.Widget.ThinkingInterval)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("WEBHOOK_URL", "http://hooks.local/chat")
	t.Setenv("MAX_MESSAGE_LENGTH", "5000")
	t.Setenv("API_TIMEOUT", "120")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "http://hooks.local/chat", cfg.Widget.WebhookURL)
	assert.Equal(t, 5000, cfg.Widget.MaxMessageLength)
	assert.Equal(t, 120, cfg.Widget.APITimeout)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
}

func TestLoadRejectsTimeoutOutOfRange(t *testing.T) {
	for _, raw := range []string{"4", "121"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("API_TIMEOUT", raw)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "etcd")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsPortWithSpace(t *testing.T) {
	t.Setenv("PORT", "80 80")
	_, err := Load()
	require.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
	assert.False(t, AIConfig{Model: "m", AccessKey: "a"}.Enabled())
}
