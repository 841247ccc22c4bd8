package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settingsModel "github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/storage/kv"
)

var defaults = settingsModel.Settings{EndpointURL: "https://default.example/hook", TimeoutSeconds: 30}

func TestLoadReturnsDefaultsWhenNothingPersisted(t *testing.T) {
	svc := settings.NewService(kv.NewMemoryStore(), defaults)

	got, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestLoadMergesPersistedValues(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, settings.KeyWebhookURL, "https://custom.example/hook"))

	svc := settings.NewService(store, defaults)
	got, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://custom.example/hook", got.EndpointURL)
	assert.Equal(t, 30, got.TimeoutSeconds)
}

func TestLoadIgnoresBadPersistedTimeout(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"abc", "4", "500"} {
		store := kv.NewMemoryStore()
		require.NoError(t, store.Set(ctx, settings.KeyAPITimeout, raw))

		got, err := settings.NewService(store, defaults).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 30, got.TimeoutSeconds, "persisted %q", raw)
	}
}

func TestSaveBoundaries(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(kv.NewMemoryStore(), defaults)

	for _, timeout := range []int{4, 121} {
		_, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: "https://x.example", TimeoutSeconds: timeout})
		var verr *settingsModel.ValidationError
		require.True(t, errors.As(err, &verr), "timeout %d", timeout)
	}

	for _, timeout := range []int{5, 120} {
		saved, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: "https://x.example", TimeoutSeconds: timeout})
		require.NoError(t, err, "timeout %d", timeout)

		got, err := svc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, saved, got)
	}
}

func TestSaveRejectsEmptyURLWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc := settings.NewService(store, defaults)

	_, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: "   ", TimeoutSeconds: 30})
	require.Error(t, err)

	_, ok, err := store.Get(ctx, settings.KeyWebhookURL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSavePersistsStringifiedTimeout(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc := settings.NewService(store, defaults)

	_, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: " https://x.example/hook ", TimeoutSeconds: 45})
	require.NoError(t, err)

	raw, ok, err := store.Get(ctx, settings.KeyAPITimeout)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "45", raw)

	url, _, err := store.Get(ctx, settings.KeyWebhookURL)
	require.NoError(t, err)
	assert.Equal(t, "https://x.example/hook", url)
}

func TestResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(kv.NewMemoryStore(), defaults)

	_, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: "https://x.example", TimeoutSeconds: 60})
	require.NoError(t, err)

	reset, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, reset)

	got, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestLoadSurfacesStoreErrors(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Close())

	got, err := settings.NewService(store, defaults).Load(context.Background())
	assert.ErrorIs(t, err, kv.ErrClosed)
	assert.Equal(t, defaults, got)
}

// diskFullStore refuses any write that touches the timeout key.
type diskFullStore struct {
	*kv.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (s diskFullStore) Set(ctx context.Context, key, value string) error {
	if key == settings.KeyAPITimeout {
		return errDiskFull
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s diskFullStore) SetMany(ctx context.Context, values map[string]string) error {
	if _, ok := values[settings.KeyAPITimeout]; ok {
		return errDiskFull
	}
	return s.MemoryStore.SetMany(ctx, values)
}

func TestSaveFailureLeavesPreviousSettings(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(diskFullStore{kv.NewMemoryStore()}, defaults)

	_, err := svc.Save(ctx, settingsModel.Settings{EndpointURL: "https://new.example/hook", TimeoutSeconds: 60})
	require.ErrorIs(t, err, errDiskFull)

	got, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}
