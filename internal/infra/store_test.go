package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// newTestStore creates an encrypted store in a temp directory for testing.
func newTestStore(t *testing.T) (*EncryptedStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedStore(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store, dataDir
}

func TestEncryptedStore_LoadEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Stored(ctx)
	require.NoError(t, err)
	assert.False(t, stored)

	cfg, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.FocusConfiguration{}, cfg)
}

func TestEncryptedStore_SaveLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	enabled := false
	cfg := &domain.FocusConfiguration{
		FocusMode:         domain.ModeAI,
		CurrentFocusTopic: "learning go",
		GeminiAPIKey:      "AIzaSyTestKey12345",
		AllowedDomains: []domain.AllowEntry{
			domain.AllowString("go.dev"),
			{Name: "Tour", URL: "https://go.dev/tour/"},
		},
		BlockedGroups: map[string]domain.BlockGroup{
			"SocialMedia": {Enabled: true, Items: []domain.BlockItem{
				domain.DomainItem("facebook.com"),
				{Name: "X", Host: "x.com", Enabled: &enabled},
			}},
		},
		WarnMinutes:      3,
		HardBlockMinutes: 7,
		SessionBlocked:   map[string]bool{"https://youtube.com/watch?v=1": true},
	}

	require.NoError(t, store.Save(ctx, cfg))

	stored, err := store.Stored(ctx)
	require.NoError(t, err)
	assert.True(t, stored)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEncryptedStore_APIKeyKeptOutOfConfigDocument(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.FocusConfiguration{GeminiAPIKey: "secret-key-value"}))

	var raw string
	require.NoError(t, store.db.QueryRow(`SELECT value FROM config WHERE key = ?`, configKey).Scan(&raw))
	assert.NotContains(t, raw, "secret-key-value")

	// Clearing the key removes the secret row.
	require.NoError(t, store.Save(ctx, &domain.FocusConfiguration{}))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.GeminiAPIKey)
}

func TestEncryptedStore_Meta(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	v, err := store.GetMeta(ctx, "geminiModelCache")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.SetMeta(ctx, "geminiModelCache", "gemini-1.5-flash"))
	require.NoError(t, store.SetMeta(ctx, "geminiModelCache", "gemini-2.0-flash"))

	v, err = store.GetMeta(ctx, "geminiModelCache")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", v)
}

func TestEncryptedStore_Registry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	d, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)

	started := time.Unix(1700000000, 0)
	require.NoError(t, store.Register(ctx, domain.Daemon{PID: 1111, Addr: "127.0.0.1:1", StartedAt: started, AppVersion: "0.1.0"}))
	require.NoError(t, store.Register(ctx, domain.Daemon{PID: 2222, Addr: "127.0.0.1:7777", StartedAt: started, AppVersion: "0.2.0"}))

	d, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2222, d.PID)
	assert.Equal(t, "127.0.0.1:7777", d.Addr)
	assert.Equal(t, "0.2.0", d.AppVersion)
	assert.True(t, started.Equal(d.StartedAt))

	require.NoError(t, store.Clear(ctx))
	d, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestEncryptedStore_Persistence(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)
	ctx := context.Background()

	store, err := NewEncryptedStore(dataDir, key)
	require.NoError(t, err)
	require.NoError(t, store.SetMeta(ctx, "k", "v"))
	require.NoError(t, store.Close())

	reopened, err := NewEncryptedStore(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.GetMeta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestEncryptedStore_WrongKey(t *testing.T) {
	dataDir := t.TempDir()
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	store, err := NewEncryptedStore(dataDir, key1)
	require.NoError(t, err)
	require.NoError(t, store.SetMeta(context.Background(), "k", "v"))
	require.NoError(t, store.Close())

	_, err = NewEncryptedStore(dataDir, key2)
	assert.Error(t, err, "opening with the wrong key must fail")
}
