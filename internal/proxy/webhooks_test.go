package proxy

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxybot/internal/database/models"
	"proxybot/internal/types"
)

func storedCreds(channelID, guildID, webhookID, token string) models.WebhookCredentials {
	return models.WebhookCredentials{
		ChannelID:    channelID,
		GuildID:      guildID,
		WebhookID:    webhookID,
		WebhookToken: token,
	}
}

func newTestManager() (*WebhookManager, *fakePlatform, *fakeStore) {
	platform := newFakePlatform()
	store := newFakeStore()
	return NewWebhookManager(platform, store, time.Hour), platform, store
}

// backdateValidation pushes a cached entry's last-validated timestamp out
// of the sweep window so the next Acquire revalidates it.
func backdateValidation(m *WebhookManager, channelID, guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.cache[cacheKey(channelID, guildID)]; ok {
		entry.checkedAt = time.Now().Add(-2 * time.Hour)
	}
}

func TestAcquireCreatesAndCaches(t *testing.T) {
	manager, platform, store := newTestManager()

	webhook, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Equal(t, "hook-1", webhook.ID)
	assert.Equal(t, 1, platform.createCalls)
	assert.Equal(t, 1, manager.CachedCount())

	// Credentials are persisted for the next process lifetime.
	creds, err := store.GetWebhook("chan1", "guild1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "hook-1", creds.WebhookID)

	// Second acquisition reuses the cached handle.
	again, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Equal(t, webhook.ID, again.ID)
	assert.Equal(t, 1, platform.createCalls)
}

func TestAcquireMissingPermissions(t *testing.T) {
	manager, platform, _ := newTestManager()
	platform.hasPerms = false

	_, err := manager.Acquire("chan1", "guild1")
	assert.ErrorIs(t, err, types.ErrMissingPermissions)
	assert.Zero(t, platform.createCalls)

	// The user gets told what to fix.
	require.Len(t, platform.notices, 1)
	assert.Contains(t, platform.notices[0], "Manage Webhooks")
}

func TestAcquireUsesPersistedCredentials(t *testing.T) {
	manager, platform, store := newTestManager()
	require.NoError(t, store.SaveWebhook(storedCreds("chan1", "guild1", "hook-old", "token-old")))

	webhook, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Equal(t, "hook-old", webhook.ID)
	assert.Equal(t, "token-old", webhook.Token)
	assert.Zero(t, platform.createCalls)
	assert.Equal(t, 1, manager.CachedCount())
}

func TestAcquireRecreatesAfterConfirmedDeletion(t *testing.T) {
	manager, platform, store := newTestManager()

	first, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)

	// The platform now reports the webhook deleted.
	platform.fetchErr[first.ID] = fmt.Errorf("validate: %w", types.ErrWebhookGone)
	backdateValidation(manager, "chan1", "guild1")

	second, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, platform.createCalls)

	// The stale persisted record was replaced too.
	creds, err := store.GetWebhook("chan1", "guild1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, second.ID, creds.WebhookID)
}

func TestAcquireOptimisticOnTransientValidationError(t *testing.T) {
	manager, platform, _ := newTestManager()

	first, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)

	// A timeout is not a deletion; the cached handle stays usable.
	platform.fetchErr[first.ID] = errors.New("timeout")
	backdateValidation(manager, "chan1", "guild1")

	second, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, platform.createCalls)
}

func TestSweepEvictsGoneWebhooks(t *testing.T) {
	manager, platform, _ := newTestManager()

	webhook, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	_, err = manager.Acquire("chan2", "guild1")
	require.NoError(t, err)
	require.Equal(t, 2, manager.CachedCount())

	platform.fetchErr[webhook.ID] = fmt.Errorf("validate: %w", types.ErrWebhookGone)
	manager.sweep()

	assert.Equal(t, 1, manager.CachedCount())
}

func TestStartStopTerminatesSweep(t *testing.T) {
	manager, _, _ := newTestManager()
	manager.Start()
	done := make(chan struct{})
	go func() {
		manager.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestAcquireSkipsRevalidationInsideWindow(t *testing.T) {
	manager, platform, _ := newTestManager()

	_, err := manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Zero(t, platform.fetchCalls)

	// Freshly validated handles are returned without a platform round trip.
	_, err = manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Zero(t, platform.fetchCalls)

	// Once the window lapses the handle gets checked again.
	backdateValidation(manager, "chan1", "guild1")
	_, err = manager.Acquire("chan1", "guild1")
	require.NoError(t, err)
	assert.Equal(t, 1, platform.fetchCalls)
}

func TestAcquireSerializedAcrossEviction(t *testing.T) {
	manager, platform, _ := newTestManager()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	platform.createHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := manager.Acquire("chan1", "guild1")
		assert.NoError(t, err)
	}()

	// The sweep can evict while an acquisition is mid-creation. The second
	// acquisition must queue behind the same channel lock, not create a
	// second webhook.
	<-entered
	manager.evict(cacheKey("chan1", "guild1"))

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, err := manager.Acquire("chan1", "guild1")
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	<-firstDone
	<-secondDone
	assert.Equal(t, 1, platform.createCalls)
	assert.Equal(t, 1, manager.CachedCount())
}

func TestAcquireConcurrentSingleCreation(t *testing.T) {
	manager, platform, _ := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Acquire("chan1", "guild1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, platform.createCalls)
	assert.Equal(t, 1, manager.CachedCount())
}
