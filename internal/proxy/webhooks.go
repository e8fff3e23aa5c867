package proxy

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"proxybot/internal/database/models"
	"proxybot/internal/types"
)

const permissionDiagnostic = "❌ I don't have the required permissions to proxy correctly. " +
	"Please check if I have **Manage Messages** & **Manage Webhooks** permissions!"

// WebhookManager owns the channel-scoped surrogate senders: it caches live
// handles, persists their credentials, serializes creation per channel and
// periodically evicts handles the platform reports gone.
type WebhookManager struct {
	platform types.Platform
	store    types.Store

	mu    sync.Mutex
	cache map[string]*webhookEntry
	locks map[string]*sync.Mutex

	sweepInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

type webhookEntry struct {
	webhook   *types.Webhook
	checkedAt time.Time
}

// NewWebhookManager creates a manager. Call Start to launch the background
// sweep and Stop on shutdown.
func NewWebhookManager(platform types.Platform, store types.Store, sweepInterval time.Duration) *WebhookManager {
	return &WebhookManager{
		platform:      platform,
		store:         store,
		cache:         make(map[string]*webhookEntry),
		locks:         make(map[string]*sync.Mutex),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func cacheKey(channelID, guildID string) string {
	return fmt.Sprintf("%s_%s", guildID, channelID)
}

// channelLock returns the mutex serializing webhook acquisition for one
// channel, creating it lazily.
func (m *WebhookManager) channelLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

func (m *WebhookManager) getCached(key string) (*types.Webhook, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.cache[key]; ok {
		return entry.webhook, entry.checkedAt
	}
	return nil, time.Time{}
}

func (m *WebhookManager) putCached(key string, webhook *types.Webhook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = &webhookEntry{webhook: webhook, checkedAt: time.Now()}
}

// touch refreshes the last-validated timestamp after a successful check.
func (m *WebhookManager) touch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.cache[key]; ok {
		entry.checkedAt = time.Now()
	}
}

// evict drops a cached handle. The channel lock entry stays: an in-flight
// Acquire may hold it, and dropping it would let a second acquisition run
// concurrently and double-create the webhook.
func (m *WebhookManager) evict(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
}

// Acquire returns a live webhook for the channel, creating one if needed.
// Returns types.ErrMissingPermissions after posting a user-visible
// diagnostic when the bot lacks the required capabilities.
func (m *WebhookManager) Acquire(channelID, guildID string) (*types.Webhook, error) {
	ok, err := m.platform.HasProxyPermissions(channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to check channel permissions: %v", err)
	}
	if !ok {
		log.Printf("❌ Missing proxy permissions in channel %s", channelID)
		if sendErr := m.platform.SendMessage(channelID, permissionDiagnostic); sendErr != nil {
			log.Printf("⚠️ Failed to send permission diagnostic: %v", sendErr)
		}
		return nil, types.ErrMissingPermissions
	}

	key := cacheKey(channelID, guildID)
	lock := m.channelLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Cache hit: validate, but only a confirmed deletion evicts. A timeout
	// or rate limit returns the cached handle so the send can still go out.
	if webhook, checkedAt := m.getCached(key); webhook != nil {
		// Validated inside the sweep window; skip the round trip.
		if time.Since(checkedAt) < m.sweepInterval {
			return webhook, nil
		}
		err := m.platform.FetchWebhook(webhook)
		if err == nil {
			m.touch(key)
			return webhook, nil
		}
		if !errors.Is(err, types.ErrWebhookGone) {
			log.Printf("⚠️ Webhook validation failed for channel %s, using cached handle: %v", channelID, err)
			return webhook, nil
		}
		m.mu.Lock()
		delete(m.cache, key)
		m.mu.Unlock()
	}

	// Cache miss: try persisted credentials before creating a new webhook.
	creds, err := m.store.GetWebhook(channelID, guildID)
	if err != nil {
		log.Printf("⚠️ Failed to load webhook credentials for channel %s: %v", channelID, err)
	}
	if creds != nil {
		webhook := &types.Webhook{
			ID:        creds.WebhookID,
			Token:     creds.WebhookToken,
			ChannelID: channelID,
			GuildID:   guildID,
		}
		err := m.platform.FetchWebhook(webhook)
		if err == nil || !errors.Is(err, types.ErrWebhookGone) {
			if err != nil {
				log.Printf("⚠️ Stored webhook validation failed for channel %s, using it anyway: %v", channelID, err)
			}
			m.putCached(key, webhook)
			return webhook, nil
		}
		// Confirmed deleted on the platform side; purge the stale record.
		if delErr := m.store.DeleteWebhook(channelID, guildID); delErr != nil {
			log.Printf("⚠️ Failed to purge stale webhook credentials: %v", delErr)
		}
	}

	webhook, err := m.platform.CreateWebhook(channelID, guildID)
	if err != nil {
		if errors.Is(err, types.ErrMissingPermissions) {
			if sendErr := m.platform.SendMessage(channelID, permissionDiagnostic); sendErr != nil {
				log.Printf("⚠️ Failed to send permission diagnostic: %v", sendErr)
			}
			return nil, types.ErrMissingPermissions
		}
		return nil, fmt.Errorf("failed to create webhook: %v", err)
	}

	if err := m.store.SaveWebhook(models.WebhookCredentials{
		ChannelID:    channelID,
		GuildID:      guildID,
		WebhookID:    webhook.ID,
		WebhookToken: webhook.Token,
	}); err != nil {
		// The live handle still works; persistence catches up next time.
		log.Printf("⚠️ Failed to persist webhook credentials for channel %s: %v", channelID, err)
	}
	m.putCached(key, webhook)
	log.Printf("✅ Created webhook for channel %s", channelID)
	return webhook, nil
}

// Start launches the periodic sweep that validates cached webhooks and
// evicts the ones the platform reports gone.
func (m *WebhookManager) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweep and waits for it to exit.
func (m *WebhookManager) Stop() {
	close(m.stop)
	<-m.done
}

// sweep validates every cached webhook once. Individual failures never
// abort the rest of the pass.
func (m *WebhookManager) sweep() {
	m.mu.Lock()
	snapshot := make(map[string]*types.Webhook, len(m.cache))
	for key, entry := range m.cache {
		snapshot[key] = entry.webhook
	}
	m.mu.Unlock()

	evicted := 0
	for key, webhook := range snapshot {
		err := m.platform.FetchWebhook(webhook)
		if err == nil {
			m.touch(key)
			continue
		}
		if errors.Is(err, types.ErrWebhookGone) {
			m.evict(key)
			evicted++
			continue
		}
		log.Printf("⚠️ Webhook sweep validation failed for %s: %v", key, err)
	}
	if evicted > 0 {
		log.Printf("🔄 Webhook sweep evicted %d stale entries", evicted)
	}
}

// CachedCount returns the number of live webhook handles.
func (m *WebhookManager) CachedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
