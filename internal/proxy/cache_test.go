package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxybot/internal/database/models"
)

func seedProfile(store *fakeStore, userID string) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.profiles[userID] = &models.Profile{
		UserID: userID,
		System: models.System{Tag: "| Sys", Avatar: "https://example.com/system.png"},
		Alters: map[string]models.Alter{
			"Alex": {DisplayName: "Alexander", Proxy: "A: TEXT", CreatedAt: base},
			"Sam":  {DisplayName: "Sam", Proxy: "TEXT -s", CreatedAt: base.Add(time.Hour)},
			"Quiet": {
				// No proxy tag; reachable via autoproxy only.
				CreatedAt: base.Add(2 * time.Hour),
			},
		},
	}
}

func TestCacheRebuild(t *testing.T) {
	store := newFakeStore()
	seedProfile(store, "user1")
	store.autoproxy["user1_guild1"] = models.AutoproxySettings{
		Enabled: true,
		Mode:    models.AutoproxyModeLatch,
	}

	cache := NewCache(store)
	cache.Rebuild()

	entry := cache.Lookup("user1")
	require.NotNil(t, entry)
	assert.Equal(t, "| Sys", entry.SystemTag)
	assert.Equal(t, "https://example.com/system.png", entry.SystemAvatar)
	assert.Len(t, entry.Alters, 3)

	// Only tagged alters compile into patterns, in creation order.
	require.Len(t, entry.Patterns, 2)
	assert.Equal(t, "Alex", entry.Patterns[0].Name)
	assert.Equal(t, "A:", entry.Patterns[0].Prefix)
	assert.Equal(t, "Sam", entry.Patterns[1].Name)
	assert.Equal(t, "-s", entry.Patterns[1].Suffix)

	// Display name falls back to the map key.
	assert.Equal(t, "Alexander", entry.Alters["Alex"].DisplayName)
	assert.Equal(t, "Quiet", entry.Alters["Quiet"].DisplayName)

	rule := cache.LookupAutoproxy("user1", "guild1")
	assert.True(t, rule.Enabled)
	assert.Equal(t, models.AutoproxyModeLatch, rule.Mode)
}

func TestCacheRebuildKeepsStateOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	seedProfile(store, "user1")

	cache := NewCache(store)
	cache.Rebuild()
	require.NotNil(t, cache.Lookup("user1"))

	store.failAll = true
	cache.Rebuild()

	// Stale matches beat no matches at all.
	assert.NotNil(t, cache.Lookup("user1"))
}

func TestCacheLookupUnknownUser(t *testing.T) {
	cache := NewCache(newFakeStore())
	cache.Rebuild()
	assert.Nil(t, cache.Lookup("nobody"))
}

func TestCacheLookupAutoproxyDefault(t *testing.T) {
	cache := NewCache(newFakeStore())
	cache.Rebuild()

	rule := cache.LookupAutoproxy("user1", "guild1")
	assert.False(t, rule.Enabled)
	assert.Equal(t, models.AutoproxyModeOff, rule.Mode)
}

func TestCacheUpdateAutoproxy(t *testing.T) {
	cache := NewCache(newFakeStore())
	cache.Rebuild()

	key := AutoproxyKey("user1", "guild1")
	cache.UpdateAutoproxy(key, models.AutoproxySettings{
		Enabled:   true,
		Mode:      models.AutoproxyModeLatch,
		LastAlter: "Alex",
		GuildID:   "guild1",
	})

	rule := cache.LookupAutoproxy("user1", "guild1")
	assert.True(t, rule.Enabled)
	assert.Equal(t, "Alex", rule.LastAlter)

	// Other guilds stay untouched.
	assert.False(t, cache.LookupAutoproxy("user1", "guild2").Enabled)
}

func TestCachePatternOrderTieBreaksOnName(t *testing.T) {
	store := newFakeStore()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.profiles["user1"] = &models.Profile{
		UserID: "user1",
		Alters: map[string]models.Alter{
			"Zoe": {Proxy: "Z: TEXT", CreatedAt: created},
			"Amy": {Proxy: "Y: TEXT", CreatedAt: created},
		},
	}

	cache := NewCache(store)
	cache.Rebuild()

	entry := cache.Lookup("user1")
	require.NotNil(t, entry)
	require.Len(t, entry.Patterns, 2)
	assert.Equal(t, "Amy", entry.Patterns[0].Name)
	assert.Equal(t, "Zoe", entry.Patterns[1].Name)
}
