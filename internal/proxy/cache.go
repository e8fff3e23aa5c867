package proxy

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"proxybot/internal/database/models"
	"proxybot/internal/types"
)

// AutoproxyKey builds the store key for a user's per-guild autoproxy rule.
func AutoproxyKey(userID, guildID string) string {
	return fmt.Sprintf("%s_%s", userID, guildID)
}

// Cache is the in-memory index of compiled proxy patterns and autoproxy
// rules, rebuilt wholesale from the store. Readers get plain data;
// rebuilds swap the whole structure so a lookup never sees partial state.
type Cache struct {
	store types.Store

	mu        sync.RWMutex
	users     map[string]*UserEntry
	autoproxy map[string]models.AutoproxySettings
}

// NewCache creates an empty cache. Call Rebuild to populate it.
func NewCache(store types.Store) *Cache {
	return &Cache{
		store:     store,
		users:     make(map[string]*UserEntry),
		autoproxy: make(map[string]models.AutoproxySettings),
	}
}

// Rebuild scans every stored profile, compiles the proxy patterns and
// replaces the cache contents. On store failure the previous state is kept
// so proxying degrades to stale matches instead of none at all.
func (c *Cache) Rebuild() {
	profiles, err := c.store.AllProfiles()
	if err != nil {
		log.Printf("❌ Failed to rebuild proxy cache, keeping previous state: %v", err)
		return
	}
	settings, err := c.store.AllAutoproxy()
	if err != nil {
		log.Printf("❌ Failed to load autoproxy settings, keeping previous state: %v", err)
		return
	}

	users := make(map[string]*UserEntry, len(profiles))
	for userID, profile := range profiles {
		if entry := compileProfile(profile); entry != nil {
			users[userID] = entry
		}
	}

	c.mu.Lock()
	c.users = users
	c.autoproxy = settings
	c.mu.Unlock()

	log.Printf("✅ Proxy cache rebuilt: %d users, %d autoproxy rules", len(users), len(settings))
}

// compileProfile builds a user's cache entry. Alters without a usable
// pattern stay out of the manual list but remain reachable via autoproxy.
func compileProfile(profile *models.Profile) *UserEntry {
	if profile == nil || len(profile.Alters) == 0 {
		return nil
	}

	entry := &UserEntry{
		Alters:       make(map[string]AlterInfo, len(profile.Alters)),
		SystemTag:    profile.System.Tag,
		SystemAvatar: profile.System.Avatar,
	}

	names := make([]string, 0, len(profile.Alters))
	for name := range profile.Alters {
		names = append(names, name)
	}
	// Creation order, with the name as tie-breaker, stands in for the
	// original insertion order of the alters map. First match wins, so
	// this ordering is part of the matcher's contract.
	sort.SliceStable(names, func(i, j int) bool {
		a, b := profile.Alters[names[i]], profile.Alters[names[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		alter := profile.Alters[name]
		info := AlterInfo{
			Name:        name,
			DisplayName: alter.DisplayName,
			Avatar:      alter.Avatar,
			ProxyAvatar: alter.ProxyAvatar,
			Color:       alter.Color,
		}
		if info.DisplayName == "" {
			info.DisplayName = name
		}
		entry.Alters[name] = info

		if alter.Proxy == "" {
			continue
		}
		prefix, suffix := ParseProxyPattern(alter.Proxy)
		if prefix == "" && suffix == "" {
			continue
		}
		entry.Patterns = append(entry.Patterns, CompiledEntry{
			AlterInfo: info,
			Prefix:    prefix,
			Suffix:    suffix,
		})
	}

	return entry
}

// Lookup returns the cache entry for an account, or nil.
func (c *Cache) Lookup(userID string) *UserEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[userID]
}

// LookupAutoproxy returns the account's autoproxy rule for a guild, or the
// disabled default.
func (c *Cache) LookupAutoproxy(userID, guildID string) models.AutoproxySettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if settings, ok := c.autoproxy[AutoproxyKey(userID, guildID)]; ok {
		return settings
	}
	return models.AutoproxySettings{Mode: models.AutoproxyModeOff}
}

// UpdateAutoproxy replaces one autoproxy rule in the cache. Used for latch
// updates, which happen on every manual proxy and must not require a full
// rebuild. The rule map is copied and swapped, never mutated in place.
func (c *Cache) UpdateAutoproxy(key string, settings models.AutoproxySettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := make(map[string]models.AutoproxySettings, len(c.autoproxy)+1)
	for k, v := range c.autoproxy {
		updated[k] = v
	}
	updated[key] = settings
	c.autoproxy = updated
}
