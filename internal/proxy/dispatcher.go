package proxy

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxybot/internal/database/models"
	"proxybot/internal/types"
)

// EscapeToken lets a user opt a single message out of proxying: a message
// whose whole content is one backslash is never proxied.
const EscapeToken = `\`

// Discord caps webhook usernames at 80 characters.
const maxUsernameLength = 80

// ProxiedMessage records who a surrogate message belongs to, so the
// original author can edit it later. In-memory only; records do not
// survive a restart.
type ProxiedMessage struct {
	UserID    string
	AlterName string
	Timestamp time.Time
}

// Dispatcher runs the per-message proxy pipeline: eligibility, matching,
// webhook acquisition, resend, original-message cleanup and latch updates.
type Dispatcher struct {
	platform types.Platform
	store    types.Store
	cache    *Cache
	webhooks *WebhookManager
	prefix   string

	// proxyMu serializes the whole match-send-cleanup sequence across all
	// inbound messages.
	proxyMu sync.Mutex

	msgMu    sync.RWMutex
	messages map[string]ProxiedMessage
}

// NewDispatcher wires the pipeline. prefix is the command prefix messages
// must not start with to be proxy candidates.
func NewDispatcher(platform types.Platform, store types.Store, cache *Cache, webhooks *WebhookManager, prefix string) *Dispatcher {
	return &Dispatcher{
		platform: platform,
		store:    store,
		cache:    cache,
		webhooks: webhooks,
		prefix:   prefix,
		messages: make(map[string]ProxiedMessage),
	}
}

// HandleMessage processes one inbound message. It never returns an error:
// every failure either resolves to "don't proxy" or is logged, so one bad
// message cannot take the event loop down.
func (d *Dispatcher) HandleMessage(msg types.InboundMessage) {
	if !d.eligible(msg) {
		return
	}

	d.proxyMu.Lock()
	defer d.proxyMu.Unlock()

	entry := d.cache.Lookup(msg.AuthorID)
	if entry == nil {
		return
	}
	rule := d.cache.LookupAutoproxy(msg.AuthorID, msg.GuildID)

	decision := Match(msg.Content, len(msg.Attachments), entry, rule)
	if decision == nil {
		return
	}

	// Explicit one-message opt-out, checked only after a positive match so
	// unrelated backslash messages stay untouched.
	if msg.Content == EscapeToken {
		return
	}

	corr := uuid.NewString()[:8]
	log.Printf("🔄 [%s] Proxy match: %s for user %s in guild %s (manual=%v)",
		corr, decision.Alter.Name, msg.AuthorID, msg.GuildID, decision.Manual)

	webhook, err := d.webhooks.Acquire(msg.ChannelID, msg.GuildID)
	if err != nil {
		// Permission problems already produced a user-visible diagnostic;
		// everything else is transient and stays in the log.
		if !errors.Is(err, types.ErrMissingPermissions) {
			log.Printf("❌ [%s] Failed to acquire webhook: %v", corr, err)
		}
		return
	}

	params, ok := d.buildPayload(corr, msg, entry, decision)
	if !ok {
		return
	}

	sentID, err := d.platform.SendWebhookMessage(webhook, params)
	if err != nil {
		log.Printf("❌ [%s] Failed to send proxied message: %v", corr, err)
		if sendErr := d.platform.SendMessage(msg.ChannelID, "❌ Error proxying message, please try again."); sendErr != nil {
			log.Printf("⚠️ [%s] Failed to send proxy error notice: %v", corr, sendErr)
		}
		return
	}

	// Best effort: a missing message or a denied delete leaves a duplicate
	// behind, which is acceptable and not rolled back.
	if err := d.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		log.Printf("⚠️ [%s] Failed to delete original message: %v", corr, err)
	}

	if decision.Manual {
		d.updateLatch(corr, msg, decision.Alter.Name)
	}

	d.msgMu.Lock()
	d.messages[sentID] = ProxiedMessage{
		UserID:    msg.AuthorID,
		AlterName: decision.Alter.Name,
		Timestamp: time.Now().UTC(),
	}
	d.msgMu.Unlock()

	log.Printf("✅ [%s] Proxied message %s as %s", corr, sentID, decision.Alter.Name)
}

// eligible applies the silent filters: no bots or webhooks, no commands,
// no DMs, no blacklisted channels or categories.
func (d *Dispatcher) eligible(msg types.InboundMessage) bool {
	if msg.AuthorBot || msg.WebhookID != "" {
		return false
	}
	if d.prefix != "" && strings.HasPrefix(msg.Content, d.prefix) {
		return false
	}
	if msg.GuildID == "" {
		return false
	}

	blacklist, err := d.store.GetBlacklist(msg.GuildID)
	if err != nil {
		// Fail closed: an unreadable blacklist must not cause proxying in
		// a channel an admin may have excluded.
		log.Printf("⚠️ Failed to load blacklist for guild %s, skipping message: %v", msg.GuildID, err)
		return false
	}
	return !blacklist.Blocks(msg.ChannelID, msg.CategoryID)
}

// buildPayload assembles the outgoing surrogate message: stripped content,
// display name with system tag, resolved avatar and re-uploaded files.
func (d *Dispatcher) buildPayload(corr string, msg types.InboundMessage, entry *UserEntry, decision *Decision) (types.SendParams, bool) {
	username := decision.Alter.DisplayName
	if entry.SystemTag != "" {
		username += " " + entry.SystemTag
	}
	if runes := []rune(username); len(runes) > maxUsernameLength {
		username = string(runes[:maxUsernameLength-3]) + "..."
	}

	avatar := decision.Alter.ProxyAvatar
	if avatar == "" {
		avatar = decision.Alter.Avatar
	}
	if avatar == "" {
		avatar = entry.SystemAvatar
	}

	var files []types.File
	for _, attachment := range msg.Attachments {
		data, err := d.platform.DownloadAttachment(attachment.URL)
		if err != nil {
			log.Printf("⚠️ [%s] Failed to download attachment %s: %v", corr, attachment.Filename, err)
			continue
		}
		name := attachment.Filename
		if attachment.Spoiler && !strings.HasPrefix(name, "SPOILER_") {
			name = "SPOILER_" + name
		}
		files = append(files, types.File{Name: name, Data: data})
	}

	if strings.TrimSpace(decision.Content) == "" && len(files) == 0 {
		log.Printf("⚠️ [%s] Nothing to send after extraction for %s", corr, decision.Alter.Name)
		return types.SendParams{}, false
	}

	return types.SendParams{
		Content:   decision.Content,
		Username:  username,
		AvatarURL: avatar,
		Files:     files,
	}, true
}

// updateLatch persists the most recently manually-proxied alter when the
// account runs latch mode in this guild.
func (d *Dispatcher) updateLatch(corr string, msg types.InboundMessage, alterName string) {
	key := AutoproxyKey(msg.AuthorID, msg.GuildID)
	settings := d.cache.LookupAutoproxy(msg.AuthorID, msg.GuildID)
	if settings.Mode != models.AutoproxyModeLatch {
		return
	}
	settings.LastAlter = alterName
	settings.GuildID = msg.GuildID
	if err := d.store.SaveAutoproxy(key, settings); err != nil {
		log.Printf("⚠️ [%s] Failed to persist latch target: %v", corr, err)
		return
	}
	d.cache.UpdateAutoproxy(key, settings)
	log.Printf("🔄 [%s] Latch updated to %s for guild %s", corr, alterName, msg.GuildID)
}

// WhoProxied returns the account that proxied a surrogate message, for
// edit authorization.
func (d *Dispatcher) WhoProxied(messageID string) (string, bool) {
	d.msgMu.RLock()
	defer d.msgMu.RUnlock()
	record, ok := d.messages[messageID]
	return record.UserID, ok
}

// ProxiedRecord returns the full ownership record for a surrogate message.
func (d *Dispatcher) ProxiedRecord(messageID string) (ProxiedMessage, bool) {
	d.msgMu.RLock()
	defer d.msgMu.RUnlock()
	record, ok := d.messages[messageID]
	return record, ok
}
