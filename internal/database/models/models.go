package models

import (
	"strings"
	"time"
)

// Autoproxy mode constants
const (
	AutoproxyModeOff    = "off"
	AutoproxyModeLatch  = "latch"
	AutoproxyModeFront  = "front"
	AutoproxyModeMember = "member"
)

// Alter represents a single identity configured under a user's profile.
// Alters are keyed by name inside the profile document; the key is the
// canonical (case-sensitive) name.
type Alter struct {
	DisplayName string    `json:"displayname,omitempty"`
	Proxy       string    `json:"proxy,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	ProxyAvatar string    `json:"proxy_avatar,omitempty"`
	Color       int       `json:"color,omitempty"`
	Pronouns    string    `json:"pronouns,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// System holds account-level display settings shared by all alters.
type System struct {
	Name        string `json:"name,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
	Pronouns    string `json:"pronouns,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// Profile is the per-user document holding the system and its alters.
type Profile struct {
	UserID    string           `json:"user_id"`
	System    System           `json:"system"`
	Alters    map[string]Alter `json:"alters"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
}

// FindAlter resolves an alter name case-insensitively and returns the
// canonical key under which it is stored.
func (p *Profile) FindAlter(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	if _, ok := p.Alters[name]; ok {
		return name, true
	}
	for key := range p.Alters {
		if strings.EqualFold(key, name) {
			return key, true
		}
	}
	return "", false
}

// AutoproxySettings is the per-(user, guild) fallback rule, keyed in the
// store as "<user_id>_<guild_id>".
type AutoproxySettings struct {
	Enabled   bool      `json:"enabled"`
	Mode      string    `json:"mode"`
	LastAlter string    `json:"last_alter,omitempty"`
	Fronter   string    `json:"fronter,omitempty"`
	Member    string    `json:"member,omitempty"`
	GuildID   string    `json:"guild_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Target returns the alter name the rule currently points at, if any.
func (s AutoproxySettings) Target() string {
	switch s.Mode {
	case AutoproxyModeLatch:
		return s.LastAlter
	case AutoproxyModeFront:
		return s.Fronter
	case AutoproxyModeMember:
		return s.Member
	}
	return ""
}

// Blacklist holds the channels and categories excluded from proxy
// detection in a guild.
type Blacklist struct {
	GuildID    string   `json:"guild_id,omitempty"`
	Channels   []string `json:"channels"`
	Categories []string `json:"categories"`
}

// Blocks reports whether a message in the given channel/category must be
// ignored by the proxy pipeline.
func (b Blacklist) Blocks(channelID, categoryID string) bool {
	for _, id := range b.Channels {
		if id == channelID {
			return true
		}
	}
	if categoryID != "" {
		for _, id := range b.Categories {
			if id == categoryID {
				return true
			}
		}
	}
	return false
}

// WebhookCredentials are the persisted credentials of a channel webhook so
// surrogate senders survive restarts.
type WebhookCredentials struct {
	ChannelID    string    `json:"channel_id"`
	GuildID      string    `json:"guild_id"`
	WebhookID    string    `json:"webhook_id"`
	WebhookToken string    `json:"webhook_token"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// SwitchRecord is one entry of a user's switch history.
type SwitchRecord struct {
	ID        int       `json:"id"`
	UserID    string    `json:"user_id"`
	AlterName string    `json:"alter_name"`
	Timestamp time.Time `json:"timestamp"`
}
