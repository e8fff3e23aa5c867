package types

import (
	"errors"

	"proxybot/internal/database/models"
)

// Sentinel errors the proxy core needs to distinguish from transient
// platform failures.
var (
	// ErrWebhookGone means the platform confirmed the webhook no longer
	// exists (as opposed to a timeout or rate limit).
	ErrWebhookGone = errors.New("webhook no longer exists")

	// ErrMissingPermissions means the bot lacks the channel capabilities
	// required for proxying (manage webhooks + manage messages).
	ErrMissingPermissions = errors.New("missing proxy permissions")
)

// Attachment is a file attached to an inbound message.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Spoiler  bool   `json:"spoiler"`
}

// InboundMessage is the platform-neutral view of a received message, as
// the dispatcher consumes it.
type InboundMessage struct {
	ID          string       `json:"id"`
	GuildID     string       `json:"guild_id"`
	ChannelID   string       `json:"channel_id"`
	CategoryID  string       `json:"category_id"`
	AuthorID    string       `json:"author_id"`
	AuthorBot   bool         `json:"author_bot"`
	WebhookID   string       `json:"webhook_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Webhook is a live channel-scoped surrogate sender handle.
type Webhook struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

// File is an attachment payload re-uploaded with a surrogate send.
type File struct {
	Name string
	Data []byte
}

// SendParams is the outgoing surrogate message payload.
type SendParams struct {
	Content   string
	Username  string
	AvatarURL string
	Files     []File
}

// Platform is the chat-platform surface the proxy core needs. The Discord
// client implements it; tests substitute fakes.
type Platform interface {
	// HasProxyPermissions reports whether the bot holds manage-webhooks and
	// manage-messages in the channel.
	HasProxyPermissions(channelID string) (bool, error)

	// CreateWebhook creates a new channel-scoped sender. Returns
	// ErrMissingPermissions (wrapped) when the platform refuses.
	CreateWebhook(channelID, guildID string) (*Webhook, error)

	// FetchWebhook validates that the webhook still exists. Returns
	// ErrWebhookGone (wrapped) on confirmed deletion; any other error is
	// transient.
	FetchWebhook(webhook *Webhook) error

	// SendWebhookMessage sends through the webhook and returns the id of
	// the new message.
	SendWebhookMessage(webhook *Webhook, params SendParams) (string, error)

	// EditWebhookMessage rewrites the content of a previously proxied
	// message.
	EditWebhookMessage(webhook *Webhook, messageID, content string) error

	DeleteMessage(channelID, messageID string) error
	SendMessage(channelID, content string) error
	DownloadAttachment(url string) ([]byte, error)
}

// Store is the document-store surface consumed by the proxy core and the
// command handlers. Missing documents yield zero-value defaults, not
// errors, so proxying degrades instead of crashing.
type Store interface {
	GetProfile(userID string) (*models.Profile, error)
	SaveProfile(userID string, profile *models.Profile) error
	DeleteProfile(userID string) error
	AllProfiles() (map[string]*models.Profile, error)

	GetAutoproxy(key string) (models.AutoproxySettings, error)
	SaveAutoproxy(key string, settings models.AutoproxySettings) error
	AllAutoproxy() (map[string]models.AutoproxySettings, error)

	GetBlacklist(guildID string) (models.Blacklist, error)
	SaveBlacklist(guildID string, blacklist models.Blacklist) error

	GetWebhook(channelID, guildID string) (*models.WebhookCredentials, error)
	SaveWebhook(creds models.WebhookCredentials) error
	DeleteWebhook(channelID, guildID string) error

	RecordSwitch(userID, alterName string) error
	RecentSwitches(userID string, limit int) ([]models.SwitchRecord, error)
}
