package discord

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"proxybot/internal/types"
)

// Webhooks created by the bot carry this name in the channel settings.
const webhookName = "PIXEL Proxy"

// Client wraps the Discord session and implements types.Platform for the
// proxy core.
type Client struct {
	session     *discordgo.Session
	token       string
	isConnected bool
	httpClient  *http.Client
}

// NewClient creates a new Discord client
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("Discord bot token is required")
	}

	// Create a new Discord session using the provided bot token
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %v", err)
	}

	// Proxying needs guild messages including their content
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	client := &Client{
		session:     session,
		token:       token,
		isConnected: false,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}

	return client, nil
}

// Connect connects to Discord
func (c *Client) Connect() error {
	if c.isConnected {
		return nil
	}

	// Open a websocket connection to Discord and begin listening
	err := c.session.Open()
	if err != nil {
		return fmt.Errorf("error opening connection to Discord: %v", err)
	}

	c.isConnected = true
	log.Printf("✅ Discord bot connected successfully")

	return nil
}

// Disconnect disconnects from Discord
func (c *Client) Disconnect() error {
	if !c.isConnected {
		return nil
	}

	err := c.session.Close()
	if err != nil {
		log.Printf("❌ Error closing Discord connection: %v", err)
		return err
	}

	c.isConnected = false
	log.Printf("🔌 Discord bot disconnected")
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	return c.isConnected
}

// Session returns the underlying discordgo session
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// GetBotUser returns the bot user information
func (c *Client) GetBotUser() *discordgo.User {
	if c.session.State != nil {
		return c.session.State.User
	}
	return nil
}

// SetMessageHandler sets the message create handler
func (c *Client) SetMessageHandler(handler func(*discordgo.Session, *discordgo.MessageCreate)) {
	c.session.AddHandler(handler)
}

// SetReadyHandler sets the ready event handler
func (c *Client) SetReadyHandler(handler func(*discordgo.Session, *discordgo.Ready)) {
	c.session.AddHandler(handler)
}

// SendMessage sends a plain message to a Discord channel
func (c *Client) SendMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return fmt.Errorf("error sending message to Discord: %v", err)
	}
	return nil
}

// HasProxyPermissions reports whether the bot holds manage-webhooks and
// manage-messages in the channel.
func (c *Client) HasProxyPermissions(channelID string) (bool, error) {
	botUser := c.GetBotUser()
	if botUser == nil {
		return false, fmt.Errorf("bot user not available yet")
	}

	permissions, err := c.session.UserChannelPermissions(botUser.ID, channelID)
	if err != nil {
		return false, fmt.Errorf("error querying channel permissions: %v", err)
	}

	required := int64(discordgo.PermissionManageWebhooks | discordgo.PermissionManageMessages)
	return permissions&required == required, nil
}

// CreateWebhook creates a new webhook in the channel
func (c *Client) CreateWebhook(channelID, guildID string) (*types.Webhook, error) {
	webhook, err := c.session.WebhookCreate(channelID, webhookName, "")
	if err != nil {
		if isForbidden(err) {
			return nil, fmt.Errorf("no permission to create webhook in %s: %w", channelID, types.ErrMissingPermissions)
		}
		return nil, fmt.Errorf("error creating webhook: %v", err)
	}

	return &types.Webhook{
		ID:        webhook.ID,
		Token:     webhook.Token,
		ChannelID: channelID,
		GuildID:   guildID,
	}, nil
}

// FetchWebhook validates that a webhook still exists on Discord
func (c *Client) FetchWebhook(webhook *types.Webhook) error {
	_, err := c.session.WebhookWithToken(webhook.ID, webhook.Token)
	if err == nil {
		return nil
	}
	if isUnknownWebhook(err) {
		return fmt.Errorf("webhook %s: %w", webhook.ID, types.ErrWebhookGone)
	}
	return fmt.Errorf("error fetching webhook: %v", err)
}

// SendWebhookMessage sends a message through a webhook with a custom
// username and avatar and returns the new message id
func (c *Client) SendWebhookMessage(webhook *types.Webhook, params types.SendParams) (string, error) {
	data := &discordgo.WebhookParams{
		Content:   params.Content,
		Username:  params.Username,
		AvatarURL: params.AvatarURL,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	for _, file := range params.Files {
		data.Files = append(data.Files, &discordgo.File{
			Name:   file.Name,
			Reader: bytes.NewReader(file.Data),
		})
	}

	message, err := c.session.WebhookExecute(webhook.ID, webhook.Token, true, data)
	if err != nil {
		return "", fmt.Errorf("error executing webhook: %v", err)
	}
	return message.ID, nil
}

// EditWebhookMessage rewrites the content of a previously proxied message
func (c *Client) EditWebhookMessage(webhook *types.Webhook, messageID, content string) error {
	_, err := c.session.WebhookMessageEdit(webhook.ID, webhook.Token, messageID, &discordgo.WebhookEdit{
		Content: &content,
	})
	if err != nil {
		return fmt.Errorf("error editing webhook message: %v", err)
	}
	return nil
}

// DeleteMessage deletes a message from a channel
func (c *Client) DeleteMessage(channelID, messageID string) error {
	if err := c.session.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("error deleting message: %v", err)
	}
	return nil
}

// DownloadAttachment fetches an attachment's bytes from Discord's CDN
func (c *Client) DownloadAttachment(url string) ([]byte, error) {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("error downloading attachment: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("attachment download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading attachment body: %v", err)
	}
	return data, nil
}

// isUnknownWebhook reports whether Discord confirmed the webhook deleted,
// as opposed to failing transiently.
func isUnknownWebhook(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownWebhook {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}
