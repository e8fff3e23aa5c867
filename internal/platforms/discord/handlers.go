package discord

import (
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"proxybot/internal/commands"
	"proxybot/internal/proxy"
	"proxybot/internal/types"
)

// MessageHandler routes Discord events: prefix commands go to the command
// router, everything else enters the proxy dispatcher.
type MessageHandler struct {
	client     *Client
	prefix     string
	dispatcher *proxy.Dispatcher
	router     *commands.Router
}

// NewMessageHandler creates a new Discord message handler
func NewMessageHandler(client *Client, prefix string, dispatcher *proxy.Dispatcher, router *commands.Router) *MessageHandler {
	return &MessageHandler{
		client:     client,
		prefix:     prefix,
		dispatcher: dispatcher,
		router:     router,
	}
}

// SetupHandlers sets up all Discord event handlers
func (h *MessageHandler) SetupHandlers() {
	h.client.SetReadyHandler(h.onReady)
	h.client.SetMessageHandler(h.onMessageCreate)
}

// onReady handles the ready event
func (h *MessageHandler) onReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("🤖 Discord bot logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
}

// onMessageCreate handles new messages
func (h *MessageHandler) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	// Ignore messages from the bot itself
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	if strings.HasPrefix(m.Content, h.prefix) {
		if m.Author.Bot || m.WebhookID != "" {
			return
		}
		h.router.Dispatch(s, m)
		return
	}

	h.dispatcher.HandleMessage(h.toInboundMessage(s, m))
}

// toInboundMessage converts a Discord message event into the
// platform-neutral form the dispatcher consumes.
func (h *MessageHandler) toInboundMessage(s *discordgo.Session, m *discordgo.MessageCreate) types.InboundMessage {
	msg := types.InboundMessage{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		WebhookID: m.WebhookID,
		Content:   m.Content,
	}

	// The category lives on the channel, not the message
	if channel, err := s.State.Channel(m.ChannelID); err == nil {
		msg.CategoryID = channel.ParentID
	} else if channel, err := s.Channel(m.ChannelID); err == nil {
		msg.CategoryID = channel.ParentID
	}

	for _, attachment := range m.Attachments {
		msg.Attachments = append(msg.Attachments, types.Attachment{
			URL:      attachment.URL,
			Filename: attachment.Filename,
			Spoiler:  strings.HasPrefix(attachment.Filename, "SPOILER_"),
		})
	}

	return msg
}
