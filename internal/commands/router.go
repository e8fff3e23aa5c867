package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"proxybot/internal/proxy"
	"proxybot/internal/types"
)

const defaultEmbedColor = 0x8A2BE2

// Context carries everything one command invocation needs.
type Context struct {
	Session *discordgo.Session
	Message *discordgo.MessageCreate
	// Args are the whitespace-split words after the command name.
	Args []string
	// RawArgs is the untouched remainder after the command name.
	RawArgs string
}

// AuthorID returns the invoking user's id.
func (ctx *Context) AuthorID() string {
	return ctx.Message.Author.ID
}

// HandlerFunc handles one prefix command.
type HandlerFunc func(ctx *Context)

// Router parses prefix commands and dispatches them to handlers.
type Router struct {
	prefix     string
	store      types.Store
	cache      *proxy.Cache
	webhooks   *proxy.WebhookManager
	platform   types.Platform
	dispatcher *proxy.Dispatcher
	handlers   map[string]HandlerFunc
}

// NewRouter creates the command router with all commands registered.
func NewRouter(prefix string, store types.Store, cache *proxy.Cache, webhooks *proxy.WebhookManager, platform types.Platform, dispatcher *proxy.Dispatcher) *Router {
	r := &Router{
		prefix:     prefix,
		store:      store,
		cache:      cache,
		webhooks:   webhooks,
		platform:   platform,
		dispatcher: dispatcher,
		handlers:   make(map[string]HandlerFunc),
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.handlers["set_proxy"] = r.setProxy
	r.handlers["proxy"] = r.proxyManagement
	r.handlers["autoproxy"] = r.autoproxy
	r.handlers["edit_proxy"] = r.editProxied

	r.handlers["create_alter"] = r.createAlter
	r.handlers["delete_alter"] = r.deleteAlter
	r.handlers["list_alters"] = r.listAlters

	r.handlers["tag"] = r.systemTag
	r.handlers["switch"] = r.switchAlter
	r.handlers["switches"] = r.switchHistory

	r.handlers["blacklist_channel"] = r.blacklistChannel
	r.handlers["blacklist_category"] = r.blacklistCategory
	r.handlers["list_blacklists"] = r.listBlacklists
}

// Dispatch parses a prefixed message and runs the matching handler. A
// panicking handler is contained here so the gateway loop survives.
func (r *Router) Dispatch(s *discordgo.Session, m *discordgo.MessageCreate) {
	content := strings.TrimPrefix(m.Content, r.prefix)
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(fields[0])
	handler, ok := r.handlers[name]
	if !ok {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ Command %s panicked: %v", name, rec)
		}
	}()

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content), fields[0]))
	handler(&Context{
		Session: s,
		Message: m,
		Args:    fields[1:],
		RawArgs: raw,
	})
}

// reply sends a plain text response to the invoking channel.
func (r *Router) reply(ctx *Context, content string) {
	if _, err := ctx.Session.ChannelMessageSend(ctx.Message.ChannelID, content); err != nil {
		log.Printf("❌ Failed to send command reply: %v", err)
	}
}

// replyEmbed sends an embed response to the invoking channel.
func (r *Router) replyEmbed(ctx *Context, embed *discordgo.MessageEmbed) {
	if _, err := ctx.Session.ChannelMessageSendEmbed(ctx.Message.ChannelID, embed); err != nil {
		log.Printf("❌ Failed to send command embed: %v", err)
	}
}

// react acknowledges the invoking message with an emoji.
func (r *Router) react(ctx *Context, emoji string) {
	if err := ctx.Session.MessageReactionAdd(ctx.Message.ChannelID, ctx.Message.ID, emoji); err != nil {
		log.Printf("⚠️ Failed to add reaction: %v", err)
	}
}

// createEmbed builds an embed in the bot's house style.
func createEmbed(title, description string, color int) *discordgo.MessageEmbed {
	if color == 0 {
		color = defaultEmbedColor
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}
}

// isAdmin checks whether the invoking member may use admin commands.
func (r *Router) isAdmin(ctx *Context) bool {
	permissions, err := ctx.Session.UserChannelPermissions(ctx.AuthorID(), ctx.Message.ChannelID)
	if err != nil {
		log.Printf("⚠️ Failed to query permissions for %s: %v", ctx.AuthorID(), err)
		return false
	}
	return permissions&discordgo.PermissionAdministrator != 0
}

func usage(command, example string) string {
	return fmt.Sprintf("❌ Usage: `%s`\nExample: `%s`", command, example)
}
