package commands

import (
	"fmt"
	"strings"
)

// blacklistChannel handles "!blacklist_channel <#channel>" (admin only).
func (r *Router) blacklistChannel(ctx *Context) {
	if !r.requireAdmin(ctx) {
		return
	}
	if len(ctx.Args) == 0 {
		r.reply(ctx, usage("!blacklist_channel <channel>", "!blacklist_channel #general"))
		return
	}

	channelID := parseChannelMention(ctx.Args[0])
	if channelID == "" {
		r.reply(ctx, "❌ Please mention a channel or pass its id.")
		return
	}

	guildID := ctx.Message.GuildID
	blacklist, err := r.store.GetBlacklist(guildID)
	if err != nil {
		r.reply(ctx, "❌ Failed to load the blacklist, please try again later.")
		return
	}

	for _, id := range blacklist.Channels {
		if id == channelID {
			r.reply(ctx, fmt.Sprintf("❌ <#%s> is already blacklisted.", channelID))
			return
		}
	}

	blacklist.Channels = append(blacklist.Channels, channelID)
	if err := r.store.SaveBlacklist(guildID, blacklist); err != nil {
		r.reply(ctx, "❌ Failed to save the blacklist, please try again later.")
		return
	}

	r.replyEmbed(ctx, createEmbed("✅ Channel Blacklisted",
		fmt.Sprintf("<#%s> has been blacklisted from proxy detection.", channelID), 0x00FF00))
}

// blacklistCategory handles "!blacklist_category <category_id>" (admin only).
func (r *Router) blacklistCategory(ctx *Context) {
	if !r.requireAdmin(ctx) {
		return
	}
	if len(ctx.Args) == 0 {
		r.reply(ctx, usage("!blacklist_category <category_id>", "!blacklist_category 123456789012345678"))
		return
	}

	categoryID := parseChannelMention(ctx.Args[0])
	if categoryID == "" {
		r.reply(ctx, "❌ Please pass a category id.")
		return
	}

	guildID := ctx.Message.GuildID
	blacklist, err := r.store.GetBlacklist(guildID)
	if err != nil {
		r.reply(ctx, "❌ Failed to load the blacklist, please try again later.")
		return
	}

	for _, id := range blacklist.Categories {
		if id == categoryID {
			r.reply(ctx, "❌ That category is already blacklisted.")
			return
		}
	}

	blacklist.Categories = append(blacklist.Categories, categoryID)
	if err := r.store.SaveBlacklist(guildID, blacklist); err != nil {
		r.reply(ctx, "❌ Failed to save the blacklist, please try again later.")
		return
	}

	r.replyEmbed(ctx, createEmbed("✅ Category Blacklisted",
		"The category has been blacklisted from proxy detection.", 0x00FF00))
}

// listBlacklists handles "!list_blacklists" (admin only).
func (r *Router) listBlacklists(ctx *Context) {
	if !r.requireAdmin(ctx) {
		return
	}

	blacklist, err := r.store.GetBlacklist(ctx.Message.GuildID)
	if err != nil {
		r.reply(ctx, "❌ Failed to load the blacklist, please try again later.")
		return
	}

	channels := "None"
	if len(blacklist.Channels) > 0 {
		var mentions []string
		for _, id := range blacklist.Channels {
			mentions = append(mentions, fmt.Sprintf("<#%s>", id))
		}
		channels = strings.Join(mentions, "\n")
	}

	categories := "None"
	if len(blacklist.Categories) > 0 {
		categories = strings.Join(blacklist.Categories, "\n")
	}

	embed := createEmbed("🚫 Proxy Blacklist", "Channels and categories excluded from proxy detection.", 0)
	embed.Description += fmt.Sprintf("\n\n**📺 Channels**\n%s\n\n**📁 Categories**\n%s", channels, categories)
	r.replyEmbed(ctx, embed)
}

func (r *Router) requireAdmin(ctx *Context) bool {
	if ctx.Message.GuildID == "" {
		r.reply(ctx, "❌ This command can only be used in a server.")
		return false
	}
	if !r.isAdmin(ctx) {
		r.reply(ctx, "❌ You don't have permission to use this command.")
		return false
	}
	return true
}

// parseChannelMention accepts "<#123...>" mentions or bare ids.
func parseChannelMention(arg string) string {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	if !isSnowflake(arg) {
		return ""
	}
	return arg
}
