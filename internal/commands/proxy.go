package commands

import (
	"errors"
	"fmt"
	"strings"

	"proxybot/internal/database/models"
	"proxybot/internal/proxy"
	"proxybot/internal/types"
)

// setProxy handles "!set_proxy <alter> <tag>".
func (r *Router) setProxy(ctx *Context) {
	if len(ctx.Args) < 2 {
		r.reply(ctx, usage("!set_proxy <alter_name> <proxy_tag>", "!set_proxy Alex A: TEXT"))
		return
	}
	alterName := ctx.Args[0]
	proxyTag := strings.TrimSpace(strings.TrimPrefix(ctx.RawArgs, alterName))

	profile, err := r.store.GetProfile(ctx.AuthorID())
	if err != nil {
		r.reply(ctx, "❌ Failed to load your profile, please try again later.")
		return
	}
	if profile == nil || len(profile.Alters) == 0 {
		r.reply(ctx, "❌ You don't have any alters set up.")
		return
	}

	actualName, ok := profile.FindAlter(alterName)
	if !ok {
		r.reply(ctx, fmt.Sprintf("❌ Alter '%s' does not exist.", alterName))
		return
	}

	// A lowercase "text" placeholder is accepted and normalized
	if strings.Contains(strings.ToLower(proxyTag), "text") && !strings.Contains(proxyTag, "TEXT") {
		proxyTag = strings.ReplaceAll(proxyTag, "text", "TEXT")
	}

	alter := profile.Alters[actualName]
	alter.Proxy = proxyTag
	profile.Alters[actualName] = alter
	if err := r.store.SaveProfile(ctx.AuthorID(), profile); err != nil {
		r.reply(ctx, "❌ Failed to save your proxy tag, please try again later.")
		return
	}
	r.cache.Rebuild()

	prefix, suffix := proxy.ParseProxyPattern(proxyTag)
	example := ""
	if prefix != "" {
		example += fmt.Sprintf("`%s`", prefix)
	}
	example += "Your message here"
	if suffix != "" {
		example += fmt.Sprintf("`%s`", suffix)
	}

	embed := createEmbed(
		"Proxy Set Successfully",
		fmt.Sprintf("Proxy for **%s** has been set to `%s`.\n\nWhen you type: %s\nThe bot will send a message as: **%s**",
			actualName, proxyTag, example, actualName),
		alter.Color,
	)
	r.replyEmbed(ctx, embed)
}

// proxyManagement handles "!proxy remove|clear|list".
func (r *Router) proxyManagement(ctx *Context) {
	if len(ctx.Args) == 0 {
		r.reply(ctx, "❌ Invalid action. Use `remove` or `list`.")
		return
	}

	switch strings.ToLower(ctx.Args[0]) {
	case "set":
		r.reply(ctx, "ℹ️ The `!proxy set` command has been renamed to `!set_proxy`. Please use `!set_proxy <alter_name> <proxy_tag>` instead.")

	case "remove", "clear":
		if len(ctx.Args) < 2 {
			r.reply(ctx, "❌ Usage: `!proxy remove <alter_name>`")
			return
		}
		alterName := ctx.Args[1]

		profile, err := r.store.GetProfile(ctx.AuthorID())
		if err != nil || profile == nil || len(profile.Alters) == 0 {
			r.reply(ctx, "❌ You don't have any alters set up.")
			return
		}

		actualName, ok := profile.FindAlter(alterName)
		if !ok {
			r.reply(ctx, fmt.Sprintf("❌ Alter '%s' does not exist.", alterName))
			return
		}

		alter := profile.Alters[actualName]
		if alter.Proxy == "" {
			r.reply(ctx, fmt.Sprintf("❌ Alter '%s' does not have a proxy set.", alterName))
			return
		}
		alter.Proxy = ""
		profile.Alters[actualName] = alter
		if err := r.store.SaveProfile(ctx.AuthorID(), profile); err != nil {
			r.reply(ctx, "❌ Failed to save your profile, please try again later.")
			return
		}
		r.cache.Rebuild()
		r.reply(ctx, fmt.Sprintf("✅ Proxy for '%s' has been removed.", actualName))

	case "list":
		profile, err := r.store.GetProfile(ctx.AuthorID())
		if err != nil || profile == nil || len(profile.Alters) == 0 {
			r.reply(ctx, "❌ You don't have any alters to list proxies for.")
			return
		}

		var proxies []string
		for name, alter := range profile.Alters {
			if alter.Proxy == "" {
				continue
			}
			displayName := alter.DisplayName
			if displayName == "" {
				displayName = name
			}
			proxies = append(proxies, fmt.Sprintf("**%s**: `%s`", displayName, alter.Proxy))
		}
		if len(proxies) == 0 {
			r.reply(ctx, "❌ You don't have any proxies set.")
			return
		}
		r.replyEmbed(ctx, createEmbed("Your Proxy Tags", strings.Join(proxies, "\n"), 0))

	default:
		r.reply(ctx, "❌ Invalid action. Use `remove` or `list`.")
	}
}

// autoproxy handles "!autoproxy [off|latch|front|member] [alter]".
func (r *Router) autoproxy(ctx *Context) {
	if ctx.Message.GuildID == "" {
		r.reply(ctx, "❌ Autoproxy is configured per server; use this command in a server.")
		return
	}

	userID := ctx.AuthorID()
	guildID := ctx.Message.GuildID
	key := proxy.AutoproxyKey(userID, guildID)

	settings, err := r.store.GetAutoproxy(key)
	if err != nil {
		r.reply(ctx, "❌ Failed to load your autoproxy settings, please try again later.")
		return
	}

	if len(ctx.Args) == 0 {
		r.showAutoproxy(ctx, settings)
		return
	}

	mode := strings.ToLower(ctx.Args[0])
	switch mode {
	case "off", "disable", "unlatch":
		settings = models.AutoproxySettings{Enabled: false, Mode: models.AutoproxyModeOff, GuildID: guildID}
		if err := r.saveAutoproxy(key, settings); err != nil {
			r.reply(ctx, "❌ Failed to save your autoproxy settings, please try again later.")
			return
		}
		r.replyEmbed(ctx, createEmbed("✅ Autoproxy Disabled", "Autoproxy has been disabled in this server.", 0x00FF00))
		return
	}

	profile, err := r.store.GetProfile(userID)
	if err != nil || profile == nil || len(profile.Alters) == 0 {
		r.reply(ctx, "❌ You don't have any alters set up.")
		return
	}

	switch mode {
	case "latch":
		settings = models.AutoproxySettings{
			Enabled:   true,
			Mode:      models.AutoproxyModeLatch,
			LastAlter: settings.LastAlter, // keep an existing latch if any
			GuildID:   guildID,
		}
		if err := r.saveAutoproxy(key, settings); err != nil {
			r.reply(ctx, "❌ Failed to save your autoproxy settings, please try again later.")
			return
		}
		embed := createEmbed("✅ Latch Mode Enabled",
			"Autoproxy will now use the last alter you manually proxied in this server.", 0x00FF00)
		if settings.LastAlter != "" {
			embed.Description += fmt.Sprintf("\n\nCurrent latch: **%s**", settings.LastAlter)
		}
		r.replyEmbed(ctx, embed)

	case "front", "fronter", "member":
		if len(ctx.Args) < 2 {
			r.reply(ctx, fmt.Sprintf("❌ Please specify an alter name for %s mode.\nUsage: `!autoproxy %s <alter_name>`", mode, mode))
			return
		}
		alterName, ok := profile.FindAlter(strings.Join(ctx.Args[1:], " "))
		if !ok {
			r.reply(ctx, "❌ Alter not found.")
			return
		}

		if mode == "member" {
			settings = models.AutoproxySettings{Enabled: true, Mode: models.AutoproxyModeMember, Member: alterName, GuildID: guildID}
		} else {
			settings = models.AutoproxySettings{Enabled: true, Mode: models.AutoproxyModeFront, Fronter: alterName, GuildID: guildID}
		}
		if err := r.saveAutoproxy(key, settings); err != nil {
			r.reply(ctx, "❌ Failed to save your autoproxy settings, please try again later.")
			return
		}
		title := "✅ Front Mode Enabled"
		if mode == "member" {
			title = "✅ Member Mode Enabled"
		}
		r.replyEmbed(ctx, createEmbed(title,
			fmt.Sprintf("All messages in this server will now be proxied as **%s**.", alterName), 0x00FF00))

	default:
		r.reply(ctx, "❌ Invalid autoproxy mode. Use `off`, `latch`, `front`, or `member`.")
	}
}

func (r *Router) saveAutoproxy(key string, settings models.AutoproxySettings) error {
	if err := r.store.SaveAutoproxy(key, settings); err != nil {
		return err
	}
	r.cache.UpdateAutoproxy(key, settings)
	return nil
}

func (r *Router) showAutoproxy(ctx *Context, settings models.AutoproxySettings) {
	if !settings.Enabled {
		embed := createEmbed("🔄 Autoproxy Disabled", "Autoproxy is currently disabled in this server.", 0)
		embed.Description += "\n\nAvailable modes:\n• `latch` - Proxy as last used alter\n• `front` - Set a fronter\n• `member` - Set a specific member"
		r.replyEmbed(ctx, embed)
		return
	}

	// Mode names are lowercase ASCII constants.
	mode := settings.Mode
	if mode != "" {
		mode = strings.ToUpper(mode[:1]) + mode[1:]
	}
	description := fmt.Sprintf("**Mode:** %s", mode)
	if target := settings.Target(); target != "" {
		description += fmt.Sprintf("\n**Target:** %s", target)
	}
	description += "\n\nAvailable modes:\n• `off` - Disable autoproxy\n• `latch` - Proxy as last used alter\n• `front` - Set a fronter\n• `member` - Set a specific member"
	r.replyEmbed(ctx, createEmbed("🔄 Current Autoproxy Settings", description, 0))
}

// editProxied handles "!edit_proxy <message_link> <new_content>".
func (r *Router) editProxied(ctx *Context) {
	if len(ctx.Args) < 2 {
		r.reply(ctx, "❌ Usage: `!edit_proxy <message_link> <new_content>`")
		return
	}
	messageLink := ctx.Args[0]
	newContent := strings.TrimSpace(strings.TrimPrefix(ctx.RawArgs, messageLink))

	channelID, messageID, err := parseMessageLink(messageLink)
	if err != nil {
		r.reply(ctx, "❌ Invalid message link. Please right-click the message and use 'Copy Message Link'.")
		return
	}

	// Only the account that proxied the message may edit it
	ownerID, ok := r.dispatcher.WhoProxied(messageID)
	if !ok || ownerID != ctx.AuthorID() {
		r.reply(ctx, "❌ You can only edit messages that you proxied.")
		return
	}

	channel, err := ctx.Session.Channel(channelID)
	if err != nil {
		r.reply(ctx, "❌ Cannot find the channel for this message.")
		return
	}

	webhook, err := r.webhooks.Acquire(channelID, channel.GuildID)
	if err != nil {
		if !errors.Is(err, types.ErrMissingPermissions) {
			r.reply(ctx, "❌ Failed to get webhook for this channel.")
		}
		return
	}

	if err := r.platform.EditWebhookMessage(webhook, messageID, newContent); err != nil {
		r.reply(ctx, "❌ Cannot edit this message. It might be too old.")
		return
	}
	r.react(ctx, "✅")
}

// parseMessageLink extracts the channel and message ids from a Discord
// message URL (".../channels/<guild>/<channel>/<message>").
func parseMessageLink(link string) (channelID, messageID string, err error) {
	parts := strings.Split(strings.TrimRight(link, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("malformed message link")
	}
	channelID = parts[len(parts)-2]
	messageID = parts[len(parts)-1]
	if !isSnowflake(channelID) || !isSnowflake(messageID) {
		return "", "", fmt.Errorf("malformed message link")
	}
	return channelID, messageID, nil
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
