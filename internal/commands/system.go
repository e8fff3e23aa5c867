package commands

import (
	"fmt"
	"strings"

	"proxybot/internal/database/models"
	"proxybot/internal/proxy"
)

const maxSystemTagLength = 20

// systemTag handles "!tag [text]": shows or sets the system tag appended
// to every proxied display name.
func (r *Router) systemTag(ctx *Context) {
	profile, err := r.store.GetProfile(ctx.AuthorID())
	if err != nil {
		r.reply(ctx, "❌ Failed to load your profile, please try again later.")
		return
	}
	if profile == nil {
		r.reply(ctx, "❌ You don't have a system set up yet. Use `!create_alter` first.")
		return
	}

	tag := strings.TrimSpace(ctx.RawArgs)
	if tag == "" {
		if profile.System.Tag != "" {
			r.reply(ctx, fmt.Sprintf("🏷️ Current system tag: `%s`", profile.System.Tag))
		} else {
			r.reply(ctx, "🏷️ No system tag set. Use `!tag <tag>` to set one.")
		}
		return
	}

	if len([]rune(tag)) > maxSystemTagLength {
		r.reply(ctx, fmt.Sprintf("❌ System tags are limited to %d characters.", maxSystemTagLength))
		return
	}

	profile.System.Tag = tag
	if err := r.store.SaveProfile(ctx.AuthorID(), profile); err != nil {
		r.reply(ctx, "❌ Failed to save your system tag, please try again later.")
		return
	}
	r.cache.Rebuild()
	r.reply(ctx, fmt.Sprintf("✅ System tag set to `%s`. It will appear next to alter names when proxying.", tag))
}

// switchAlter handles "!switch <alter>": records a switch and pins the
// autoproxy front target for this server.
func (r *Router) switchAlter(ctx *Context) {
	if ctx.Message.GuildID == "" {
		r.reply(ctx, "❌ Switches are tracked per server; use this command in a server.")
		return
	}
	name := strings.TrimSpace(ctx.RawArgs)
	if name == "" {
		r.reply(ctx, usage("!switch <alter_name>", "!switch Alex"))
		return
	}

	profile, err := r.store.GetProfile(ctx.AuthorID())
	if err != nil || profile == nil || len(profile.Alters) == 0 {
		r.reply(ctx, "❌ You don't have any alters set up.")
		return
	}

	actualName, ok := profile.FindAlter(name)
	if !ok {
		r.reply(ctx, fmt.Sprintf("❌ Alter '%s' does not exist.", name))
		return
	}

	if err := r.store.RecordSwitch(ctx.AuthorID(), actualName); err != nil {
		r.reply(ctx, "❌ Failed to record the switch, please try again later.")
		return
	}

	key := proxy.AutoproxyKey(ctx.AuthorID(), ctx.Message.GuildID)
	settings := models.AutoproxySettings{
		Enabled: true,
		Mode:    models.AutoproxyModeFront,
		Fronter: actualName,
		GuildID: ctx.Message.GuildID,
	}
	if err := r.saveAutoproxy(key, settings); err != nil {
		r.reply(ctx, "❌ Switch recorded, but updating autoproxy failed.")
		return
	}

	r.replyEmbed(ctx, createEmbed("✅ Switch Registered",
		fmt.Sprintf("**%s** is now fronting. Messages in this server will be proxied as them.", actualName), 0x00FF00))
}

// switchHistory handles "!switches": shows the user's recent switches.
func (r *Router) switchHistory(ctx *Context) {
	switches, err := r.store.RecentSwitches(ctx.AuthorID(), 10)
	if err != nil {
		r.reply(ctx, "❌ Failed to load your switch history, please try again later.")
		return
	}
	if len(switches) == 0 {
		r.reply(ctx, "❌ No switches recorded yet. Use `!switch <alter_name>` to record one.")
		return
	}

	var lines []string
	for _, record := range switches {
		lines = append(lines, fmt.Sprintf("• **%s** - %s", record.AlterName, record.Timestamp.Format("2006-01-02 15:04 UTC")))
	}
	r.replyEmbed(ctx, createEmbed("Recent Switches", strings.Join(lines, "\n"), 0))
}
