package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"proxybot/internal/database/models"
)

// createAlter handles "!create_alter <name>".
func (r *Router) createAlter(ctx *Context) {
	name := strings.TrimSpace(ctx.RawArgs)
	if name == "" {
		r.reply(ctx, usage("!create_alter <name>", "!create_alter Alex"))
		return
	}

	profile, err := r.store.GetProfile(ctx.AuthorID())
	if err != nil {
		r.reply(ctx, "❌ Failed to load your profile, please try again later.")
		return
	}
	if profile == nil {
		profile = &models.Profile{
			UserID: ctx.AuthorID(),
			Alters: make(map[string]models.Alter),
		}
	}

	if _, exists := profile.FindAlter(name); exists {
		r.reply(ctx, fmt.Sprintf("❌ An alter named **%s** already exists.", name))
		return
	}

	profile.Alters[name] = models.Alter{
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.SaveProfile(ctx.AuthorID(), profile); err != nil {
		r.reply(ctx, "❌ Failed to save your profile, please try again later.")
		return
	}
	r.cache.Rebuild()

	embed := createEmbed("✅ Alter Created",
		fmt.Sprintf("Alter **%s** has been created!\n\nUse `!set_proxy %s <proxy_tag>` to give them a proxy tag.", name, name), 0)
	r.replyEmbed(ctx, embed)
}

// deleteAlter handles "!delete_alter <name>".
func (r *Router) deleteAlter(ctx *Context) {
	name := strings.TrimSpace(ctx.RawArgs)
	if name == "" {
		r.reply(ctx, usage("!delete_alter <name>", "!delete_alter Alex"))
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

	delete(profile.Alters, actualName)
	if err := r.store.SaveProfile(ctx.AuthorID(), profile); err != nil {
		r.reply(ctx, "❌ Failed to save your profile, please try again later.")
		return
	}
	r.cache.Rebuild()
	r.reply(ctx, fmt.Sprintf("✅ Alter '%s' has been deleted.", actualName))
}

// listAlters handles "!list_alters".
func (r *Router) listAlters(ctx *Context) {
	profile, err := r.store.GetProfile(ctx.AuthorID())
	if err != nil || profile == nil || len(profile.Alters) == 0 {
		r.reply(ctx, "❌ You don't have any alters set up.")
		return
	}

	names := make([]string, 0, len(profile.Alters))
	for name := range profile.Alters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := profile.Alters[names[i]], profile.Alters[names[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return names[i] < names[j]
	})

	var lines []string
	for _, name := range names {
		alter := profile.Alters[name]
		line := fmt.Sprintf("• **%s**", name)
		if alter.Proxy != "" {
			line += fmt.Sprintf(" - `%s`", alter.Proxy)
		}
		lines = append(lines, line)
	}

	r.replyEmbed(ctx, createEmbed(
		fmt.Sprintf("Your Alters (%d)", len(names)),
		strings.Join(lines, "\n"), 0))
}
