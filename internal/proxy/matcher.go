package proxy

import (
	"strings"

	"proxybot/internal/database/models"
)

// AlterInfo is the display metadata the dispatcher needs for one alter.
type AlterInfo struct {
	Name        string
	DisplayName string
	Avatar      string
	ProxyAvatar string
	Color       int
}

// CompiledEntry is one alter's parsed proxy tag, ready for matching.
type CompiledEntry struct {
	AlterInfo
	Prefix string
	Suffix string
}

// UserEntry is one account's cache record: the ordered manual patterns plus
// the full alter set for autoproxy target resolution.
type UserEntry struct {
	Patterns     []CompiledEntry
	Alters       map[string]AlterInfo
	SystemTag    string
	SystemAvatar string
}

// Decision is a positive match outcome.
type Decision struct {
	Alter   AlterInfo
	Content string
	// Manual is true when a proxy tag matched, false for autoproxy.
	Manual bool
}

// Match decides whether a message should be proxied for this account.
// Manual patterns always take priority over autoproxy, in pattern order
// with the first match winning. Autoproxy hands the content through
// unmodified; manual matches strip the tag.
//
// A nil return is the normal outcome for most messages, not an error.
func Match(content string, attachments int, entry *UserEntry, rule models.AutoproxySettings) *Decision {
	if entry == nil {
		return nil
	}

	for _, compiled := range entry.Patterns {
		if extracted, ok := matchPattern(content, attachments, compiled.Prefix, compiled.Suffix); ok {
			return &Decision{Alter: compiled.AlterInfo, Content: extracted, Manual: true}
		}
	}

	if !rule.Enabled {
		return nil
	}
	target := rule.Target()
	if target == "" {
		return nil
	}
	// The target must still exist in the alter set; stale latch and front
	// names silently stop matching.
	alter, ok := entry.Alters[target]
	if !ok {
		return nil
	}
	return &Decision{Alter: alter, Content: content, Manual: false}
}

// matchPattern checks one prefix/suffix pair against the content and
// returns the stripped remainder. A pattern with neither side never
// matches; an empty remainder only matches when attachments ride along.
func matchPattern(content string, attachments int, prefix, suffix string) (string, bool) {
	if content == "" || (prefix == "" && suffix == "") {
		return "", false
	}
	if prefix != "" && !strings.HasPrefix(content, prefix) {
		return "", false
	}
	if suffix != "" && !strings.HasSuffix(content, suffix) {
		return "", false
	}
	if len(content) < len(prefix)+len(suffix) {
		return "", false
	}

	extracted := extractContent(content, prefix, suffix)
	if strings.TrimSpace(extracted) == "" && attachments == 0 {
		return "", false
	}
	return extracted, true
}

// extractContent removes the prefix then the suffix, trimming the freed
// side after each cut. Prefix before suffix; order matters for patterns
// whose sides overlap. When trimming leaves less text than the suffix,
// nothing remains to extract.
func extractContent(content, prefix, suffix string) string {
	if prefix != "" {
		content = strings.TrimLeft(content[len(prefix):], " \t")
	}
	if suffix != "" {
		if len(content) < len(suffix) {
			return ""
		}
		content = strings.TrimRight(content[:len(content)-len(suffix)], " \t")
	}
	return content
}
