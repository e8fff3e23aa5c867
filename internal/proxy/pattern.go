package proxy

import "strings"

// placeholder marks where the message text sits inside a proxy tag, as in
// "A: TEXT" or "TEXT -a".
const placeholder = "TEXT"

// ParseProxyPattern splits a user-authored proxy tag into a prefix and a
// suffix used for matching and stripping. An empty return value means that
// side is absent; a pattern with neither side never matches.
//
// Pure string work, deterministic, no I/O.
func ParseProxyPattern(pattern string) (prefix, suffix string) {
	pattern = strings.TrimSpace(pattern)

	// Older profile documents carry a literal "None" glued to the tag where
	// a suffix was never set. Strip it before parsing.
	if strings.HasSuffix(pattern, "None") {
		pattern = strings.TrimSpace(strings.TrimSuffix(pattern, "None"))
	}

	if pattern == "" {
		return "", ""
	}

	if strings.Contains(pattern, placeholder) {
		parts := strings.SplitN(pattern, placeholder, 2)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	// "name:" style tags are prefix-only, colon included.
	if idx := strings.Index(pattern, ":"); idx >= 0 {
		return pattern[:idx+1], ""
	}

	return pattern, ""
}
