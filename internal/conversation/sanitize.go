package conversation

import "strings"

// maxInputLength bounds how much of a user reply reaches a prompt.
const maxInputLength = 200

// Sanitize prepares untrusted chat input for inclusion in a prompt. It
// strips C0 control characters (0x00-0x1F) and DEL, removes backtick,
// double-quote, and backslash (the characters that break out of a prompt
// template or inject role markers), and truncates to 200 characters.
// Control stripping runs in the same pass as the removals; a raw newline is
// itself a control character and never survives. Idempotent.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			continue
		}
		switch r {
		case '`', '"', '\\':
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	runes := []rune(out)
	if len(runes) > maxInputLength {
		out = string(runes[:maxInputLength])
	}
	return out
}
