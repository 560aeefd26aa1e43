package receptionist

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// TrimForSpeech prepares model text for a voice channel: strips markup and
// symbol noise, collapses whitespace, and caps the length, preferring to
// cut at a sentence boundary.
func TrimForSpeech(raw string, maxChars int) string {
	text := sanitizeSpeechText(raw)
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return truncateAtSentence(text, maxChars)
}

func sanitizeSpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"#", " ",
		"~", " ",
		"|", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '\n' || r == '\r' || r == '\t' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Drops emoji and symbol glyphs that sound unnatural when spoken.
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// truncateAtSentence cuts text to at most maxChars, ending at the last
// sentence terminator when one exists in the back half of the budget, and
// at the last word break otherwise.
func truncateAtSentence(text string, maxChars int) string {
	cut := maxChars
	for cut > 0 && !isBoundarySafe(text, cut) {
		cut--
	}
	head := text[:cut]

	lastSentence := strings.LastIndexAny(head, ".!?")
	if lastSentence >= maxChars/2 {
		return strings.TrimSpace(head[:lastSentence+1])
	}
	if lastSpace := strings.LastIndex(head, " "); lastSpace > 0 {
		return strings.TrimSpace(head[:lastSpace])
	}
	return strings.TrimSpace(head)
}

// isBoundarySafe reports whether cutting at byte offset i keeps the string
// valid UTF-8.
func isBoundarySafe(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return (s[i] & 0xC0) != 0x80
}
