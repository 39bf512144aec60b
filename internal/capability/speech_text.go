package capability

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	thinkBlockPattern  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	spokenURLPattern   = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`[^`]*`")
	markdownLinkScrub  = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// SpokenText prepares assistant text for the Speaker: reasoning blocks from
// thinking models are dropped entirely, then markup and symbol noise is
// scrubbed so the utterance sounds conversational.
func SpokenText(raw string) string {
	raw = thinkBlockPattern.ReplaceAllString(raw, " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkScrub.ReplaceAllString(raw, "$1")
	raw = spokenURLPattern.ReplaceAllString(raw, " ")
	raw = strings.NewReplacer("*", " ", "_", " ", "#", " ", "~", " ", "|", " ").Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Emoji and symbol glyphs sound wrong when spoken.
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
