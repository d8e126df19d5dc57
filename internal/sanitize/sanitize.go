// Package sanitize cleans free text from map documents before it is handed
// to an MCP client, so a description cannot pose as markup or instructions.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxDescriptionLength bounds a sanitized description, in bytes.
const MaxDescriptionLength = 500

var (
	// Tags and processing instructions: <b>, </system>, <tool x="1"/>, <?xml ...?>.
	reTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	reHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reRule        = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	reFence       = regexp.MustCompile("```+")
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
	reSpaceBefore = regexp.MustCompile(`[ \t]+\n`)
)

// Description returns s without control characters, tags, headings,
// horizontal rules or code fences, truncated to MaxDescriptionLength.
func Description(s string) string {
	if s == "" {
		return ""
	}

	s = strings.Map(func(r rune) rune {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = reTag.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "- ")
	s = reRule.ReplaceAllString(s, "")
	s = reFence.ReplaceAllString(s, "`")
	s = reSpaceBefore.ReplaceAllString(s, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")

	if len(s) > MaxDescriptionLength {
		s = truncateUTF8(s, MaxDescriptionLength)
	}
	return strings.TrimSpace(s)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
