package text

import (
	"strings"
	"unicode"
)

// normalizeLineWhitespace collapses runs of whitespace into a single space
// and trims the line.
func normalizeLineWhitespace(line string) string {
	var b strings.Builder
	var space bool

	for _, r := range line {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}

	return strings.TrimSpace(b.String())
}

// Normalize unifies line endings, drops invisible and control characters,
// collapses whitespace within each line and limits blank lines to one.
func Normalize(input string) string {
	if input == "" {
		return ""
	}

	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = unicodeReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")

	parts := strings.Split(s, "\n")
	for i := range parts {
		parts[i] = normalizeLineWhitespace(parts[i])
	}

	s = strings.Join(parts, "\n")
	s = multipleNewlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// SingleLine returns input normalized onto one line.
func SingleLine(input string) string {
	return strings.Join(strings.Fields(Normalize(input)), " ")
}
