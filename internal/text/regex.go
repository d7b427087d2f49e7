// Package text normalizes user-provided text for embedding in prompts.
package text

import (
	"regexp"
	"strings"
)

var unicodeReplacer = strings.NewReplacer(
	"\u2060", "", "\u180E", "",
	"\u2028", "\n", "\u2029", "\n\n",
	"\u200B", " ", "\u200C", " ",
	"\u200D", "", "\uFEFF", "",
	"\u00AD", "", "\u205F", " ",
	"\u202A", "", "\u202B", "",
	"\u202C", "", "\u202D", "", "\u202E", "",
)

var (
	controlCharsRegex     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multipleNewlinesRegex = regexp.MustCompile(`\n{3,}`)
)
