package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// RedactedMessage is broadcast in place of chat text that trips the deny
// list. Room names and prompts are rejected outright instead.
const RedactedMessage = "msg removed for policy violation"

// DefaultDenyList covers the stock set of words rooms refuse to display.
var DefaultDenyList = []string{
	"fuck", "shit", "asshole", "bitch", "crap", "damn", "piss",
	"dick", "cunt", "whore", "slut", "anus",
}

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement string
}

// NewModerator builds the Aho-Corasick automaton over the lowercased deny
// list. Matches only count when they fall on whole words.
func NewModerator(denyList []string, replacement string) (*Moderator, error) {
	patterns := make([][]rune, len(denyList))
	for i, word := range denyList {
		patterns[i] = lowerRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// HasBannedContent reports whether text contains a deny-listed token as a
// whole word, case-insensitively. Empty text is never flagged.
func (m *Moderator) HasBannedContent(text string) bool {
	if text == "" {
		return false
	}
	runes := lowerRunes([]rune(text))
	spans := m.matcher.MultiPatternSearch(runes, false)
	for _, span := range spans {
		if isWholeWord(runes, span.Pos, span.Pos+len(span.Word)) {
			return true
		}
	}
	return false
}

// Redact returns the fixed replacement string when text is flagged,
// otherwise the original text unchanged.
func (m *Moderator) Redact(text string) string {
	if m.HasBannedContent(text) {
		return m.replacement
	}
	return text
}

func isWholeWord(runes []rune, start, end int) bool {
	if start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if end < len(runes) && isWordRune(runes[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lowerRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}
