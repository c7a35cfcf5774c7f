// Package token splits text into word, punctuation and newline tokens and
// joins them back with natural spacing.
package token

import (
	"strings"
	"unicode"
)

// Newline is the line boundary token.
const Newline = "\n"

// closers never get a space in front of them when joining.
var closers = map[string]bool{
	".": true, ",": true, "!": true, "?": true, ";": true,
	":": true, ")": true, "]": true, "}": true,
}

// IsWordRune reports whether r belongs in a word token.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

// Tokenize splits text into tokens. Runs of letters, digits, apostrophes and
// the wildcard form one token, every other non-space rune is its own token,
// every newline is kept and the rest of the whitespace is dropped.
func Tokenize(text string, wildcard rune) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case IsWordRune(r) || r == wildcard:
			word.WriteRune(r)
		case r == '\n':
			flush()
			tokens = append(tokens, Newline)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}

// IsMasked reports whether tok contains the wildcard anywhere.
func IsMasked(tok string, wildcard rune) bool {
	return strings.ContainsRune(tok, wildcard)
}

// IsWord reports whether tok is a word or masked word rather than
// punctuation or a newline.
func IsWord(tok string, wildcard rune) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !IsWordRune(r) && r != wildcard {
			return false
		}
	}
	return true
}

// Join reassembles tokens. No separator goes at the start, before a newline
// or right after one, closing punctuation attaches to the previous token and
// everything else gets a single space.
func Join(tokens []string) string {
	var b strings.Builder
	prev := ""
	for i, tok := range tokens {
		if i > 0 && tok != Newline && prev != Newline && !closers[tok] {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
		prev = tok
	}
	return b.String()
}

// Words returns the lower-cased word tokens of a line, used to fit and to
// query the language model.
func Words(line string) []string {
	fields := strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !IsWordRune(r)
	})
	return fields
}
