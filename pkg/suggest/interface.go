// Package suggest completes vocabulary prefixes, keeping the capitalization
// the user typed.
package suggest

import "github.com/bastiangx/wordmend/pkg/trie"

// ICompleter defines the interface for prefix completion engines
type ICompleter interface {
	// Complete returns suggestions for a given prefix with a limit
	Complete(prefix string, limit int) []Suggestion

	// AddWord sets the frequency of a word
	AddWord(word string, frequency int)

	// RemoveWord drops a word
	RemoveWord(word string)

	// Rebuild replaces the index with a fresh vocabulary
	Rebuild(words []trie.Candidate)

	// Stats returns statistics about the indexed vocabulary
	Stats() map[string]int
}
