package suggest

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Suggestion is a completed word and its vocabulary frequency.
type Suggestion struct {
	Word      string `msgpack:"w"`
	Frequency int    `msgpack:"f"`
}

// Completer is a patricia index over the vocabulary.
type Completer struct {
	trie         *patricia.Trie
	totalWords   int
	maxFrequency int
	minFrequency int
	mu           sync.RWMutex
}

// NewCompleter creates an empty index. Words below minFrequency are never
// suggested; values below 1 mean no threshold.
func NewCompleter(minFrequency int) *Completer {
	return &Completer{
		trie:         patricia.NewTrie(),
		minFrequency: max(1, minFrequency),
	}
}

// FromTrie indexes every word of t.
func FromTrie(t *trie.Trie, minFrequency int) *Completer {
	c := NewCompleter(minFrequency)
	c.Rebuild(t.Words())
	return c
}

// Rebuild replaces the index contents with words.
func (c *Completer) Rebuild(words []trie.Candidate) {
	fresh := patricia.NewTrie()
	maxFreq := 0
	for _, w := range words {
		fresh.Set(patricia.Prefix(w.Word), w.Frequency)
		maxFreq = max(maxFreq, w.Frequency)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.trie = fresh
	c.totalWords = len(words)
	c.maxFrequency = maxFreq
	log.Debugf("completion index rebuilt with %d words", len(words))
}

// AddWord sets the frequency of word, inserting it when new.
func (c *Completer) AddWord(word string, frequency int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := patricia.Prefix(strings.ToLower(word))
	if c.trie.Get(key) == nil {
		c.totalWords++
	}
	c.trie.Set(key, frequency)
	c.maxFrequency = max(c.maxFrequency, frequency)
}

// RemoveWord drops word from the index.
func (c *Completer) RemoveWord(word string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trie.Delete(patricia.Prefix(strings.ToLower(word))) {
		c.totalWords--
	}
}

// Complete returns words starting with prefix, most frequent first. The
// prefix itself is not suggested and the typed capitals are kept.
func (c *Completer) Complete(prefix string, limit int) []Suggestion {
	if prefix == "" {
		return nil
	}
	lowerPrefix := strings.ToLower(prefix)
	capitalPositions := CapitalPositions(prefix)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var suggestions []Suggestion
	err := c.trie.VisitSubtree(patricia.Prefix(lowerPrefix), func(p patricia.Prefix, item patricia.Item) error {
		word := string(p)
		if word == lowerPrefix {
			return nil
		}
		freq, ok := item.(int)
		if !ok {
			log.Errorf("Unknown item type: %T for word %s", item, word)
			return nil
		}
		if freq < c.minFrequency {
			return nil
		}
		suggestions = append(suggestions, Suggestion{
			Word:      ApplyCapitalization(word, capitalPositions),
			Frequency: freq,
		})
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
		return nil
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Frequency != suggestions[j].Frequency {
			return suggestions[i].Frequency > suggestions[j].Frequency
		}
		return suggestions[i].Word < suggestions[j].Word
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// Stats returns statistics about the index.
func (c *Completer) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]int{
		"totalWords":   c.totalWords,
		"maxFrequency": c.maxFrequency,
		"minFrequency": c.minFrequency,
	}
}

// CapitalPositions marks which runes of s are upper case.
func CapitalPositions(s string) []bool {
	positions := make([]bool, 0, len(s))
	for _, r := range s {
		positions = append(positions, unicode.IsUpper(r))
	}
	return positions
}

// ApplyCapitalization upper-cases the runes of word at the marked positions.
func ApplyCapitalization(word string, capitalPositions []bool) string {
	if len(capitalPositions) == 0 {
		return word
	}
	wordRunes := []rune(word)
	for i := 0; i < len(wordRunes) && i < len(capitalPositions); i++ {
		if capitalPositions[i] {
			wordRunes[i] = unicode.ToUpper(wordRunes[i])
		}
	}
	return string(wordRunes)
}
