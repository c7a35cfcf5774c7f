/*
Package trie implements the vocabulary prefix tree used for restoration.

Every inserted word gets one node per rune. Terminal nodes carry the word
frequency (how many times it was inserted) and every node counts how many
insertions passed through it. Patterns use a single-rune wildcard, so
"ra*n*ow" matches exactly seven letter words with fixed letters at the
other positions.

	t := trie.New()
	t.Insert("rainbow", 5)
	t.Insert("random", 2)
	matches := t.FindMatches("ra*n*ow") // [{rainbow 5}]

Among the matches sharing the highest frequency, the order is shuffled on
each call using the trie's random source. Use WithRand to pin it in tests.
*/
package trie

import (
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultWildcard is the rune that matches any single rune in a pattern.
const DefaultWildcard = '*'

var (
	// ErrEmptyWord is returned when inserting an empty string.
	ErrEmptyWord = errors.New("trie: empty word")
	// ErrInvalidCount is returned when an insertion count is below 1.
	ErrInvalidCount = errors.New("trie: count must be at least 1")
	// ErrWildcardInWord is returned when a word contains the wildcard rune.
	ErrWildcardInWord = errors.New("trie: word contains the wildcard rune")
)

// Node is a single rune step of the tree. Children are owned by their parent only.
type Node struct {
	children    map[rune]*Node
	terminal    bool
	frequency   int
	prefixCount int
}

func newNode() *Node {
	return &Node{children: make(map[rune]*Node)}
}

// Terminal reports whether a word ends at this node.
func (n *Node) Terminal() bool { return n.terminal }

// Frequency is the number of insertions ending at this node.
func (n *Node) Frequency() int { return n.frequency }

// PrefixCount is the number of insertions that passed through this node.
func (n *Node) PrefixCount() int { return n.prefixCount }

// Child returns the child reached by r, or nil.
func (n *Node) Child(r rune) *Node { return n.children[r] }

// Keys returns the child runes in ascending order.
func (n *Node) Keys() []rune {
	keys := make([]rune, 0, len(n.children))
	for r := range n.children {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Candidate is a word with its frequency, produced by enumeration and matching.
type Candidate struct {
	Word      string `msgpack:"w"`
	Frequency int    `msgpack:"f"`
}

// Trie is the vocabulary prefix tree.
type Trie struct {
	root     *Node
	total    int
	unique   int
	wildcard rune

	rng   *rand.Rand
	rngMu sync.Mutex
	mu    sync.RWMutex
}

// Option configures a Trie.
type Option func(*Trie)

// WithRand sets the random source used to shuffle the top frequency tier.
func WithRand(r *rand.Rand) Option {
	return func(t *Trie) {
		if r != nil {
			t.rng = r
		}
	}
}

// WithWildcard changes the pattern wildcard rune.
func WithWildcard(w rune) Option {
	return func(t *Trie) {
		t.wildcard = w
	}
}

// New creates an empty trie.
func New(opts ...Option) *Trie {
	t := &Trie{
		root:     newNode(),
		wildcard: DefaultWildcard,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		seed := uint64(time.Now().UnixNano())
		t.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return t
}

// Wildcard returns the rune matching any single rune in patterns.
func (t *Trie) Wildcard() rune { return t.wildcard }

// Root exposes the root node for read-only walkers such as the fuzzy matcher.
// Callers must hold a read view via View.
func (t *Trie) Root() *Node { return t.root }

// View runs fn with the trie read-locked.
func (t *Trie) View(fn func(root *Node)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.root)
}

// Add inserts word once.
func (t *Trie) Add(word string) error {
	return t.Insert(word, 1)
}

// Insert adds count occurrences of word.
func (t *Trie) Insert(word string, count int) error {
	if word == "" {
		return ErrEmptyWord
	}
	if count < 1 {
		return ErrInvalidCount
	}
	if strings.ContainsRune(word, t.wildcard) {
		return ErrWildcardInWord
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	for _, r := range word {
		child, ok := node.children[r]
		if !ok {
			child = newNode()
			node.children[r] = child
		}
		child.prefixCount += count
		node = child
	}
	if !node.terminal {
		t.unique++
	}
	node.terminal = true
	node.frequency += count
	t.total += count
	return nil
}

// Search reports whether word was inserted and not deleted since.
func (t *Trie) Search(word string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(word)
	return node != nil && node.terminal
}

// Frequency returns the frequency of word, 0 when absent.
func (t *Trie) Frequency(word string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(word)
	if node == nil || !node.terminal {
		return 0
	}
	return node.frequency
}

// PrefixCount returns how many insertions passed through prefix.
func (t *Trie) PrefixCount(prefix string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if prefix == "" {
		return t.total
	}
	node := t.find(prefix)
	if node == nil {
		return 0
	}
	return node.prefixCount
}

func (t *Trie) find(s string) *Node {
	node := t.root
	for _, r := range s {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// step is one edge of a deletion path.
type step struct {
	parent *Node
	key    rune
}

// Delete removes word and prunes nodes that no longer lead anywhere.
// It reports false when word is not present.
func (t *Trie) Delete(word string) bool {
	if word == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := make([]step, 0, len(word))
	node := t.root
	for _, r := range word {
		child, ok := node.children[r]
		if !ok {
			return false
		}
		path = append(path, step{parent: node, key: r})
		node = child
	}
	if !node.terminal {
		return false
	}

	freq := node.frequency
	node.terminal = false
	node.frequency = 0
	t.total -= freq
	t.unique--

	for _, s := range path {
		s.parent.children[s.key].prefixCount -= freq
	}

	for i := len(path) - 1; i >= 0; i-- {
		parent, key := path[i].parent, path[i].key
		child := parent.children[key]
		if child.terminal || len(child.children) > 0 {
			break
		}
		delete(parent.children, key)
	}
	return true
}

// Clear drops every word.
func (t *Trie) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = newNode()
	t.total = 0
	t.unique = 0
}

// Replace swaps the contents of other into t and leaves other empty.
// It is used to apply a fully loaded vocabulary in one step.
func (t *Trie) Replace(other *Trie) {
	if other == nil || other == t {
		return
	}
	other.mu.Lock()
	root, total, unique := other.root, other.total, other.unique
	other.root, other.total, other.unique = newNode(), 0, 0
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.root, t.total, t.unique = root, total, unique
}

// TotalWords is the sum of all insertion counts.
func (t *Trie) TotalWords() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// UniqueWords is the number of distinct stored words.
func (t *Trie) UniqueWords() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unique
}

// Words returns every stored word in depth-first, rune-ascending order.
func (t *Trie) Words() []Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	words := make([]Candidate, 0, t.unique)
	var buf []rune
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.terminal {
			words = append(words, Candidate{Word: string(buf), Frequency: n.frequency})
		}
		for _, r := range n.Keys() {
			buf = append(buf, r)
			walk(n.children[r])
			buf = buf[:len(buf)-1]
		}
	}
	walk(t.root)
	return words
}

// FindMatches returns the words matching pattern, where the wildcard stands
// for exactly one rune. Results are ordered by frequency descending and then
// alphabetically, except that the words tied at the highest frequency come
// first in a random order.
func (t *Trie) FindMatches(pattern string) []Candidate {
	if pattern == "" {
		return nil
	}
	p := []rune(pattern)

	t.mu.RLock()
	var matches []Candidate
	buf := make([]rune, 0, len(p))
	var walk func(n *Node, idx int)
	walk = func(n *Node, idx int) {
		if idx == len(p) {
			if n.terminal {
				matches = append(matches, Candidate{Word: string(buf), Frequency: n.frequency})
			}
			return
		}
		if p[idx] == t.wildcard {
			for r, child := range n.children {
				buf = append(buf, r)
				walk(child, idx+1)
				buf = buf[:len(buf)-1]
			}
			return
		}
		if child, ok := n.children[p[idx]]; ok {
			buf = append(buf, p[idx])
			walk(child, idx+1)
			buf = buf[:len(buf)-1]
		}
	}
	walk(t.root, 0)
	t.mu.RUnlock()

	SortCandidates(matches)
	t.shuffleTop(matches)
	return matches
}

// SortCandidates orders by frequency descending, then word ascending.
func SortCandidates(c []Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Frequency != c[j].Frequency {
			return c[i].Frequency > c[j].Frequency
		}
		return c[i].Word < c[j].Word
	})
}

// TopTier returns the leading run of candidates sharing the first frequency.
func TopTier(c []Candidate) []Candidate {
	if len(c) == 0 {
		return nil
	}
	n := 1
	for n < len(c) && c[n].Frequency == c[0].Frequency {
		n++
	}
	return c[:n]
}

func (t *Trie) shuffleTop(sorted []Candidate) {
	top := TopTier(sorted)
	if len(top) < 2 {
		return
	}
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	t.rng.Shuffle(len(top), func(i, j int) {
		top[i], top[j] = top[j], top[i]
	})
}
