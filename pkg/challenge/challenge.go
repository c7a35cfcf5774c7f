// Package challenge picks a vocabulary word, hides some of its letters and
// checks guesses, as a quick way to try a vocabulary by hand.
package challenge

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/wordmend/pkg/trie"
)

// Level is the difficulty of a round.
type Level int

const (
	Easy Level = iota + 1
	Medium
	Hard
)

// ErrNoEligibleWords is returned when the vocabulary has no word of the
// length a level needs.
var ErrNoEligibleWords = errors.New("no eligible words for this difficulty")

func (l Level) String() string {
	switch l {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts 1-3 or the level name. Anything else is Easy.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2", "medium":
		return Medium
	case "3", "hard":
		return Hard
	}
	return Easy
}

// fits reports whether a word of n runes belongs to the level.
func (l Level) fits(n int) bool {
	switch l {
	case Medium:
		return n >= 7 && n <= 8
	case Hard:
		return n >= 9
	}
	return n >= 5 && n <= 6
}

// hidden is how many letters to mask in a word of n runes.
func (l Level) hidden(n int) int {
	switch l {
	case Medium:
		if n >= 7 {
			return 3
		}
		return 2
	case Hard:
		if n >= 9 {
			return 5
		}
		return 4
	}
	return 1
}

// Round is one puzzle.
type Round struct {
	Level  Level
	Word   string
	Masked string
}

// Check compares a guess with the word, ignoring case and surrounding space.
func (r Round) Check(guess string) bool {
	return strings.ToLower(strings.TrimSpace(guess)) == r.Word
}

// Game draws rounds from a vocabulary.
type Game struct {
	trie *trie.Trie
	rng  *rand.Rand
}

// New creates a game. A nil rng is seeded from the clock.
func New(t *trie.Trie, rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Game{trie: t, rng: rng}
}

// Pick returns a random word fitting the level.
func (g *Game) Pick(level Level) (string, error) {
	var eligible []string
	for _, c := range g.trie.Words() {
		if level.fits(utf8.RuneCountInString(c.Word)) {
			eligible = append(eligible, c.Word)
		}
	}
	if len(eligible) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoEligibleWords, level)
	}
	return eligible[g.rng.IntN(len(eligible))], nil
}

// Mask hides the level's number of letters at random positions.
func (g *Game) Mask(word string, level Level) string {
	runes := []rune(word)
	n := min(level.hidden(len(runes)), len(runes))
	wildcard := g.trie.Wildcard()
	for _, i := range g.rng.Perm(len(runes))[:n] {
		runes[i] = wildcard
	}
	return string(runes)
}

// Next picks and masks a word.
func (g *Game) Next(level Level) (Round, error) {
	word, err := g.Pick(level)
	if err != nil {
		return Round{}, err
	}
	return Round{Level: level, Word: word, Masked: g.Mask(word, level)}, nil
}
