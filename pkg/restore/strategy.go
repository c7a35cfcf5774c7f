package restore

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/trie"
)

// Mode selects how a masked token is restored.
type Mode string

const (
	// ModeBest picks one of the most frequent matches at random.
	ModeBest Mode = "best"
	// ModeAll lists every match.
	ModeAll Mode = "all"
	// ModeContext lets the language model pick using the neighbours.
	ModeContext Mode = "context"
)

// ParseMode accepts a mode name, case insensitive.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBest, ModeAll, ModeContext:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request is one masked token with its neighbouring words.
type Request struct {
	Token string
	Left  string
	Right string
}

// Outcome is what a strategy made of a request. Output equals the token
// when nothing matched.
type Outcome struct {
	Output     string
	Changed    bool
	Candidates []trie.Candidate
	// Choice is only set by the context strategy.
	Choice lm.Choice
}

// Strategy restores a single masked token.
type Strategy interface {
	Mode() Mode
	Restore(req Request) Outcome
}

func lookup(t *trie.Trie, tok string) []trie.Candidate {
	return t.FindMatches(strings.ToLower(tok))
}

// BestMatch returns a word from the highest frequency tier, chosen
// uniformly at random.
type BestMatch struct {
	trie *trie.Trie
	rng  *rand.Rand
	mu   sync.Mutex
}

// NewBestMatch creates the strategy. A nil rng is seeded from the clock.
func NewBestMatch(t *trie.Trie, rng *rand.Rand) *BestMatch {
	if rng == nil {
		rng = newRand(0)
	}
	return &BestMatch{trie: t, rng: rng}
}

func (s *BestMatch) Mode() Mode { return ModeBest }

func (s *BestMatch) Restore(req Request) Outcome {
	matches := lookup(s.trie, req.Token)
	if len(matches) == 0 {
		return Outcome{Output: req.Token}
	}
	top := trie.TopTier(matches)

	s.mu.Lock()
	pick := top[s.rng.IntN(len(top))]
	s.mu.Unlock()

	return Outcome{Output: pick.Word, Changed: true, Candidates: matches}
}

// AllMatches lists every match as ['a','b'].
type AllMatches struct {
	trie *trie.Trie
}

// NewAllMatches creates the strategy.
func NewAllMatches(t *trie.Trie) *AllMatches {
	return &AllMatches{trie: t}
}

func (s *AllMatches) Mode() Mode { return ModeAll }

func (s *AllMatches) Restore(req Request) Outcome {
	matches := lookup(s.trie, req.Token)
	if len(matches) == 0 {
		return Outcome{Output: req.Token}
	}
	return Outcome{Output: FormatAll(matches), Changed: true, Candidates: matches}
}

// FormatAll renders candidates as a bracketed list of quoted words.
func FormatAll(matches []trie.Candidate) string {
	items := make([]string, len(matches))
	for i, m := range matches {
		items[i] = "'" + m.Word + "'"
	}
	return "[" + strings.Join(items, ",") + "]"
}

// ContextBest asks the language model which candidate fits between the
// neighbours. Acceptance against a threshold is left to the caller.
type ContextBest struct {
	trie  *trie.Trie
	model *lm.Model
}

// NewContextBest creates the strategy.
func NewContextBest(t *trie.Trie, m *lm.Model) *ContextBest {
	return &ContextBest{trie: t, model: m}
}

func (s *ContextBest) Mode() Mode { return ModeContext }

func (s *ContextBest) Restore(req Request) Outcome {
	matches := lookup(s.trie, req.Token)
	if len(matches) == 0 {
		return Outcome{Output: req.Token}
	}
	words := make([]string, len(matches))
	for i, m := range matches {
		words[i] = m.Word
	}
	left, right := req.Left, req.Right
	if left == "" {
		left = lm.BOS
	}
	if right == "" {
		right = lm.EOS
	}
	choice := s.model.ChooseBest(words, left, right)
	return Outcome{Output: choice.Word, Changed: choice.OK, Candidates: matches, Choice: choice}
}
