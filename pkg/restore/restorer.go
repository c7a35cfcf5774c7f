/*
Package restore fills in masked words of a text.

A masked token is any word token containing the trie wildcard. Each one is
handed to a Strategy:

  - best picks one of the most frequent vocabulary matches
  - all lists every match
  - context asks the language model which match fits its neighbours and
    keeps the token unless the confidence reaches a threshold

Substituted words are wrapped in angle brackets so they stand out. The
Restorer also keeps a history of every decision and offers fuzzy
suggestions for unmasked words missing from the vocabulary.
*/
package restore

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/wordmend/pkg/fuzzy"
	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/token"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/log"
)

// DefaultThreshold is the confidence a context choice needs to be applied.
const DefaultThreshold = 0.6

// MaxHistory bounds the kept decisions; the oldest are dropped first.
const MaxHistory = 10000

var (
	// ErrNoModel is returned when context restoration runs without a model.
	ErrNoModel = errors.New("no language model loaded")
	// ErrUnknownMode is returned for mode names other than best, all and context.
	ErrUnknownMode = errors.New("unknown restore mode")
	// ErrInvalidThreshold is returned for thresholds outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)

// ReviewRow records one context decision, applied or not.
type ReviewRow struct {
	Original   string   `msgpack:"o"`
	Choice     string   `msgpack:"ch"`
	Confidence float64  `msgpack:"c"`
	Left       string   `msgpack:"l"`
	Right      string   `msgpack:"r"`
	Candidates []string `msgpack:"cs"`
	Accepted   bool     `msgpack:"a"`
}

// HistoryEntry is one restoration decision.
type HistoryEntry struct {
	Token  string `msgpack:"t"`
	Output string `msgpack:"o"`
	Mode   Mode   `msgpack:"m"`
}

// Result is a restored text with its counts.
type Result struct {
	Text string
	Rows []ReviewRow
	// Masked counts masked tokens, Restored those that were substituted.
	Masked    int
	Restored  int
	Unmatched []string
}

// Restorer ties the vocabulary, the optional model and the strategies together.
type Restorer struct {
	trie      *trie.Trie
	model     *lm.Model
	threshold float64
	best      *BestMatch

	mu      sync.Mutex
	history []HistoryEntry
}

// Option configures a Restorer.
type Option func(*Restorer)

// WithModel sets the language model used by the context mode.
func WithModel(m *lm.Model) Option {
	return func(r *Restorer) {
		r.model = m
	}
}

// WithRand sets the random source of the best match strategy.
func WithRand(rng *rand.Rand) Option {
	return func(r *Restorer) {
		r.best = NewBestMatch(r.trie, rng)
	}
}

// WithThreshold sets the context acceptance threshold. Values outside
// [0, 1] are ignored.
func WithThreshold(th float64) Option {
	return func(r *Restorer) {
		if th >= 0 && th <= 1 {
			r.threshold = th
		}
	}
}

// New creates a Restorer over t.
func New(t *trie.Trie, opts ...Option) *Restorer {
	r := &Restorer{
		trie:      t,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.best == nil {
		r.best = NewBestMatch(t, nil)
	}
	return r
}

// newRand seeds a generator, from the clock when seed is 0.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRand returns a generator for WithRand. Seed 0 means time based.
func NewRand(seed uint64) *rand.Rand { return newRand(seed) }

// Trie returns the vocabulary.
func (r *Restorer) Trie() *trie.Trie { return r.trie }

// SetModel replaces the language model. nil unloads it.
func (r *Restorer) SetModel(m *lm.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model = m
}

// Model returns the current language model or nil.
func (r *Restorer) Model() *lm.Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

// Threshold returns the context acceptance threshold.
func (r *Restorer) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

// SetThreshold changes the context acceptance threshold.
func (r *Restorer) SetThreshold(th float64) error {
	if th < 0 || th > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, th)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = th
	return nil
}

// Strategy returns the strategy for mode.
func (r *Restorer) Strategy(mode Mode) (Strategy, error) {
	switch mode {
	case ModeBest:
		return r.best, nil
	case ModeAll:
		return NewAllMatches(r.trie), nil
	case ModeContext:
		m := r.Model()
		if m == nil {
			return nil, ErrNoModel
		}
		return NewContextBest(r.trie, m), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// RestoreText restores every masked token of text. The context mode uses
// the Restorer's threshold.
func (r *Restorer) RestoreText(text string, mode Mode) (string, error) {
	res, err := r.Restore(text, mode, r.Threshold())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// RestoreWithContext runs the context mode with an explicit threshold and
// returns a review row for every masked token. A token without candidates
// gets a row with an empty choice and zero confidence.
func (r *Restorer) RestoreWithContext(text string, threshold float64) (string, []ReviewRow, error) {
	if threshold < 0 || threshold > 1 {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	res, err := r.Restore(text, ModeContext, threshold)
	if err != nil {
		return "", nil, err
	}
	return res.Text, res.Rows, nil
}

// Restore is the full form of RestoreText. threshold only matters in the
// context mode.
func (r *Restorer) Restore(text string, mode Mode, threshold float64) (*Result, error) {
	strategy, err := r.Strategy(mode)
	if err != nil {
		return nil, err
	}

	wildcard := r.trie.Wildcard()
	tokens := token.Tokenize(text, wildcard)
	out := make([]string, len(tokens))
	copy(out, tokens)

	res := &Result{}
	var history []HistoryEntry
	for i, tok := range tokens {
		if !token.IsMasked(tok, wildcard) {
			continue
		}
		res.Masked++

		req := Request{Token: tok}
		if mode == ModeContext {
			req.Left, req.Right = neighbours(tokens, i, wildcard)
		}
		o := strategy.Restore(req)

		switch {
		case !o.Changed:
			res.Unmatched = append(res.Unmatched, tok)
			if mode == ModeContext {
				res.Rows = append(res.Rows, ReviewRow{Original: tok, Left: req.Left, Right: req.Right})
			}
		case mode == ModeContext:
			row := ReviewRow{
				Original:   tok,
				Choice:     o.Choice.Word,
				Confidence: o.Choice.Confidence,
				Left:       req.Left,
				Right:      req.Right,
				Candidates: candidateWords(o.Candidates),
				Accepted:   o.Choice.Confidence >= threshold,
			}
			res.Rows = append(res.Rows, row)
			if row.Accepted {
				out[i] = "<" + o.Output + ">"
				res.Restored++
			}
		case mode == ModeBest:
			out[i] = "<" + o.Output + ">"
			res.Restored++
		default:
			out[i] = o.Output
			res.Restored++
		}
		history = append(history, HistoryEntry{Token: tok, Output: out[i], Mode: mode})
	}

	res.Text = token.Join(out)
	r.record(history)
	log.Debugf("restored %d of %d masked tokens in %s mode", res.Restored, res.Masked, mode)
	return res, nil
}

// RestoreWord restores a single token in isolation. Unmasked tokens are
// returned as they are.
func (r *Restorer) RestoreWord(tok string, mode Mode) (string, error) {
	if !token.IsMasked(tok, r.trie.Wildcard()) {
		return tok, nil
	}
	res, err := r.Restore(tok, mode, r.Threshold())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// neighbours finds the closest word tokens on the same line as tokens[i],
// lower-cased, with the sentence markers at line and text boundaries.
// Punctuation is transparent: in "the c*t, sat" the right neighbour is "sat".
func neighbours(tokens []string, i int, wildcard rune) (string, string) {
	left, right := lm.BOS, lm.EOS
	for j := i - 1; j >= 0 && tokens[j] != token.Newline; j-- {
		if token.IsWord(tokens[j], wildcard) {
			left = strings.ToLower(tokens[j])
			break
		}
	}
	for j := i + 1; j < len(tokens) && tokens[j] != token.Newline; j++ {
		if token.IsWord(tokens[j], wildcard) {
			right = strings.ToLower(tokens[j])
			break
		}
	}
	return left, right
}

func candidateWords(c []trie.Candidate) []string {
	words := make([]string, len(c))
	for i, m := range c {
		words[i] = m.Word
	}
	return words
}

func (r *Restorer) record(entries []HistoryEntry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, entries...)
	if over := len(r.history) - MaxHistory; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
}

// History returns a copy of the last MaxHistory decisions.
func (r *Restorer) History() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// ClearHistory forgets past decisions.
func (r *Restorer) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// FuzzyOptions controls SuggestFuzzy.
type FuzzyOptions struct {
	MaxDistance int
	Confusables *fuzzy.Confusables
	TopK        int
}

// Suggestion lists near matches for a word missing from the vocabulary.
type Suggestion struct {
	Token   string        `msgpack:"t"`
	Matches []fuzzy.Match `msgpack:"m"`
}

// SuggestFuzzy returns near matches for every unmasked word token of text
// that is not in the vocabulary. Tokens without any match are left out.
func (r *Restorer) SuggestFuzzy(text string, opts FuzzyOptions) []Suggestion {
	if opts.TopK <= 0 {
		opts.TopK = fuzzy.DefaultTopK
	}
	wildcard := r.trie.Wildcard()
	matcher := fuzzy.NewMatcher(r.trie, opts.Confusables)

	var out []Suggestion
	for _, tok := range token.Tokenize(text, wildcard) {
		if !token.IsWord(tok, wildcard) || token.IsMasked(tok, wildcard) {
			continue
		}
		if r.trie.Search(strings.ToLower(tok)) {
			continue
		}
		if matches := matcher.SearchTop(tok, opts.MaxDistance, opts.TopK); len(matches) > 0 {
			out = append(out, Suggestion{Token: tok, Matches: matches})
		}
	}
	return out
}
