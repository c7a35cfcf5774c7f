/*
Package lm is the bigram language model used to pick among restoration
candidates by their neighbours.

A model is fitted once from a line oriented corpus. Every non-blank line is
lower-cased, split into word tokens and wrapped in the sentence markers BOS
and EOS. Bigrams are counted within a line only. Probabilities use
add-k smoothing:

	P(word | prev) = (c(prev, word) + k) / (c(prev, *) + k * max(1, V))

where V is the number of distinct tokens seen, markers included.
*/
package lm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/token"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// BOS marks the start of a line.
	BOS = "<s>"
	// EOS marks the end of a line.
	EOS = "</s>"
	// DefaultSmoothing is the add-k constant.
	DefaultSmoothing = 1.0
)

// Model holds unigram and bigram counts. It is not modified after fitting,
// so it is safe for concurrent readers.
type Model struct {
	k        float64
	unigrams map[string]int
	bigrams  map[string]map[string]int
	// following[prev] is the sum of c(prev, w) over all w
	following map[string]int
	tokens    int
}

type options struct {
	k        float64
	encoding string
}

// Option configures fitting.
type Option func(*options)

// WithSmoothing sets the add-k constant. Values <= 0 keep the default.
func WithSmoothing(k float64) Option {
	return func(o *options) {
		if k > 0 && !math.IsInf(k, 0) && !math.IsNaN(k) {
			o.k = k
		}
	}
}

// WithEncoding sets the corpus charset for FitFile.
func WithEncoding(name string) Option {
	return func(o *options) {
		o.encoding = name
	}
}

func buildOptions(opts []Option) options {
	o := options{k: DefaultSmoothing}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newModel(k float64) *Model {
	return &Model{
		k:         k,
		unigrams:  make(map[string]int),
		bigrams:   make(map[string]map[string]int),
		following: make(map[string]int),
	}
}

// Fit builds a model from the corpus in r.
func Fit(r io.Reader, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	m := newModel(o.k)

	br := bufio.NewReader(r)
	lines := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines++
			m.addLine(line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus: %w", err)
		}
	}

	log.Debugf("fitted model on %d lines: %d tokens, V=%d", lines, m.tokens, m.VocabularySize())
	return m, nil
}

// FitFile fits a model from a corpus file. Compressed and legacy-encoded
// files are handled by the source package.
func FitFile(path string, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	rc, err := source.Open(path, source.WithEncoding(o.encoding))
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer rc.Close()

	m, err := Fit(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to fit %s: %w", path, err)
	}
	return m, nil
}

// addLine counts the unigrams and bigrams of one wrapped line. Pairs never
// span lines, so EOS is never followed by anything.
func (m *Model) addLine(line string) {
	words := token.Words(line)
	if len(words) == 0 {
		return
	}

	seq := make([]string, 0, len(words)+2)
	seq = append(seq, BOS)
	seq = append(seq, words...)
	seq = append(seq, EOS)

	for i, w := range seq {
		m.unigrams[w]++
		m.tokens++
		if i == 0 {
			continue
		}
		prev := seq[i-1]
		row := m.bigrams[prev]
		if row == nil {
			row = make(map[string]int)
			m.bigrams[prev] = row
		}
		row[w]++
		m.following[prev]++
	}
}

// VocabularySize is V, the number of distinct tokens.
func (m *Model) VocabularySize() int { return len(m.unigrams) }

// Smoothing returns k.
func (m *Model) Smoothing() float64 { return m.k }

// Count returns the unigram count of w.
func (m *Model) Count(w string) int { return m.unigrams[w] }

// BigramCount returns c(prev, word).
func (m *Model) BigramCount(prev, word string) int { return m.bigrams[prev][word] }

// ProbBigram is the smoothed P(word | prev). It lies in (0, 1] and is 1 only
// for a model fitted on nothing.
func (m *Model) ProbBigram(prev, word string) float64 {
	num := float64(m.bigrams[prev][word]) + m.k
	den := float64(m.following[prev]) + m.k*float64(max(1, len(m.unigrams)))
	return num / den
}

// LogProbContext is ln P(word|left), plus ln P(right|word) when right is
// not empty.
func (m *Model) LogProbContext(left, word, right string) float64 {
	lp := math.Log(m.ProbBigram(left, word))
	if right != "" {
		lp += math.Log(m.ProbBigram(word, right))
	}
	return lp
}

// Choice is the outcome of ChooseBest. Scores and Probabilities follow the
// order of the candidates passed in.
type Choice struct {
	Word          string    `msgpack:"w"`
	Confidence    float64   `msgpack:"c"`
	Scores        []float64 `msgpack:"s"`
	Probabilities []float64 `msgpack:"p"`
	OK            bool      `msgpack:"ok"`
}

// ChooseBest scores every candidate in context and returns the highest
// scoring one with its softmax probability as confidence. The first
// candidate wins exact ties. An empty candidate list yields a zero Choice.
func (m *Model) ChooseBest(candidates []string, left, right string) Choice {
	if len(candidates) == 0 {
		return Choice{}
	}

	scores := make([]float64, len(candidates))
	best := 0
	for i, c := range candidates {
		scores[i] = m.LogProbContext(left, c, right)
		if scores[i] > scores[best] {
			best = i
		}
	}

	probs := Softmax(scores)
	return Choice{
		Word:          candidates[best],
		Confidence:    probs[best],
		Scores:        scores,
		Probabilities: probs,
		OK:            true,
	}
}

// Softmax turns log scores into a distribution, subtracting the maximum
// first so large magnitudes do not overflow.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	top := scores[0]
	for _, s := range scores[1:] {
		top = max(top, s)
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Stats summarises a fitted model.
type Stats struct {
	Vocabulary int     `msgpack:"v"`
	Bigrams    int     `msgpack:"b"`
	Tokens     int     `msgpack:"t"`
	Smoothing  float64 `msgpack:"k"`
}

// Stats returns the model summary.
func (m *Model) Stats() Stats {
	pairs := 0
	for _, row := range m.bigrams {
		pairs += len(row)
	}
	return Stats{
		Vocabulary: len(m.unigrams),
		Bigrams:    pairs,
		Tokens:     m.tokens,
		Smoothing:  m.k,
	}
}

// snapshot is the serialized form of a Model.
type snapshot struct {
	Version  int                       `msgpack:"ver"`
	K        float64                   `msgpack:"k"`
	Tokens   int                       `msgpack:"t"`
	Unigrams map[string]int            `msgpack:"u"`
	Bigrams  map[string]map[string]int `msgpack:"b"`
}

const snapshotVersion = 1

// ErrSnapshotVersion is returned when loading a snapshot written by an
// incompatible version.
var ErrSnapshotVersion = errors.New("unsupported model snapshot version")

// Save writes the model as msgpack so it can be reloaded without refitting.
func (m *Model) Save(w io.Writer) error {
	snap := snapshot{
		Version:  snapshotVersion,
		K:        m.k,
		Tokens:   m.tokens,
		Unigrams: m.unigrams,
		Bigrams:  m.bigrams,
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}

	k := snap.K
	if k <= 0 {
		k = DefaultSmoothing
	}
	m := newModel(k)
	m.tokens = snap.Tokens
	for w, c := range snap.Unigrams {
		m.unigrams[w] = c
	}
	for prev, row := range snap.Bigrams {
		copied := make(map[string]int, len(row))
		for w, c := range row {
			copied[w] = c
			m.following[prev] += c
		}
		m.bigrams[prev] = copied
	}
	return m, nil
}

// SaveFile writes a snapshot to path.
func (m *Model) SaveFile(path string) error {
	f, err := utils.CreateFile(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a snapshot from path, which may be compressed.
func LoadFile(path string) (*Model, error) {
	rc, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Load(rc)
}
