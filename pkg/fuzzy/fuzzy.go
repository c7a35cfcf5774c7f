// Package fuzzy finds vocabulary words within a bounded edit distance of a token
// by carrying a Levenshtein row along the trie edges instead of comparing
// against every word.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/trie"
)

// DefaultTopK is how many suggestions a token gets unless asked otherwise.
const DefaultTopK = 5

// Match is a vocabulary word and its distance from the searched token.
type Match struct {
	Word      string `msgpack:"w"`
	Distance  int    `msgpack:"d"`
	Frequency int    `msgpack:"f"`
}

// Matcher searches a trie for near matches.
type Matcher struct {
	trie *trie.Trie
	conf *Confusables
}

// NewMatcher creates a matcher over t. A nil relation disables confusables.
func NewMatcher(t *trie.Trie, conf *Confusables) *Matcher {
	if conf == nil {
		conf = NoConfusables()
	}
	return &Matcher{trie: t, conf: conf}
}

// Confusables returns the relation used for zero-cost substitutions.
func (m *Matcher) Confusables() *Confusables { return m.conf }

// walker holds the per-search state. rows[d] is the distance row of the
// node at depth d on the current path, path[d-1] the edge rune leading to it.
type walker struct {
	token   []rune
	max     int
	conf    *Confusables
	span    int
	rows    [][]int
	path    []rune
	results []Match
}

// Search returns every word whose distance to token is at most maxDist,
// ordered by distance and then alphabetically.
func (m *Matcher) Search(token string, maxDist int) []Match {
	if token == "" || maxDist < 0 {
		return nil
	}

	w := &walker{
		token: []rune(strings.ToLower(token)),
		max:   maxDist,
		conf:  m.conf,
		span:  1,
	}
	if m.conf.MaxLen() > 1 {
		w.span = m.conf.MaxLen()
	}

	first := make([]int, len(w.token)+1)
	for i := range first {
		first[i] = i
	}
	w.rows = append(w.rows, first)

	m.trie.View(func(root *trie.Node) {
		w.walk(root)
	})

	sort.Slice(w.results, func(i, j int) bool {
		if w.results[i].Distance != w.results[j].Distance {
			return w.results[i].Distance < w.results[j].Distance
		}
		return w.results[i].Word < w.results[j].Word
	})
	return w.results
}

// SearchTop is Search limited to the first k results. k <= 0 means no limit.
func (m *Matcher) SearchTop(token string, maxDist, k int) []Match {
	results := m.Search(token, maxDist)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func (w *walker) walk(node *trie.Node) {
	for _, r := range node.Keys() {
		child := node.Child(r)
		w.path = append(w.path, r)
		row := w.nextRow()
		w.rows = append(w.rows, row)

		if child.Terminal() && row[len(row)-1] <= w.max {
			w.results = append(w.results, Match{
				Word:      string(w.path),
				Distance:  row[len(row)-1],
				Frequency: child.Frequency(),
			})
		}
		if w.reachable() {
			w.walk(child)
		}

		w.rows = w.rows[:len(w.rows)-1]
		w.path = w.path[:len(w.path)-1]
	}
}

// nextRow computes the row for the node reached by the last path rune.
func (w *walker) nextRow() []int {
	depth := len(w.path)
	prev := w.rows[depth-1]
	edge := w.path[depth-1]
	multi := w.span > 1

	row := make([]int, len(w.token)+1)
	row[0] = prev[0] + 1
	for i := 1; i <= len(w.token); i++ {
		cost := 1
		if w.same(edge, w.token[i-1]) {
			cost = 0
		}
		row[i] = min(row[i-1]+1, prev[i]+1, prev[i-1]+cost)

		if multi {
			row[i] = min(row[i], w.blockJump(depth, i))
		}
	}
	return row
}

func (w *walker) same(a, b rune) bool {
	if utils.EqualFold(a, b) {
		return true
	}
	return w.conf.Equivalent(string(a), string(b))
}

// blockJump aligns a multi-rune confusable as one zero-cost step, e.g. the
// token "rn" against the trie edge "m", or the token "m" against edges "r","n".
func (w *walker) blockJump(depth, i int) int {
	best := i + depth + 1
	for ly := 1; ly <= w.span && ly <= depth; ly++ {
		trieSide := string(w.path[depth-ly : depth])
		for lx := 1; lx <= w.span && lx <= i; lx++ {
			if ly == 1 && lx == 1 {
				continue
			}
			if w.conf.Equivalent(string(w.token[i-lx:i]), trieSide) {
				best = min(best, w.rows[depth-ly][i-lx])
			}
		}
	}
	return best
}

// reachable reports whether any row a deeper node can build on still has a
// cell within the bound. Without multi-rune confusables that is only the
// newest row.
func (w *walker) reachable() bool {
	from := len(w.rows) - w.span
	if from < 0 {
		from = 0
	}
	for _, row := range w.rows[from:] {
		for _, v := range row {
			if v <= w.max {
				return true
			}
		}
	}
	return false
}

// Distance is the plain Levenshtein distance between a and b.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
