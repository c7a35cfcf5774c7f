package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Confusables is an equivalence relation over short strings that OCR tends
// to mix up, such as "0" and "o" or "rn" and "m". Members are lower-cased
// when the relation is built and pairs are merged into classes, so the
// relation is symmetric and transitive no matter how it was declared.
type Confusables struct {
	class  map[string]string
	maxLen int
}

// NewConfusables builds the relation from declared pairs. Pairs whose sides
// are equal after lower-casing, or empty, are ignored.
func NewConfusables(pairs ...[2]string) *Confusables {
	c := &Confusables{class: make(map[string]string)}
	parent := make(map[string]string)

	var root func(s string) string
	root = func(s string) string {
		p, ok := parent[s]
		if !ok || p == s {
			parent[s] = s
			return s
		}
		r := root(p)
		parent[s] = r
		return r
	}

	for _, p := range pairs {
		a, b := strings.ToLower(p[0]), strings.ToLower(p[1])
		if a == "" || b == "" || a == b {
			continue
		}
		ra, rb := root(a), root(b)
		if ra != rb {
			// smallest member names the class so the result is order independent
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for s := range parent {
		c.class[s] = root(s)
		if n := utf8.RuneCountInString(s); n > c.maxLen {
			c.maxLen = n
		}
	}
	return c
}

// NoConfusables returns the empty relation.
func NoConfusables() *Confusables {
	return &Confusables{class: map[string]string{}}
}

// DefaultPairs returns the common OCR mix-ups: 0/O/o, 1/l/I and rn/m.
func DefaultPairs() [][2]string {
	return [][2]string{
		{"0", "O"},
		{"0", "o"},
		{"O", "o"},
		{"1", "l"},
		{"1", "I"},
		{"l", "I"},
		{"rn", "m"},
	}
}

// DefaultConfusables returns the relation built from DefaultPairs.
func DefaultConfusables() *Confusables {
	return NewConfusables(DefaultPairs()...)
}

// Equivalent reports whether a and b are the same string or confusable.
func (c *Confusables) Equivalent(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	if c == nil {
		return false
	}
	ca, ok := c.class[a]
	if !ok {
		return false
	}
	return ca == c.class[b]
}

// Empty reports whether the relation has no pairs.
func (c *Confusables) Empty() bool {
	return c == nil || len(c.class) == 0
}

// MaxLen is the rune length of the longest member.
func (c *Confusables) MaxLen() int {
	if c == nil {
		return 0
	}
	return c.maxLen
}

// Classes lists the equivalence classes, each sorted, for display.
func (c *Confusables) Classes() [][]string {
	if c.Empty() {
		return nil
	}
	byRoot := make(map[string][]string)
	for s, r := range c.class {
		byRoot[r] = append(byRoot[r], s)
	}
	classes := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		classes = append(classes, members)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i][0] < classes[j][0] })
	return classes
}
