package fuzzy

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/bastiangx/wordmend/pkg/trie"
)

func buildTrie(t testing.TB, words ...string) *trie.Trie {
	t.Helper()
	tr := trie.New(trie.WithRand(rand.New(rand.NewPCG(1, 2))))
	for _, w := range words {
		if err := tr.Add(w); err != nil {
			t.Fatalf("Add(%q): %v", w, err)
		}
	}
	return tr
}

func words(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Word
	}
	return out
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		a        string
		b        string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"book", "back", 2},
		{"book", "books", 1},
		{"hello", "hallo", 1},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s→%s", tc.a, tc.b), func(t *testing.T) {
			if dist := Distance(tc.a, tc.b); dist != tc.expected {
				t.Errorf("Expected distance %d, got %d", tc.expected, dist)
			}
		})
	}
}

func TestSearchPlain(t *testing.T) {
	tr := buildTrie(t, "cat", "cart", "car", "dog", "hello", "help")
	m := NewMatcher(tr, nil)

	testCases := []struct {
		token       string
		max         int
		expected    []string
		description string
	}{
		{"cst", 1, []string{"cat"}, "single substitution"},
		{"cat", 0, []string{"cat"}, "exact word"},
		{"cat", 1, []string{"cat", "car", "cart"}, "distance then alphabetical"},
		{"CAT", 0, []string{"cat"}, "case insensitive"},
		{"helo", 1, []string{"hello", "help"}, "missing letter"},
		{"zzz", 1, nil, "nothing close"},
		{"", 3, nil, "empty token"},
		{"cat", -1, nil, "negative bound"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got := words(m.Search(tc.token, tc.max))
			if fmt.Sprint(got) != fmt.Sprint(tc.expected) && !(len(got) == 0 && len(tc.expected) == 0) {
				t.Errorf("Search(%q, %d) = %v, want %v", tc.token, tc.max, got, tc.expected)
			}
		})
	}
}

func TestSearchMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	letters := []rune("abcde")
	randWord := func() string {
		w := make([]rune, 1+r.IntN(6))
		for i := range w {
			w[i] = letters[r.IntN(len(letters))]
		}
		return string(w)
	}

	vocab := make(map[string]bool)
	for len(vocab) < 200 {
		vocab[randWord()] = true
	}
	list := make([]string, 0, len(vocab))
	for w := range vocab {
		list = append(list, w)
	}
	m := NewMatcher(buildTrie(t, list...), nil)

	for i := 0; i < 60; i++ {
		token := randWord()
		for d := 0; d <= 2; d++ {
			got := make(map[string]int)
			for _, match := range m.Search(token, d) {
				got[match.Word] = match.Distance
			}
			for _, w := range list {
				want := Distance(token, w)
				dist, found := got[w]
				if want <= d && !found {
					t.Fatalf("Search(%q, %d) missed %q at distance %d", token, d, w, want)
				}
				if found && dist != want {
					t.Fatalf("Search(%q, %d) reported %q at %d, true distance %d", token, d, w, dist, want)
				}
				if found && want > d {
					t.Fatalf("Search(%q, %d) returned %q beyond the bound", token, d, w)
				}
			}
		}
	}
}

func TestSearchConfusables(t *testing.T) {
	tr := buildTrie(t, "hello", "corn", "modern", "burn", "cool")
	plain := NewMatcher(tr, NoConfusables())
	ocr := NewMatcher(tr, DefaultConfusables())

	testCases := []struct {
		token       string
		max         int
		want        string
		description string
	}{
		{"he1lo", 0, "hello", "digit one for l"},
		{"HE1LO", 0, "hello", "upper case token"},
		{"c0rn", 0, "corn", "zero for o"},
		{"c00l", 0, "cool", "two zeros"},
		{"rnodern", 0, "modern", "rn read as m"},
		{"bum", 0, "burn", "m read as rn"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got := ocr.Search(tc.token, tc.max)
			if len(got) == 0 || got[0].Word != tc.want || got[0].Distance != 0 {
				t.Errorf("with confusables Search(%q, %d) = %v, want %q at 0", tc.token, tc.max, got, tc.want)
			}
			if got := plain.Search(tc.token, tc.max); len(got) != 0 {
				t.Errorf("without confusables Search(%q, %d) = %v, want none", tc.token, tc.max, got)
			}
		})
	}
}

func TestSearchConfusableBound(t *testing.T) {
	tr := buildTrie(t, "hello", "hollow", "yellow", "halo")
	m := NewMatcher(tr, DefaultConfusables())

	for _, match := range m.Search("h0ll0", 2) {
		// every zero can be a free substitution, so the true distance may exceed
		// the bound by at most the number of zeros
		if d := Distance("h0ll0", match.Word); d > 2+2 {
			t.Errorf("%q has true distance %d", match.Word, d)
		}
	}
}

func TestSearchTop(t *testing.T) {
	tr := buildTrie(t, "bat", "cat", "eat", "fat", "hat", "mat", "pat")
	m := NewMatcher(tr, nil)

	got := m.SearchTop("rat", 1, DefaultTopK)
	want := []string{"bat", "cat", "eat", "fat", "hat"}
	if fmt.Sprint(words(got)) != fmt.Sprint(want) {
		t.Errorf("SearchTop = %v, want %v", words(got), want)
	}
	if all := m.SearchTop("rat", 1, 0); len(all) != 7 {
		t.Errorf("SearchTop with k=0 returned %d, want 7", len(all))
	}
}

func TestConfusablesRelation(t *testing.T) {
	c := NewConfusables(
		[2]string{"0", "O"},
		[2]string{"o", "0"},
		[2]string{"rn", "m"},
		[2]string{"5", "5"},
		[2]string{"", "x"},
	)

	testCases := []struct {
		a, b string
		want bool
	}{
		{"0", "o", true},
		{"o", "0", true},
		{"O", "0", true},
		{"o", "O", true},
		{"m", "rn", true},
		{"RN", "m", true},
		{"m", "n", false},
		{"0", "1", false},
		{"5", "5", true},
		{"x", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.a+"~"+tc.b, func(t *testing.T) {
			if got := c.Equivalent(tc.a, tc.b); got != tc.want {
				t.Errorf("Equivalent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
	if c.MaxLen() != 2 {
		t.Errorf("MaxLen = %d, want 2", c.MaxLen())
	}
	classes := c.Classes()
	if fmt.Sprint(classes) != "[[0 o] [m rn]]" {
		t.Errorf("Classes = %v", classes)
	}
}

func TestDefaultConfusablesFoldCase(t *testing.T) {
	c := DefaultConfusables()
	for _, pair := range [][2]string{{"1", "I"}, {"i", "l"}, {"1", "l"}, {"O", "0"}} {
		if !c.Equivalent(pair[0], pair[1]) {
			t.Errorf("%q and %q should be confusable", pair[0], pair[1])
		}
	}
	if NoConfusables().Equivalent("0", "o") {
		t.Error("empty relation matched a pair")
	}
}

func BenchmarkSearch(b *testing.B) {
	list := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		list = append(list, fmt.Sprintf("word%d", i))
	}
	m := NewMatcher(buildTrie(b, list...), DefaultConfusables())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inputs := []string{"wrd123", "word1", "wordd2", "woord3", "wird4"}
		m.Search(inputs[i%len(inputs)], 2)
	}
}
