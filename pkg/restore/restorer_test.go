package restore

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/wordmend/pkg/fuzzy"
	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/trie"
)

func newTrie(t *testing.T, seed uint64, freqs map[string]int) *trie.Trie {
	t.Helper()
	tr := trie.New(trie.WithRand(rand.New(rand.NewPCG(seed, seed))))
	for w, f := range freqs {
		if err := tr.Insert(w, f); err != nil {
			t.Fatalf("Insert(%q): %v", w, err)
		}
	}
	return tr
}

func newModel(t *testing.T, corpus string) *lm.Model {
	t.Helper()
	m, err := lm.Fit(strings.NewReader(corpus))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return m
}

func TestBestModeScenario(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 3, "cut": 3, "cot": 1})
	r := New(tr, WithRand(rand.New(rand.NewPCG(3, 4))))

	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		got, err := r.RestoreText("The c*t sat", ModeBest)
		if err != nil {
			t.Fatalf("RestoreText: %v", err)
		}
		switch got {
		case "The <cat> sat", "The <cut> sat":
			seen[got] = true
		default:
			t.Fatalf("RestoreText = %q", got)
		}
	}
	if len(seen) != 2 {
		t.Errorf("best mode never varied between tied words: %v", seen)
	}
}

func TestBestModeSeeded(t *testing.T) {
	run := func() []string {
		tr := newTrie(t, 9, map[string]int{"cat": 3, "cut": 3, "cot": 3})
		r := New(tr, WithRand(rand.New(rand.NewPCG(5, 5))))
		var out []string
		for i := 0; i < 10; i++ {
			s, _ := r.RestoreText("c*t", ModeBest)
			out = append(out, s)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seeds gave %v and %v", a, b)
		}
	}
}

func TestAllMode(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 5, "cot": 1, "cut": 2})
	r := New(tr)

	testCases := []struct {
		text     string
		expected string
	}{
		{"the c*t", "the ['cat','cut','cot']"},
		{"no m*tch here", "no m*tch here"},
		{"plain text.", "plain text."},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			got, err := r.RestoreText(tc.text, ModeAll)
			if err != nil {
				t.Fatalf("RestoreText: %v", err)
			}
			if got != tc.expected {
				t.Errorf("RestoreText(%q) = %q, want %q", tc.text, got, tc.expected)
			}
		})
	}
}

func TestUnknownMode(t *testing.T) {
	r := New(newTrie(t, 1, nil))
	if _, err := r.RestoreText("c*t", Mode("fancy")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
	if _, err := ParseMode("Fancy"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode err = %v", err)
	}
	if m, err := ParseMode(" Context "); err != nil || m != ModeContext {
		t.Errorf("ParseMode(Context) = %q, %v", m, err)
	}
}

func TestContextRequiresModel(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 1})
	r := New(tr)
	text, rows, err := r.RestoreWithContext("the c*t sat", 0.5)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
	if text != "" || rows != nil || len(r.History()) != 0 {
		t.Error("failed context restore had side effects")
	}
}

const catCorpus = `the cat sat on the mat
the cat sat still
a car parked outside
the cat sat again
`

func TestContextModeScenario(t *testing.T) {
	tr := newTrie(t, 2, map[string]int{"cat": 4, "car": 4})
	r := New(tr, WithModel(newModel(t, catCorpus)))

	text, rows, err := r.RestoreWithContext("The ca* sat.", 0.5)
	if err != nil {
		t.Fatalf("RestoreWithContext: %v", err)
	}
	if text != "The <cat> sat." {
		t.Errorf("text = %q", text)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Original != "ca*" || row.Choice != "cat" || row.Left != "the" || row.Right != "sat" || !row.Accepted {
		t.Errorf("row = %+v", row)
	}
	if len(row.Candidates) != 2 {
		t.Errorf("candidates = %v", row.Candidates)
	}

	// a threshold above the confidence keeps the token but still reports it
	text, rows, err = r.RestoreWithContext("The ca* sat.", 1)
	if err != nil {
		t.Fatalf("RestoreWithContext: %v", err)
	}
	if text != "The ca* sat." {
		t.Errorf("text = %q, want the token kept", text)
	}
	if len(rows) != 1 || rows[0].Accepted || rows[0].Choice != "cat" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestContextBoundaries(t *testing.T) {
	tr := newTrie(t, 2, map[string]int{"cat": 1, "mat": 1})
	r := New(tr, WithModel(newModel(t, catCorpus)))

	_, rows, err := r.RestoreWithContext("*at\nthe, *at", 0)
	if err != nil {
		t.Fatalf("RestoreWithContext: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Left != lm.BOS || rows[0].Right != lm.EOS {
		t.Errorf("first row context = %q/%q", rows[0].Left, rows[0].Right)
	}
	if rows[1].Left != "the" || rows[1].Right != lm.EOS {
		t.Errorf("second row context = %q/%q", rows[1].Left, rows[1].Right)
	}

	if _, _, err := r.RestoreWithContext("x", 1.5); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("err = %v, want ErrInvalidThreshold", err)
	}
}

func TestContextRowsForUnmatched(t *testing.T) {
	tr := newTrie(t, 2, map[string]int{"cat": 4, "car": 4})
	r := New(tr, WithModel(newModel(t, catCorpus)))

	text, rows, err := r.RestoreWithContext("the c*t x*z sat", 0)
	if err != nil {
		t.Fatalf("RestoreWithContext: %v", err)
	}
	if text != "the <cat> x*z sat" {
		t.Errorf("text = %q", text)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	miss := rows[1]
	if miss.Original != "x*z" || miss.Choice != "" || miss.Confidence != 0 || miss.Accepted || len(miss.Candidates) != 0 {
		t.Errorf("unmatched row = %+v", miss)
	}
	if miss.Left != "c*t" || miss.Right != "sat" {
		t.Errorf("unmatched row context = %q/%q", miss.Left, miss.Right)
	}
}

func TestContextSkipsPunctuation(t *testing.T) {
	tr := newTrie(t, 2, map[string]int{"cat": 4})
	r := New(tr, WithModel(newModel(t, catCorpus)))

	text, rows, err := r.RestoreWithContext("the c*t, sat", 0)
	if err != nil {
		t.Fatalf("RestoreWithContext: %v", err)
	}
	if text != "the <cat>, sat" {
		t.Errorf("text = %q", text)
	}
	if len(rows) != 1 || rows[0].Left != "the" || rows[0].Right != "sat" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRestoreResultCounts(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"rainbow": 5, "random": 2})
	r := New(tr, WithRand(NewRand(1)))

	res, err := r.Restore("ra*n*ow and z**z", ModeBest, 0)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Text != "<rainbow> and z**z" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Masked != 2 || res.Restored != 1 || len(res.Unmatched) != 1 || res.Unmatched[0] != "z**z" {
		t.Errorf("result = %+v", res)
	}
}

func TestHistory(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 1})
	r := New(tr)

	r.RestoreText("c*t x*y", ModeBest)
	r.RestoreText("c*t", ModeAll)
	h := r.History()
	want := []HistoryEntry{
		{Token: "c*t", Output: "<cat>", Mode: ModeBest},
		{Token: "x*y", Output: "x*y", Mode: ModeBest},
		{Token: "c*t", Output: "['cat']", Mode: ModeAll},
	}
	if len(h) != len(want) {
		t.Fatalf("history = %+v", h)
	}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, h[i], want[i])
		}
	}
	r.ClearHistory()
	if len(r.History()) != 0 {
		t.Error("ClearHistory left entries")
	}

	r.RestoreText(strings.Repeat("c*t ", MaxHistory)+"x*y", ModeBest)
	h = r.History()
	if len(h) != MaxHistory || h[len(h)-1].Token != "x*y" || h[0].Token != "c*t" {
		t.Errorf("history not bounded: %d entries", len(h))
	}
}

func TestRestoreWord(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 1})
	r := New(tr)
	if got, _ := r.RestoreWord("C*T", ModeBest); got != "<cat>" {
		t.Errorf("RestoreWord(C*T) = %q", got)
	}
	if got, _ := r.RestoreWord("dog", ModeBest); got != "dog" {
		t.Errorf("RestoreWord(dog) = %q", got)
	}
}

func TestThreshold(t *testing.T) {
	r := New(newTrie(t, 1, nil))
	if r.Threshold() != DefaultThreshold {
		t.Errorf("default threshold = %v", r.Threshold())
	}
	if err := r.SetThreshold(0.75); err != nil || r.Threshold() != 0.75 {
		t.Errorf("SetThreshold(0.75) = %v, threshold %v", err, r.Threshold())
	}
	for _, bad := range []float64{-0.1, 1.01} {
		if err := r.SetThreshold(bad); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("SetThreshold(%v) = %v", bad, err)
		}
	}
}

func TestSuggestFuzzy(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"hello": 3, "world": 2, "corn": 1})
	r := New(tr)

	got := r.SuggestFuzzy("he1lo w0rld, c*rn hello wrld", FuzzyOptions{MaxDistance: 1})
	if len(got) != 3 || got[0].Token != "he1lo" || got[2].Token != "wrld" || got[2].Matches[0].Word != "world" {
		t.Errorf("distance 1 = %+v", got)
	}

	if got := r.SuggestFuzzy("he1lo w0rld", FuzzyOptions{MaxDistance: 0}); len(got) != 0 {
		t.Errorf("distance 0 without confusables = %+v", got)
	}
	got = r.SuggestFuzzy("he1lo w0rld", FuzzyOptions{MaxDistance: 0, Confusables: fuzzy.DefaultConfusables()})
	if len(got) != 2 || got[0].Matches[0].Word != "hello" || got[1].Matches[0].Word != "world" {
		t.Errorf("with confusables = %+v", got)
	}
}

func TestWriteReviewCSV(t *testing.T) {
	rows := []ReviewRow{
		{Original: "ca*", Choice: "cat", Confidence: 0.8, Left: "the", Right: "sat", Candidates: []string{"cat", "car"}, Accepted: true},
		{Original: "*,*", Choice: "a,b", Confidence: 0.25, Left: "<s>", Right: "</s>", Candidates: []string{"a,b"}},
	}
	var buf bytes.Buffer
	if err := WriteReviewCSV(&buf, rows); err != nil {
		t.Fatalf("WriteReviewCSV: %v", err)
	}
	want := "original,choice,confidence,left,right,candidates\n" +
		"ca*,cat,0.8000,the,sat,cat car\n" +
		"\"*,*\",\"a,b\",0.2500,<s>,</s>,\"a,b\"\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}

	path := filepath.Join(t.TempDir(), "reviews", "run.csv")
	if err := SaveReviewCSV(path, rows); err != nil {
		t.Fatalf("SaveReviewCSV: %v", err)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != want {
		t.Errorf("saved csv = %q, %v", data, err)
	}
}

func TestRestoreFolder(t *testing.T) {
	tr := newTrie(t, 1, map[string]int{"cat": 2, "sat": 1})
	r := New(tr)

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	files := map[string]string{
		"a.txt":     "the c*t s*t",
		"b.TXT":     "no masks here",
		"c.txt":     "q*q",
		"notes.md":  "c*t",
		"restored_": "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(in, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := r.RestoreFolder(in, BatchOptions{Mode: ModeBest, OutputDir: out})
	if err != nil {
		t.Fatalf("RestoreFolder: %v", err)
	}
	if len(summary.Files) != 3 {
		t.Fatalf("processed %d files, want 3", len(summary.Files))
	}
	if summary.Masked != 3 || summary.Restored != 2 || summary.Unmatched != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}

	data, err := os.ReadFile(filepath.Join(out, "restored_a.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "the <cat> <sat>" {
		t.Errorf("restored_a.txt = %q", data)
	}
	if summary.Files[0].MatchRate() != 100 {
		t.Errorf("match rate = %v", summary.Files[0].MatchRate())
	}
}

func TestRestoreFolderErrors(t *testing.T) {
	r := New(newTrie(t, 1, nil))
	if _, err := r.RestoreFolder(filepath.Join(t.TempDir(), "missing"), BatchOptions{}); err == nil {
		t.Error("expected error for a missing folder")
	}
	if _, err := r.RestoreFolder(t.TempDir(), BatchOptions{}); !errors.Is(err, ErrNoTextFiles) {
		t.Errorf("err = %v, want ErrNoTextFiles", err)
	}
	if _, err := r.RestoreFolder(t.TempDir(), BatchOptions{Mode: ModeContext}); !errors.Is(err, ErrNoModel) {
		t.Errorf("err = %v, want ErrNoModel", err)
	}
}
