package cli

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/wordmend/pkg/config"
	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/suggest"
	"github.com/bastiangx/wordmend/pkg/trie"
)

// run feeds script to a fresh handler and returns what it printed.
func run(t *testing.T, cfg *config.Config, configPath string, script ...string) string {
	t.Helper()
	tr := trie.New(trie.WithRand(rand.New(rand.NewPCG(1, 2))))
	r := restore.New(tr, restore.WithRand(restore.NewRand(3)))
	var out bytes.Buffer
	h := NewInputHandler(r, suggest.NewCompleter(0), cfg, configPath,
		WithIO(strings.NewReader(strings.Join(script, "\n")), &out),
		WithRand(rand.New(rand.NewPCG(4, 5))))
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return out.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVocabularyAndRestoreCommands(t *testing.T) {
	out := run(t, nil, "",
		"+cat,5",
		"+Car,2",
		"+the,10",
		"+sat,3",
		"+d*g",
		"?cat",
		"?c*t",
		"$ca*",
		"-car",
		"-car",
		"the c*t sat",
		":all ca* z*z",
		"/mode bogus",
		"/confusables",
		"/distance 1",
		"/fuzzy the cst",
		"/complete ca",
		"\\",
		"+zebra",
	)

	for _, want := range []string{
		"Added 'cat' (frequency 5)",
		"Added 'car' (frequency 2)",
		"Keyword 'cat' is present (frequency 5)",
		"Restored keyword: <cat>",
		"Deleted 'car'",
		"Keyword 'car' not found",
		"the <cat> sat\n",
		"['cat'] z*z\n",
		"unmatched: z*z",
		"OCR confusables off",
		"Max distance set to 1",
		" 1. cat",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "d*g") || strings.Contains(out, "zebra") {
		t.Errorf("rejected or post-exit command produced output:\n%s", out)
	}

	matchTable := out[strings.Index(out, "Rank"):]
	if !strings.Contains(matchTable, "cat") || !strings.Contains(matchTable, "car") {
		t.Errorf("match table = %q", matchTable)
	}
	fuzzyTable := out[strings.Index(out, "Suggestion"):]
	if !strings.Contains(fuzzyTable, "cst") || !strings.Contains(fuzzyTable, "cat") {
		t.Errorf("fuzzy table = %q", fuzzyTable)
	}
}

func TestContextReviewAndSave(t *testing.T) {
	dir := t.TempDir()
	vocab := filepath.Join(dir, "vocab.txt")
	corpus := filepath.Join(dir, "corpus.txt")
	review := filepath.Join(dir, "review.csv")
	export := filepath.Join(dir, "export.txt")
	display := filepath.Join(dir, "trie.txt")
	configPath := filepath.Join(dir, "config.toml")
	writeFile(t, vocab, "cat,5\ncar,2\nthe,10\nsat,3\n")
	writeFile(t, corpus, "the cat sat\nthe cat sat\nthe car sat\n")

	cfg := config.DefaultConfig()
	out := run(t, cfg, configPath,
		"/review "+review,
		"~"+vocab,
		":context the ca* sat",
		"/fit "+corpus,
		"/threshold 0",
		":context the ca* sat",
		"/review "+review,
		"/distance 2",
		"/save",
		"="+export,
		"@"+display,
		"/history",
	)

	for _, want := range []string{
		"Loaded 4 words from " + vocab + " (0 skipped)",
		"Model fitted: 15 tokens, 6 distinct",
		"Threshold set to 0.00",
		"the <cat> sat\n",
		"Saved 1 rows to " + review,
		"Settings saved to " + configPath,
		"Wrote 4 words to " + export,
		"Trie written to " + display,
		"ca* -> <cat> (context)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Saved") != 1 {
		t.Errorf("review saved before any context restore:\n%s", out)
	}

	data, err := os.ReadFile(review)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !strings.HasPrefix(string(data), "original,choice,confidence,left,right,candidates\nca*,cat,") {
		t.Errorf("review csv = %q", data)
	}
	for _, p := range []string{export, display} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	saved, err := config.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if saved.Restore.Threshold != 0 || saved.Fuzzy.MaxDistance != 2 || saved.Restore.DefaultMode != "best" {
		t.Errorf("saved settings = %+v %+v", saved.Restore, saved.Fuzzy)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "the c*t sat")
	writeFile(t, filepath.Join(dir, "b.txt"), "q*q")

	out := run(t, nil, "", "+cat", "/batch "+dir+" best")

	for _, want := range []string{"a.txt", "b.txt", "total", "50.0%", "q*q"} {
		if !strings.Contains(out, want) {
			t.Errorf("batch output is missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, restore.OutputPrefix+"a.txt"))
	if err != nil {
		t.Fatalf("restored file: %v", err)
	}
	if string(data) != "the <cat> sat" {
		t.Errorf("restored a.txt = %q", data)
	}
}

func TestChallengeCommand(t *testing.T) {
	out := run(t, nil, "",
		"+apple",
		"/challenge easy",
		"Apple",
		"/challenge 1",
		"pear",
		"/challenge hard",
	)

	if !strings.Contains(out, "Guess the easy word: ") {
		t.Errorf("no round shown:\n%s", out)
	}
	if !strings.Contains(out, "Correct!") || !strings.Contains(out, "Wrong, the word was 'apple'") {
		t.Errorf("guesses not checked:\n%s", out)
	}
	if strings.Contains(out, "hard word") {
		t.Errorf("hard round started without eligible words:\n%s", out)
	}
}

func TestFormatWithCommas(t *testing.T) {
	for n, want := range map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -45678: "-45,678"} {
		if got := formatWithCommas(n); got != want {
			t.Errorf("formatWithCommas(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestHighlight(t *testing.T) {
	s := newStyles(false)
	if got := s.highlight("a <b> c <d"); got != "a <b> c <d" {
		t.Errorf("plain highlight changed text: %q", got)
	}
}
