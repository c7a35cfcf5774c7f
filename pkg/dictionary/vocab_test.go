package dictionary

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/klauspost/compress/zstd"
)

func newTrie() *trie.Trie {
	return trie.New(trie.WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestParseEntry(t *testing.T) {
	testCases := []struct {
		line string
		word string
		freq int
	}{
		{"rainbow", "rainbow", 1},
		{"rainbow,5", "rainbow", 5},
		{"rainbow , 7", "rainbow", 7},
		{"rain,bow,5", "rain,bow,5", 1},
		{"rainbow,many", "rainbow,many", 1},
		{"rainbow,0", "rainbow", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			word, freq := ParseEntry(tc.line)
			if word != tc.word || freq != tc.freq {
				t.Errorf("ParseEntry(%q) = %q, %d, want %q, %d", tc.line, word, freq, tc.word, tc.freq)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tr := newTrie()
	tr.Add("stale")

	input := "Rainbow,5\n\n  random,2  \nbare\nrain,bow,3\nodd,x\nzero,0\nbad*word\nbare"
	res, err := Load(tr, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Lines != 9 || res.Inserted != 6 || res.Skipped != 2 || !res.Cleared {
		t.Errorf("result = %+v", res)
	}

	testCases := []struct {
		word string
		freq int
	}{
		{"rainbow", 5},
		{"random", 2},
		{"bare", 2},
		{"rain,bow,3", 1},
		{"odd,x", 1},
		{"stale", 0},
		{"zero", 0},
	}
	for _, tc := range testCases {
		if got := tr.Frequency(tc.word); got != tc.freq {
			t.Errorf("Frequency(%q) = %d, want %d", tc.word, got, tc.freq)
		}
	}
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n > 0 {
		f.n--
		return copy(p, "word\n"), nil
	}
	return 0, errors.New("disk on fire")
}

func TestLoadFailureKeepsTrie(t *testing.T) {
	tr := newTrie()
	tr.Insert("kept", 3)

	if _, err := Load(tr, &failingReader{n: 2}); err == nil {
		t.Fatal("expected read error")
	}
	if !tr.Search("kept") || tr.Search("word") || tr.TotalWords() != 3 {
		t.Error("failed load changed the live trie")
	}

	if _, err := LoadFile(tr, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
	if !tr.Search("kept") {
		t.Error("failed LoadFile changed the live trie")
	}
}

func TestLoadFileCompressedAndEncoded(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	enc, _ := zstd.NewWriter(&buf)
	enc.Write([]byte("cat,3\ncar,3\n"))
	enc.Close()
	zpath := filepath.Join(dir, "vocab.zst")
	os.WriteFile(zpath, buf.Bytes(), 0o644)

	tr := newTrie()
	res, err := LoadFile(tr, zpath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if res.Inserted != 2 || res.Path != zpath || tr.Frequency("car") != 3 {
		t.Errorf("result = %+v", res)
	}

	lpath := filepath.Join(dir, "latin.txt")
	os.WriteFile(lpath, []byte{'C', 'A', 'F', 0xc9, ',', '2', '\n'}, 0o644)
	if _, err := LoadFile(tr, lpath, source.WithEncoding("latin1")); err != nil {
		t.Fatalf("LoadFile latin1: %v", err)
	}
	if tr.Frequency("café") != 2 {
		t.Errorf("latin1 word not decoded and lower-cased: %v", tr.Words())
	}

	if _, err := LoadFile(tr, lpath, source.WithEncoding("klingon")); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("err = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	tr := newTrie()
	tr.Insert("b", 2)
	tr.Insert("ab", 1)
	tr.Insert("abc", 3)

	var buf bytes.Buffer
	n, err := Export(tr, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 || buf.String() != "ab,1\nabc,3\nb,2\n" {
		t.Errorf("Export = %d, %q", n, buf.String())
	}

	again := newTrie()
	if _, err := Load(again, &buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again.TotalWords() != tr.TotalWords() || again.Frequency("abc") != 3 {
		t.Error("exported vocabulary did not load back")
	}

	path := filepath.Join(t.TempDir(), "exports", "2025", "out.csv")
	if n, err := ExportFile(tr, path); err != nil || n != 3 {
		t.Errorf("ExportFile = %d, %v", n, err)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "ab,1\nabc,3\nb,2\n" {
		t.Errorf("exported file = %q, %v", data, err)
	}
}

func TestSaveVisualization(t *testing.T) {
	tr := newTrie()
	path := filepath.Join(t.TempDir(), "render", "trie.txt")
	if err := SaveVisualization(tr, path); err != nil {
		t.Fatalf("SaveVisualization: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]\n" {
		t.Errorf("empty trie saved as %q", data)
	}

	tr.Insert("abc", 3)
	if err := SaveVisualization(tr, path); err != nil {
		t.Fatalf("SaveVisualization: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != tr.Visualize() {
		t.Errorf("saved %q, want %q", data, tr.Visualize())
	}
}
