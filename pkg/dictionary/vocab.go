/*
Package dictionary moves vocabularies in and out of a trie.

A vocabulary file has one entry per line, either a bare word or
"word,frequency". Lines are trimmed and lower-cased, blank lines are
skipped, and a line that does not parse as exactly two fields with an
integer frequency is inserted whole as a single word. Files may be plain,
gzip or zstd compressed and in a legacy charset, see package source.

Loading never touches the live trie until the whole file was read: words go
into a fresh trie which then replaces the contents of the target.
*/
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/log"
)

// ErrUnsupportedEncoding is returned for unknown charset names.
var ErrUnsupportedEncoding = source.ErrUnsupportedEncoding

// LoadResult describes a finished load.
type LoadResult struct {
	Path     string `msgpack:"p"`
	Lines    int    `msgpack:"l"`
	Inserted int    `msgpack:"i"`
	Skipped  int    `msgpack:"s"`
	// Cleared is set when a previous vocabulary was replaced.
	Cleared bool `msgpack:"c"`
}

// LoadFile replaces the vocabulary of t with the contents of path.
func LoadFile(t *trie.Trie, path string, opts ...source.Option) (LoadResult, error) {
	rc, err := source.Open(path, opts...)
	if err != nil {
		return LoadResult{Path: path}, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer rc.Close()

	res, err := Load(t, rc)
	res.Path = path
	if err != nil {
		return res, fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debugf("loaded %d entries from %s (%d skipped)", res.Inserted, path, res.Skipped)
	return res, nil
}

// Load replaces the vocabulary of t with the entries read from r. On error
// t is left as it was.
func Load(t *trie.Trie, r io.Reader) (LoadResult, error) {
	fresh := trie.New(trie.WithWildcard(t.Wildcard()))
	res := LoadResult{}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			res.Lines++
			insertLine(fresh, line, &res)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
	}

	res.Cleared = t.UniqueWords() > 0
	t.Replace(fresh)
	return res, nil
}

func insertLine(t *trie.Trie, line string, res *LoadResult) {
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return
	}

	word, count := ParseEntry(line)
	if err := t.Insert(word, count); err != nil {
		log.Warnf("skipping vocabulary line %d %q: %v", res.Lines, line, err)
		res.Skipped++
		return
	}
	res.Inserted++
}

// ParseEntry splits a trimmed line into a word and its frequency. Anything
// other than exactly "word,integer" is one word with frequency 1.
func ParseEntry(line string) (string, int) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return line, 1
	}
	freq, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return line, 1
	}
	return strings.TrimSpace(parts[0]), freq
}

// Export writes every word of t as "word,frequency" lines.
func Export(t *trie.Trie, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	words := t.Words()
	for _, c := range words {
		if _, err := fmt.Fprintf(bw, "%s,%d\n", c.Word, c.Frequency); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return len(words), nil
}

// ExportFile writes the vocabulary of t to path.
func ExportFile(t *trie.Trie, path string) (int, error) {
	f, err := utils.CreateFile(path)
	if err != nil {
		return 0, err
	}
	n, err := Export(t, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to export vocabulary: %w", err)
	}
	return n, nil
}

// SaveVisualization writes the bracket rendering of t to path.
func SaveVisualization(t *trie.Trie, path string) error {
	f, err := utils.CreateFile(path)
	if err != nil {
		return err
	}
	werr := t.WriteVisualization(f)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to save trie: %w", werr)
	}
	return nil
}
