// Package cli is the interactive prompt for editing a vocabulary and
// restoring masked text by hand.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/challenge"
	"github.com/bastiangx/wordmend/pkg/config"
	"github.com/bastiangx/wordmend/pkg/dictionary"
	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/suggest"
	"github.com/bastiangx/wordmend/pkg/token"
	"github.com/charmbracelet/log"
)

const helpText = `Vocabulary
  +word[,n]        add a word, n times
  -word            delete a word
  ?word            find a word, or restore it when masked
  $pattern         list every match of a masked pattern
  #                display the trie
  ~path            read a vocabulary file
  =path            write the vocabulary to a file
  @path            write the trie display to a file
Restore
  text             restore masked words in the current mode
  :best text       restore with the most frequent match
  :all text        list every match
  :context text    pick matches with the language model
  /mode name       set the current mode
  /fit path        fit the language model on a corpus
  /threshold t     context confidence needed to apply a choice
  /review path     save the last context decisions as CSV
  /batch dir [m]   restore every .txt file of a folder
Fuzzy
  /fuzzy text      suggest words for unknown tokens
  /distance n      maximum edit distance
  /confusables     toggle OCR confusables
Other
  /complete p      complete a prefix
  /challenge [l]   guess a masked word (easy, medium, hard)
  /history         list restore decisions
  /save            write the settings to the config file
  !                show this help
  \                exit`

// errQuit ends the input loop.
var errQuit = errors.New("quit")

// InputHandler reads commands line by line and writes results to its
// output. Logs and errors go to stderr.
type InputHandler struct {
	restorer   *restore.Restorer
	completer  suggest.ICompleter
	config     *config.Config
	configPath string
	game       *challenge.Game

	in     *bufio.Reader
	out    io.Writer
	prompt bool
	styles styles

	mode         restore.Mode
	lastRows     []restore.ReviewRow
	requestCount int
}

// Option configures an InputHandler.
type Option func(*InputHandler)

// WithIO replaces stdin and stdout. The prompt is turned off.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(h *InputHandler) {
		h.in = bufio.NewReader(in)
		h.out = out
		h.prompt = false
		h.styles = newStyles(false)
	}
}

// WithRand seeds the word challenge.
func WithRand(rng *rand.Rand) Option {
	return func(h *InputHandler) {
		h.game = challenge.New(h.restorer.Trie(), rng)
	}
}

// NewInputHandler creates the prompt. configPath is where /save writes.
func NewInputHandler(r *restore.Restorer, c suggest.ICompleter, cfg *config.Config, configPath string, opts ...Option) *InputHandler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	mode, err := restore.ParseMode(cfg.Restore.DefaultMode)
	if err != nil {
		mode = restore.ModeBest
	}
	interactive := IsInteractive(os.Stdin)
	h := &InputHandler{
		restorer:   r,
		completer:  c,
		config:     cfg,
		configPath: configPath,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		prompt:     interactive,
		styles:     newStyles(cfg.CLI.Color && IsInteractive(os.Stdout)),
		mode:       mode,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.game == nil {
		h.game = challenge.New(r.Trie(), nil)
	}
	return h
}

// Start runs the input loop until EOF or the exit command.
func (h *InputHandler) Start() error {
	if h.prompt {
		fmt.Fprintln(h.out, h.styles.title.Render("WordMend CLI"))
		fmt.Fprintln(h.out, h.styles.dim.Render("type ! for the commands, \\ or Ctrl+C to exit"))
	}

	for {
		line, err := h.readLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if err := h.handleInput(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			log.Error(err)
		}
	}
}

// readLine prints the prompt when interactive and returns the next
// trimmed line. A last line without newline is still returned.
func (h *InputHandler) readLine(prompt string) (string, error) {
	if h.prompt {
		fmt.Fprint(h.out, prompt)
	}
	line, err := h.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// handleInput runs one command line.
func (h *InputHandler) handleInput(line string) error {
	h.requestCount++
	start := time.Now()
	defer func() {
		log.Debugf("Took [ %v ] for request %d %q", time.Since(start), h.requestCount, line)
	}()

	arg := strings.TrimSpace(line[1:])
	switch line[0] {
	case '+':
		return h.addWord(arg)
	case '-':
		return h.deleteWord(arg)
	case '?':
		return h.findWord(arg)
	case '$':
		return h.listMatches(arg)
	case '#':
		return h.restorer.Trie().WriteVisualization(h.out)
	case '~':
		return h.loadVocabulary(arg)
	case '=':
		return h.exportVocabulary(arg)
	case '@':
		return h.saveVisualization(arg)
	case '!':
		fmt.Fprintln(h.out, helpText)
		return nil
	case '\\':
		return errQuit
	case ':':
		name, text, _ := strings.Cut(arg, " ")
		mode, err := restore.ParseMode(name)
		if err != nil {
			return err
		}
		return h.restoreText(strings.TrimSpace(text), mode)
	case '/':
		name, rest, _ := strings.Cut(arg, " ")
		return h.runCommand(strings.ToLower(name), strings.TrimSpace(rest))
	}
	return h.restoreText(line, h.mode)
}

// runCommand handles the slash commands.
func (h *InputHandler) runCommand(name, arg string) error {
	switch name {
	case "mode":
		mode, err := restore.ParseMode(arg)
		if err != nil {
			return err
		}
		h.mode = mode
		fmt.Fprintf(h.out, "Mode set to %s\n", mode)
	case "fit":
		return h.fitModel(arg)
	case "threshold":
		th, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", arg, err)
		}
		if err := h.restorer.SetThreshold(th); err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Threshold set to %.2f\n", th)
	case "review":
		return h.saveReview(arg)
	case "batch":
		return h.batch(arg)
	case "fuzzy":
		return h.fuzzy(arg)
	case "distance":
		d, err := strconv.Atoi(arg)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid distance %q", arg)
		}
		h.config.Fuzzy.MaxDistance = d
		fmt.Fprintf(h.out, "Max distance set to %d\n", d)
	case "confusables":
		h.config.Fuzzy.Confusables = !h.config.Fuzzy.Confusables
		state := "off"
		if h.config.Fuzzy.Confusables {
			state = "on"
		}
		fmt.Fprintf(h.out, "OCR confusables %s\n", state)
	case "complete":
		return h.complete(arg)
	case "challenge":
		return h.playChallenge(challenge.ParseLevel(arg))
	case "history":
		for _, e := range h.restorer.History() {
			fmt.Fprintf(h.out, "%s -> %s (%s)\n", e.Token, e.Output, e.Mode)
		}
	case "save":
		return h.saveSettings()
	case "help":
		fmt.Fprintln(h.out, helpText)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: /%s", name)
	}
	return nil
}

func (h *InputHandler) addWord(arg string) error {
	word, count := dictionary.ParseEntry(strings.ToLower(arg))
	t := h.restorer.Trie()
	if !utils.IsValidWord(word, t.Wildcard()) {
		return fmt.Errorf("invalid word: %q", arg)
	}
	if err := t.Insert(word, count); err != nil {
		return fmt.Errorf("failed to add %q: %w", word, err)
	}
	freq := t.Frequency(word)
	h.completer.AddWord(word, freq)
	fmt.Fprintf(h.out, "Added '%s' (frequency %s)\n", h.styles.word.Render(word), formatWithCommas(freq))
	return nil
}

func (h *InputHandler) deleteWord(arg string) error {
	word := strings.ToLower(arg)
	if !h.restorer.Trie().Delete(word) {
		fmt.Fprintf(h.out, "Keyword '%s' not found\n", word)
		return nil
	}
	h.completer.RemoveWord(word)
	fmt.Fprintf(h.out, "Deleted '%s'\n", word)
	return nil
}

func (h *InputHandler) findWord(arg string) error {
	t := h.restorer.Trie()
	if token.IsMasked(arg, t.Wildcard()) {
		restored, err := h.restorer.RestoreWord(arg, restore.ModeBest)
		if err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Restored keyword: %s\n", h.styles.highlight(restored))
		return nil
	}
	word := strings.ToLower(arg)
	if !t.Search(word) {
		fmt.Fprintf(h.out, "Keyword '%s' not found\n", word)
		return nil
	}
	fmt.Fprintf(h.out, "Keyword '%s' is present (frequency %s)\n",
		h.styles.word.Render(word), formatWithCommas(t.Frequency(word)))
	return nil
}

func (h *InputHandler) listMatches(pattern string) error {
	if pattern == "" {
		return errors.New("missing pattern")
	}
	matches := h.restorer.Trie().FindMatches(strings.ToLower(pattern))
	if len(matches) == 0 {
		fmt.Fprintf(h.out, "No match for '%s'\n", pattern)
		return nil
	}
	printMatches(h.out, matches)
	return nil
}

func (h *InputHandler) loadVocabulary(path string) error {
	if path == "" {
		return errors.New("missing vocabulary path")
	}
	t := h.restorer.Trie()
	res, err := dictionary.LoadFile(t, path, source.WithEncoding(h.config.Model.Encoding))
	if err != nil {
		return err
	}
	h.completer.Rebuild(t.Words())
	fmt.Fprintf(h.out, "Loaded %s words from %s (%d skipped)\n",
		formatWithCommas(res.Inserted), res.Path, res.Skipped)
	return nil
}

func (h *InputHandler) exportVocabulary(path string) error {
	if path == "" {
		return errors.New("missing output path")
	}
	n, err := dictionary.ExportFile(h.restorer.Trie(), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Wrote %s words to %s\n", formatWithCommas(n), path)
	return nil
}

func (h *InputHandler) saveVisualization(path string) error {
	if path == "" {
		return errors.New("missing output path")
	}
	if err := dictionary.SaveVisualization(h.restorer.Trie(), path); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Trie written to %s\n", path)
	return nil
}

func (h *InputHandler) restoreText(text string, mode restore.Mode) error {
	if text == "" {
		return errors.New("nothing to restore")
	}
	res, err := h.restorer.Restore(text, mode, h.restorer.Threshold())
	if err != nil {
		return err
	}
	fmt.Fprintln(h.out, h.styles.highlight(res.Text))
	if mode == restore.ModeContext {
		h.lastRows = res.Rows
		if len(res.Rows) > 0 {
			printReview(h.out, res.Rows)
		}
	}
	if len(res.Unmatched) > 0 {
		fmt.Fprintln(h.out, h.styles.dim.Render("unmatched: "+strings.Join(res.Unmatched, " ")))
	}
	return nil
}

func (h *InputHandler) fitModel(path string) error {
	if path == "" {
		return errors.New("missing corpus path")
	}
	m, err := lm.FitFile(path,
		lm.WithSmoothing(h.config.Model.SmoothingK),
		lm.WithEncoding(h.config.Model.Encoding))
	if err != nil {
		return err
	}
	h.restorer.SetModel(m)
	stats := m.Stats()
	fmt.Fprintf(h.out, "Model fitted: %s tokens, %s distinct, %s bigrams\n",
		formatWithCommas(stats.Tokens), formatWithCommas(stats.Vocabulary), formatWithCommas(stats.Bigrams))
	return nil
}

func (h *InputHandler) saveReview(path string) error {
	if path == "" {
		return errors.New("missing output path")
	}
	if len(h.lastRows) == 0 {
		return errors.New("no context decisions to save, run :context first")
	}
	if err := restore.SaveReviewCSV(path, h.lastRows); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Saved %d rows to %s\n", len(h.lastRows), path)
	return nil
}

func (h *InputHandler) batch(arg string) error {
	folder, modeName, _ := strings.Cut(arg, " ")
	if folder == "" {
		return errors.New("missing folder")
	}
	mode := h.mode
	if modeName = strings.TrimSpace(modeName); modeName != "" {
		var err error
		if mode, err = restore.ParseMode(modeName); err != nil {
			return err
		}
	}
	summary, err := h.restorer.RestoreFolder(folder, restore.BatchOptions{
		Mode:     mode,
		Encoding: h.config.Model.Encoding,
	})
	if err != nil {
		return err
	}
	printBatch(h.out, summary)
	return nil
}

func (h *InputHandler) fuzzy(text string) error {
	if text == "" {
		return errors.New("nothing to scan")
	}
	suggestions := h.restorer.SuggestFuzzy(text, restore.FuzzyOptions{
		MaxDistance: h.config.Fuzzy.MaxDistance,
		Confusables: h.config.Fuzzy.Relation(),
		TopK:        h.config.Fuzzy.TopK,
	})
	if len(suggestions) == 0 {
		fmt.Fprintln(h.out, "No suggestions")
		return nil
	}
	printFuzzy(h.out, suggestions)
	return nil
}

func (h *InputHandler) complete(prefix string) error {
	if prefix == "" {
		return errors.New("missing prefix")
	}
	suggestions := h.completer.Complete(prefix, h.config.CLI.DefaultLimit)
	if len(suggestions) == 0 {
		log.Warnf("No suggestions found for prefix: '%s'", prefix)
		return nil
	}
	for i, s := range suggestions {
		fmt.Fprintf(h.out, "%2d. %-20s (freq: %8s)\n", i+1, h.styles.word.Render(s.Word), formatWithCommas(s.Frequency))
	}
	return nil
}

// challenge plays one round, reading the guess from the next line.
func (h *InputHandler) playChallenge(level challenge.Level) error {
	round, err := h.game.Next(level)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Guess the %s word: %s\n", level, h.styles.title.Render(round.Masked))
	guess, err := h.readLine("guess> ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if round.Check(guess) {
		fmt.Fprintln(h.out, "Correct!")
		return nil
	}
	fmt.Fprintf(h.out, "Wrong, the word was '%s'\n", round.Word)
	return nil
}

// saveSettings writes the interactive settings to the config file.
func (h *InputHandler) saveSettings() error {
	if h.configPath == "" {
		return errors.New("no config file in use")
	}
	th := h.restorer.Threshold()
	dist := h.config.Fuzzy.MaxDistance
	conf := h.config.Fuzzy.Confusables
	h.config.Restore.DefaultMode = string(h.mode)
	if err := h.config.Update(h.configPath, &th, &dist, &conf); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintf(h.out, "Settings saved to %s\n", h.configPath)
	return nil
}
