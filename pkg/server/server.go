package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/wordmend/internal/logger"
	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/config"
	"github.com/bastiangx/wordmend/pkg/dictionary"
	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/suggest"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultLimit applies when a request leaves the limit unset.
const defaultLimit = 10

// mirrorTimeout bounds each Redis call made for a request.
const mirrorTimeout = 2 * time.Second

// Server handles the IPC for restoration requests
type Server struct {
	restorer  *restore.Restorer
	completer *suggest.Completer
	config    *config.Config
	store     *dictionary.RedisStore
	resolver  *utils.PathResolver

	dec    *msgpack.Decoder
	out    *bufio.Writer
	enc    *msgpack.Encoder
	logger *log.Logger

	requests int
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.dec = msgpack.NewDecoder(bufio.NewReader(in))
		s.out = bufio.NewWriter(out)
		s.enc = msgpack.NewEncoder(s.out)
	}
}

// WithStore mirrors add and delete into a Redis vocabulary.
func WithStore(store *dictionary.RedisStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithResolver resolves relative paths of load requests.
func WithResolver(pr *utils.PathResolver) Option {
	return func(s *Server) {
		s.resolver = pr
	}
}

// NewServer creates a server using stdin/stdout for IPC
func NewServer(r *restore.Restorer, c *suggest.Completer, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		restorer:  r,
		completer: c,
		config:    cfg,
		logger:    logger.New("ipc"),
	}
	WithIO(os.Stdin, os.Stdout)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start signals readiness and answers requests until the input closes.
func (s *Server) Start() error {
	s.logger.Debug("Starting Server.")
	if err := s.send(StatusResponse{Status: "ready"}); err != nil {
		return err
	}

	for {
		raw, err := s.dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debugf("input closed after %d requests", s.requests)
				return nil
			}
			s.logger.Errorf("Reading from stdin: %v", err)
			return fmt.Errorf("failed to read request: %w", err)
		}
		s.requests++

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.logger.Warnf("Unmarshaling request: %v", err)
			s.sendError("", "invalid msgpack request", CodeBadRequest)
			continue
		}
		s.handleRequest(req)
	}
}

// handleRequest dispatches one decoded request by action.
func (s *Server) handleRequest(req Request) {
	switch strings.ToLower(req.Action) {
	case "restore":
		s.handleRestore(req)
	case "fuzzy":
		s.handleFuzzy(req)
	case "matches":
		s.handleMatches(req)
	case "complete":
		s.handleComplete(req)
	case "add":
		s.handleAdd(req)
	case "delete":
		s.handleDelete(req)
	case "search":
		s.handleSearch(req)
	case "load":
		s.handleLoad(req)
	case "info":
		s.handleInfo(req)
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown action: %q", req.Action), CodeBadRequest)
	}
}

// send writes one value and flushes it to the client.
func (s *Server) send(v any) error {
	if err := s.enc.Encode(v); err != nil {
		s.logger.Errorf("Marshaling response: %v", err)
		return err
	}
	if err := s.out.Flush(); err != nil {
		s.logger.Errorf("Writing response: %v", err)
		return err
	}
	return nil
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.logger.Debugf("request %q failed (%d): %s", id, code, message)
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}

// limit clamps a requested result count to the configured maximum.
func (s *Server) limit(requested int) int {
	if requested < 1 {
		requested = defaultLimit
	}
	return min(requested, s.config.Server.MaxLimit)
}

// checkText refuses empty and oversized texts.
func (s *Server) checkText(req Request) bool {
	if req.Text == "" {
		s.sendError(req.ID, "missing 'x' text", CodeBadRequest)
		return false
	}
	if len(req.Text) > s.config.Server.MaxTextBytes {
		s.sendError(req.ID, fmt.Sprintf("text exceeds %d bytes", s.config.Server.MaxTextBytes), CodeTooLarge)
		return false
	}
	if !utf8.ValidString(req.Text) {
		s.sendError(req.ID, "text is not valid UTF-8", CodeBadRequest)
		return false
	}
	return true
}

func (s *Server) handleRestore(req Request) {
	if !s.checkText(req) {
		return
	}
	modeName := req.Mode
	if modeName == "" {
		modeName = s.config.Restore.DefaultMode
	}
	mode, err := restore.ParseMode(modeName)
	if err != nil {
		s.sendError(req.ID, err.Error(), CodeBadRequest)
		return
	}
	threshold := s.restorer.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
		if threshold < 0 || threshold > 1 {
			s.sendError(req.ID, restore.ErrInvalidThreshold.Error(), CodeBadRequest)
			return
		}
	}

	start := time.Now()
	res, err := s.restorer.Restore(req.Text, mode, threshold)
	if err != nil {
		code := CodeInternal
		if errors.Is(err, restore.ErrNoModel) {
			code = CodeConflict
		}
		s.sendError(req.ID, err.Error(), code)
		return
	}
	s.send(RestoreResponse{
		ID:        req.ID,
		Text:      res.Text,
		Mode:      string(mode),
		Masked:    res.Masked,
		Restored:  res.Restored,
		Unmatched: res.Unmatched,
		Rows:      res.Rows,
		TimeTaken: time.Since(start).Microseconds(),
	})
}

func (s *Server) handleFuzzy(req Request) {
	if !s.checkText(req) {
		return
	}
	fz := s.config.Fuzzy
	if req.MaxDistance != nil {
		if *req.MaxDistance < 0 {
			s.sendError(req.ID, "max distance must not be negative", CodeBadRequest)
			return
		}
		fz.MaxDistance = *req.MaxDistance
	}
	if req.Confusables != nil {
		fz.Confusables = *req.Confusables
	}

	start := time.Now()
	suggestions := s.restorer.SuggestFuzzy(req.Text, restore.FuzzyOptions{
		MaxDistance: fz.MaxDistance,
		Confusables: fz.Relation(),
		TopK:        fz.TopK,
	})
	if suggestions == nil {
		suggestions = []restore.Suggestion{}
	}
	s.send(FuzzyResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   time.Since(start).Microseconds(),
	})
}

func (s *Server) handleMatches(req Request) {
	if req.Pattern == "" {
		s.sendError(req.ID, "missing 'pt' pattern", CodeBadRequest)
		return
	}
	start := time.Now()
	matches := s.restorer.Trie().FindMatches(strings.ToLower(req.Pattern))
	total := len(matches)
	if n := s.limit(req.Limit); len(matches) > n {
		matches = matches[:n]
	}
	if matches == nil {
		matches = []trie.Candidate{}
	}
	s.send(MatchesResponse{
		ID:        req.ID,
		Matches:   matches,
		Count:     len(matches),
		Total:     total,
		TimeTaken: time.Since(start).Microseconds(),
	})
}

// handleComplete answers a prefix with ranked completions, rank 1 being
// the most frequent.
func (s *Server) handleComplete(req Request) {
	if req.Prefix == "" {
		s.sendError(req.ID, "missing 'p' prefix", CodeBadRequest)
		return
	}
	if utf8.RuneCountInString(req.Prefix) > 60 {
		s.sendError(req.ID, "prefix exceeds maximum length of 60 characters", CodeBadRequest)
		return
	}

	start := time.Now()
	found := s.completer.Complete(req.Prefix, s.limit(req.Limit))
	suggestions := make([]CompletionSuggestion, len(found))
	for i, sg := range found {
		suggestions[i] = CompletionSuggestion{Word: sg.Word, Rank: uint16(i + 1)}
	}
	s.send(CompletionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   time.Since(start).Microseconds(),
	})
}

func (s *Server) handleAdd(req Request) {
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if !utils.IsValidWord(word, s.restorer.Trie().Wildcard()) {
		s.sendError(req.ID, fmt.Sprintf("invalid word: %q", req.Word), CodeBadRequest)
		return
	}
	count := req.Count
	if count == 0 {
		count = 1
	}
	t := s.restorer.Trie()
	if err := t.Insert(word, count); err != nil {
		s.sendError(req.ID, err.Error(), CodeBadRequest)
		return
	}
	freq := t.Frequency(word)
	s.completer.AddWord(word, freq)
	s.mirror(func(ctx context.Context) error { return s.store.Add(ctx, word, count) })

	s.send(DictionaryResponse{ID: req.ID, Status: "ok", Word: word, Found: true, Frequency: freq})
}

func (s *Server) handleDelete(req Request) {
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if word == "" {
		s.sendError(req.ID, "missing 'w' word", CodeBadRequest)
		return
	}
	if !s.restorer.Trie().Delete(word) {
		s.sendError(req.ID, fmt.Sprintf("word not found: %q", word), CodeNotFound)
		return
	}
	s.completer.RemoveWord(word)
	s.mirror(func(ctx context.Context) error { return s.store.Remove(ctx, word) })

	s.send(DictionaryResponse{ID: req.ID, Status: "ok", Word: word})
}

func (s *Server) handleSearch(req Request) {
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if word == "" {
		s.sendError(req.ID, "missing 'w' word", CodeBadRequest)
		return
	}
	t := s.restorer.Trie()
	s.send(DictionaryResponse{
		ID:        req.ID,
		Status:    "ok",
		Word:      word,
		Found:     t.Search(word),
		Frequency: t.Frequency(word),
	})
}

// handleLoad replaces the vocabulary with a file. A failed load leaves the
// current vocabulary untouched.
func (s *Server) handleLoad(req Request) {
	if req.Path == "" {
		s.sendError(req.ID, "missing 'path'", CodeBadRequest)
		return
	}
	if !source.ValidEncoding(req.Encoding) {
		s.sendError(req.ID, fmt.Sprintf("unsupported encoding: %q", req.Encoding), CodeBadRequest)
		return
	}
	path := req.Path
	if s.resolver != nil {
		path = s.resolver.FindDataFile(path)
	}

	t := s.restorer.Trie()
	res, err := dictionary.LoadFile(t, path, source.WithEncoding(req.Encoding))
	if err != nil {
		code := CodeInternal
		if errors.Is(err, os.ErrNotExist) {
			code = CodeNotFound
		}
		s.sendError(req.ID, err.Error(), code)
		return
	}
	s.completer.Rebuild(t.Words())
	s.restorer.ClearHistory()
	s.logger.Infof("Loaded %d words from %s", res.Inserted, res.Path)

	s.send(DictionaryResponse{ID: req.ID, Status: "ok", Load: &res})
}

func (s *Server) handleInfo(req Request) {
	t := s.restorer.Trie()
	info := InfoResponse{
		ID:          req.ID,
		TotalWords:  t.TotalWords(),
		UniqueWords: t.UniqueWords(),
		Wildcard:    string(t.Wildcard()),
		Mode:        s.config.Restore.DefaultMode,
		Threshold:   s.restorer.Threshold(),
		Requests:    s.requests,
	}
	if m := s.restorer.Model(); m != nil {
		stats := m.Stats()
		info.Model = &stats
	}
	if s.store != nil {
		info.Mirror = s.store.Key()
	}
	s.send(info)
}

// mirror runs fn against the Redis store when one is configured. Failures
// are logged; the local vocabulary stays authoritative.
func (s *Server) mirror(fn func(ctx context.Context) error) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warnf("Redis mirror update failed: %v", err)
	}
}
