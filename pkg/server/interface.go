/*
Package server implements msgpack IPC for text restoration.

The server reads msgpack values from stdin and answers each with exactly one
msgpack value on stdout. Logs go to stderr so the stream stays clean.

# IPC

Every request is a map with an ID and an action. The remaining fields
depend on the action:

	{"id": "r1", "action": "restore", "x": "the c*t sat", "m": "context", "th": 0.5}
	{"id": "r2", "action": "fuzzy", "x": "he1lo w0rld", "d": 1, "cf": true}
	{"id": "r3", "action": "matches", "pt": "c*t", "l": 10}
	{"id": "r4", "action": "complete", "p": "rai", "l": 5}
	{"id": "r5", "action": "add", "w": "cat", "n": 3}
	{"id": "r6", "action": "delete", "w": "cat"}
	{"id": "r7", "action": "search", "w": "cat"}
	{"id": "r8", "action": "load", "path": "vocab.txt.gz", "enc": "latin1"}
	{"id": "r9", "action": "info"}

The restore response carries the restored text and, in context mode, one
review row per masked token:

	{"id": "r1", "x": "the <cat> sat", "mk": 1, "rs": 1, "r": [...], "t": 145}

Any failed request is answered with an error value instead:

	{"id": "r1", "e": "no language model loaded", "c": 409}

Once started the server writes a single {"status": "ready"} value before
reading requests. Texts above the configured byte limit are refused and
result limits are clamped to the configured maximum.

# Message Types

Request is the single envelope for every action. RestoreResponse,
FuzzyResponse, MatchesResponse and CompletionResponse answer the lookup
actions; DictionaryResponse answers add, delete, search and load;
InfoResponse describes the loaded vocabulary and model. ErrorResponse is
the common failure value.

All times are in microseconds.
*/
package server

import (
	"github.com/bastiangx/wordmend/pkg/dictionary"
	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/trie"
)

// Error codes
const (
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeConflict   = 409
	CodeTooLarge   = 413
	CodeInternal   = 500
)

// Request - envelope for every action
type Request struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action"`

	Text      string   `msgpack:"x,omitempty"`
	Mode      string   `msgpack:"m,omitempty"`
	Threshold *float64 `msgpack:"th,omitempty"`

	MaxDistance *int  `msgpack:"d,omitempty"`
	Confusables *bool `msgpack:"cf,omitempty"`

	Pattern string `msgpack:"pt,omitempty"`
	Prefix  string `msgpack:"p,omitempty"`
	Limit   int    `msgpack:"l,omitempty"`

	Word  string `msgpack:"w,omitempty"`
	Count int    `msgpack:"n,omitempty"`

	Path     string `msgpack:"path,omitempty"`
	Encoding string `msgpack:"enc,omitempty"`
}

// StatusResponse - ready signal
type StatusResponse struct {
	Status string `msgpack:"status"`
}

// RestoreResponse - restored text and counts
type RestoreResponse struct {
	ID        string              `msgpack:"id"`
	Text      string              `msgpack:"x"`
	Mode      string              `msgpack:"m"`
	Masked    int                 `msgpack:"mk"`
	Restored  int                 `msgpack:"rs"`
	Unmatched []string            `msgpack:"u,omitempty"`
	Rows      []restore.ReviewRow `msgpack:"r,omitempty"`
	TimeTaken int64               `msgpack:"t"`
}

// FuzzyResponse - near matches per unknown word
type FuzzyResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []restore.Suggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	TimeTaken   int64                `msgpack:"t"`
}

// MatchesResponse - every vocabulary word fitting a pattern
type MatchesResponse struct {
	ID        string           `msgpack:"id"`
	Matches   []trie.Candidate `msgpack:"s"`
	Count     int              `msgpack:"c"`
	Total     int              `msgpack:"n"`
	TimeTaken int64            `msgpack:"t"`
}

// CompletionSuggestion - minimal suggestion response
type CompletionSuggestion struct {
	Word string `msgpack:"w"`
	Rank uint16 `msgpack:"r"`
}

// CompletionResponse - completion response
type CompletionResponse struct {
	ID          string                 `msgpack:"id"`
	Suggestions []CompletionSuggestion `msgpack:"s"`
	Count       int                    `msgpack:"c"`
	TimeTaken   int64                  `msgpack:"t"`
}

// DictionaryResponse - vocabulary operation response
type DictionaryResponse struct {
	ID        string                 `msgpack:"id"`
	Status    string                 `msgpack:"status"`
	Word      string                 `msgpack:"w,omitempty"`
	Found     bool                   `msgpack:"found"`
	Frequency int                    `msgpack:"f"`
	Load      *dictionary.LoadResult `msgpack:"load,omitempty"`
}

// InfoResponse - vocabulary and model summary
type InfoResponse struct {
	ID          string    `msgpack:"id"`
	TotalWords  int       `msgpack:"total"`
	UniqueWords int       `msgpack:"unique"`
	Wildcard    string    `msgpack:"wildcard"`
	Mode        string    `msgpack:"mode"`
	Threshold   float64   `msgpack:"threshold"`
	Model       *lm.Stats `msgpack:"model,omitempty"`
	Requests    int       `msgpack:"requests"`
	Mirror      string    `msgpack:"mirror,omitempty"`
}

// ErrorResponse holds basic error information for any request
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
