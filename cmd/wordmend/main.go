// Copyright 2025 The WordMend Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the text restoration server and interactive CLI.

WordMend restores words of a text that were masked with a wildcard
character. Every masked token is matched against a frequency weighted
vocabulary held in a prefix tree; the best match, every match, or the match
a bigram language model finds most likely between the neighbouring words is
put in its place. Words that are not masked but missing from the vocabulary
get fuzzy suggestions that tolerate OCR confusions such as 0/o or rn/m.

# Usage

Start the IPC server on a vocabulary:

	wordmend -vocab words.txt

Fit a language model and restore a text once:

	wordmend -vocab words.txt -corpus corpus.txt.gz -mode context "the c*t sat"

Run in CLI mode for interactive use:

	wordmend -c -vocab words.txt -d

A vocabulary file has one word per line, optionally followed by a comma and
its frequency. Vocabularies, corpora and model snapshots may be gzip or zstd
compressed; -encoding reads corpora and vocabularies in a legacy charset.

# Configuration

Settings are read from a TOML file, created with defaults when missing:

	[restore]
	wildcard = "*"
	default_mode = "best"
	threshold = 0.6

	[fuzzy]
	max_distance = 1
	confusables = true

	[redis]
	addr = "localhost:6379"
	key = "wordmend:vocab"

Flags override the file for a single run. The CLI /save command writes the
interactive settings back.

# IPC Protocol

The server reads msgpack requests from stdin and writes one msgpack response
per request to stdout, see package server:

	{"id": "r1", "action": "restore", "x": "the c*t sat", "m": "best"}
	{"id": "r1", "x": "the <cat> sat", "m": "best", "mk": 1, "rs": 1, "t": 37}

Logs always go to stderr.

# Redis

With a [redis] address configured the vocabulary can be shared between
instances through a sorted set. -sync pull replaces the local vocabulary
with the stored one at startup, -sync push uploads the local one. Words
added or deleted over IPC are mirrored as they change.

# Command Line Flags

	-version      Show current version
	-d            Toggle debug mode
	-c            Run the interactive CLI
	-config path  Config file to use
	-vocab path   Vocabulary file
	-corpus path  Corpus to fit the language model on
	-model path   Model snapshot to load instead of fitting
	-save-model   Write the fitted model snapshot to this path
	-mode name    best, all or context
	-threshold t  Context confidence needed to apply a choice
	-seed n       Seed for random tie breaking, 0 for the clock
	-encoding     Charset of vocabulary and corpus files
	-sync         pull or push the Redis vocabulary
	-reset-config Rewrite the default config file and exit

Arguments left after the flags are restored as one text and printed.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bastiangx/wordmend/internal/cli"
	"github.com/bastiangx/wordmend/internal/logger"
	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/config"
	"github.com/bastiangx/wordmend/pkg/dictionary"
	"github.com/bastiangx/wordmend/pkg/lm"
	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/server"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/bastiangx/wordmend/pkg/suggest"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	Version = "0.3.0"
	AppName = "wordmend"
	gh      = "https://github.com/bastiangx/wordmend"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main wires the packages together and picks the run mode.
// main() does not implement logic for them and only manages the flow.
func main() {
	sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run the interactive CLI")
	configFile := flag.String("config", "", "Path to a custom config file")
	vocabPath := flag.String("vocab", "", "Vocabulary file (overrides [restore] vocabulary)")
	corpusPath := flag.String("corpus", "", "Corpus to fit the language model on (overrides [model] corpus)")
	modelPath := flag.String("model", "", "Model snapshot to load instead of fitting a corpus")
	saveModel := flag.String("save-model", "", "Write the fitted model snapshot to this path")
	mode := flag.String("mode", "", "Restore mode: best, all or context")
	threshold := flag.Float64("threshold", -1, "Context confidence needed to apply a choice (0-1)")
	seed := flag.Int("seed", -1, "Seed for random tie breaking, 0 seeds from the clock")
	encoding := flag.String("encoding", "", "Charset of vocabulary and corpus files")
	syncMode := flag.String("sync", "", "Redis vocabulary sync at startup: pull or push")
	resetConfig := flag.Bool("reset-config", false, "Rewrite the default config file with defaults and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	if *resetConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		log.Info("Config file rebuilt with defaults")
		os.Exit(0)
	}

	cfg, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *vocabPath, *corpusPath, *mode, *threshold, *seed, *encoding)
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	tr := trie.New(
		trie.WithWildcard(cfg.WildcardRune()),
		trie.WithRand(restore.NewRand(uint64(cfg.Restore.Seed))),
	)
	vocab := pathResolver.FindDataFile(cfg.Restore.Vocabulary)
	if vocab != "" {
		res, err := dictionary.LoadFile(tr, vocab, source.WithEncoding(cfg.Model.Encoding))
		if err != nil {
			log.Errorf("Failed to load vocabulary: %v", err)
		} else {
			log.Debugf("Vocabulary: %d words from %s", res.Inserted, res.Path)
		}
	} else {
		log.Warn("No vocabulary specified, running with an empty one...")
	}

	store := connectRedis(cfg.Redis)
	if store != nil {
		syncVocabulary(store, tr, *syncMode)
	}

	model := loadModel(pathResolver, cfg, *modelPath, *saveModel)

	// the strategy gets its own stream; seed 0 stays clock based
	bestSeed := uint64(cfg.Restore.Seed)
	if bestSeed != 0 {
		bestSeed++
	}
	opts := []restore.Option{
		restore.WithThreshold(cfg.Restore.Threshold),
		restore.WithRand(restore.NewRand(bestSeed)),
	}
	if model != nil {
		opts = append(opts, restore.WithModel(model))
	}
	restorer := restore.New(tr, opts...)
	completer := suggest.FromTrie(tr, 0)

	if args := flag.Args(); len(args) > 0 {
		restoreOnce(restorer, cfg, strings.Join(args, " "))
		return
	}

	if *cliMode {
		log.SetReportTimestamp(false)
		inputHandler := cli.NewInputHandler(restorer, completer, cfg, configPath)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srvOpts := []server.Option{server.WithResolver(pathResolver)}
	if store != nil {
		srvOpts = append(srvOpts, server.WithStore(store))
	}
	srv := server.NewServer(restorer, completer, cfg, srvOpts...)

	showStartupInfo(tr, model, vocab)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// printVersion shows the styled version banner.
func printVersion() {
	banner := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ WordMend ] Restores masked words from context!")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}

// applyFlags lets flags that were set override the config for this run.
func applyFlags(cfg *config.Config, vocab, corpus, mode string, threshold float64, seed int, encoding string) {
	if vocab != "" {
		cfg.Restore.Vocabulary = vocab
	}
	if corpus != "" {
		cfg.Model.Corpus = corpus
	}
	if mode != "" {
		cfg.Restore.DefaultMode = mode
	}
	if threshold >= 0 {
		cfg.Restore.Threshold = threshold
	}
	if seed >= 0 {
		cfg.Restore.Seed = seed
	}
	if encoding != "" {
		cfg.Model.Encoding = encoding
	}
	cfg.Validate()
}

// connectRedis returns a store when an address is configured and reachable.
func connectRedis(rc config.RedisConfig) *dictionary.RedisStore {
	if !rc.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	store := dictionary.NewRedisStore(client, rc.Key)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Warnf("Redis at %s unreachable, vocabulary will not be mirrored: %v", rc.Addr, err)
		client.Close()
		return nil
	}
	log.Debugf("Mirroring vocabulary to redis %s key %s", rc.Addr, store.Key())
	return store
}

func syncVocabulary(store *dictionary.RedisStore, tr *trie.Trie, mode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	switch mode {
	case "":
	case "pull":
		res, err := store.Pull(ctx, tr)
		if err != nil {
			log.Errorf("Failed to pull vocabulary: %v", err)
			return
		}
		log.Infof("Pulled %d words from %s", res.Inserted, store.Key())
	case "push":
		n, err := store.Push(ctx, tr)
		if err != nil {
			log.Errorf("Failed to push vocabulary: %v", err)
			return
		}
		log.Infof("Pushed %d words to %s", n, store.Key())
	default:
		log.Warnf("Unknown sync mode %q, expected pull or push", mode)
	}
}

// loadModel reads a snapshot or fits the configured corpus. A nil model
// leaves the context mode unavailable.
func loadModel(pr *utils.PathResolver, cfg *config.Config, snapshot, saveTo string) *lm.Model {
	var (
		m   *lm.Model
		err error
	)
	switch {
	case snapshot != "":
		m, err = lm.LoadFile(pr.FindDataFile(snapshot))
	case cfg.Model.Corpus != "":
		m, err = lm.FitFile(pr.FindDataFile(cfg.Model.Corpus),
			lm.WithSmoothing(cfg.Model.SmoothingK),
			lm.WithEncoding(cfg.Model.Encoding))
	default:
		log.Debug("No corpus or model given, context mode disabled")
		return nil
	}
	if err != nil {
		log.Errorf("Failed to load language model: %v", err)
		return nil
	}

	stats := m.Stats()
	log.Debugf("Model: %d tokens, %d distinct, %d bigrams, k=%v", stats.Tokens, stats.Vocabulary, stats.Bigrams, stats.Smoothing)
	if saveTo != "" {
		if err := m.SaveFile(saveTo); err != nil {
			log.Errorf("Failed to save model: %v", err)
		} else {
			log.Infof("Model snapshot written to %s", saveTo)
		}
	}
	return m
}

// restoreOnce restores text in the configured mode and prints the result.
func restoreOnce(r *restore.Restorer, cfg *config.Config, text string) {
	mode, err := restore.ParseMode(cfg.Restore.DefaultMode)
	if err != nil {
		log.Fatal(err)
	}
	res, err := r.Restore(text, mode, cfg.Restore.Threshold)
	if err != nil {
		log.Fatalf("Restore failed: %v", err)
	}
	fmt.Println(res.Text)
	for _, row := range res.Rows {
		log.Debug("context choice", "token", row.Original, "choice", row.Choice,
			"confidence", fmt.Sprintf("%.4f", row.Confidence), "applied", row.Accepted)
	}
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(tr *trie.Trie, model *lm.Model, vocab string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" WordMend ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("vocabulary: ( %s ) %d words", vocab, tr.UniqueWords())
	if model != nil {
		log.Infof("model: %d distinct tokens", model.VocabularySize())
	} else {
		log.Info("model: none, context mode off")
	}
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
