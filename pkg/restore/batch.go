package restore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/charmbracelet/log"
)

// ErrNoTextFiles is returned when a batch folder has no .txt files.
var ErrNoTextFiles = errors.New("no .txt files found")

// OutputPrefix is prepended to the name of every restored file.
const OutputPrefix = "restored_"

// FileSummary is the outcome for one file of a batch.
type FileSummary struct {
	Name      string
	Output    string
	Masked    int
	Restored  int
	Unmatched []string
	Err       error
}

// MatchRate is the share of masked tokens that were restored, in percent.
func (f FileSummary) MatchRate() float64 {
	if f.Masked == 0 {
		return 0
	}
	return float64(f.Restored) / float64(f.Masked) * 100
}

// BatchSummary collects the per file results and totals.
type BatchSummary struct {
	Files     []FileSummary
	Masked    int
	Restored  int
	Unmatched int
	Failed    int
}

// MatchRate is the overall share of restored masked tokens, in percent.
func (b *BatchSummary) MatchRate() float64 {
	if b.Masked == 0 {
		return 0
	}
	return float64(b.Restored) / float64(b.Masked) * 100
}

// BatchOptions controls RestoreFolder.
type BatchOptions struct {
	Mode Mode
	// OutputDir defaults to the input folder.
	OutputDir string
	// Encoding is the charset of the input files.
	Encoding string
}

// RestoreFolder restores every .txt file of folder into OutputDir as
// restored_<name>. A file that fails is reported in its summary and does
// not stop the others. Restored output files are skipped as input.
func (r *Restorer) RestoreFolder(folder string, opts BatchOptions) (*BatchSummary, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("invalid folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid folder %s: not a directory", folder)
	}
	if opts.Mode == "" {
		opts.Mode = ModeBest
	}
	if _, err := r.Strategy(opts.Mode); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".txt") || strings.HasPrefix(name, OutputPrefix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTextFiles, folder)
	}
	sort.Strings(names)

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = folder
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", outDir, err)
	}

	summary := &BatchSummary{}
	for _, name := range names {
		fs := r.restoreFile(filepath.Join(folder, name), filepath.Join(outDir, OutputPrefix+name), opts)
		fs.Name = name
		if fs.Err != nil {
			log.Warnf("batch restore of %s failed: %v", name, fs.Err)
			summary.Failed++
		} else {
			summary.Masked += fs.Masked
			summary.Restored += fs.Restored
			summary.Unmatched += len(fs.Unmatched)
		}
		summary.Files = append(summary.Files, fs)
	}
	log.Debugf("batch restored %d files, %d of %d masked tokens", len(names), summary.Restored, summary.Masked)
	return summary, nil
}

func (r *Restorer) restoreFile(in, out string, opts BatchOptions) FileSummary {
	data, err := source.ReadAll(in, source.WithEncoding(opts.Encoding))
	if err != nil {
		return FileSummary{Err: err}
	}
	res, err := r.Restore(string(data), opts.Mode, r.Threshold())
	if err != nil {
		return FileSummary{Err: err}
	}
	if err := os.WriteFile(out, []byte(res.Text), 0o644); err != nil {
		return FileSummary{Err: fmt.Errorf("failed to write %s: %w", out, err)}
	}
	return FileSummary{
		Output:    out,
		Masked:    res.Masked,
		Restored:  res.Restored,
		Unmatched: res.Unmatched,
	}
}
