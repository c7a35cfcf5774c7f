// Package source opens the text files wordmend reads: vocabularies, corpora
// and masked documents. Plain files are memory mapped, gzip and zstd files
// are decompressed on the fly, and legacy single byte charsets can be
// decoded to UTF-8.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedEncoding is returned for charset names Open does not know.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Options controls how a source is read.
type Options struct {
	// Encoding names the charset of the decompressed bytes. Empty or
	// "utf-8" means no decoding.
	Encoding string
}

// Option modifies Options.
type Option func(*Options)

// WithEncoding sets the source charset.
func WithEncoding(name string) Option {
	return func(o *Options) {
		o.Encoding = name
	}
}

var charsets = map[string]*charmap.Charmap{
	"latin1":       charmap.ISO8859_1,
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

// ValidEncoding reports whether name is accepted by WithEncoding.
func ValidEncoding(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return true
	}
	_, ok := charsets[name]
	return ok
}

// Open returns a reader over the decoded text of path. The caller closes it.
func Open(path string, opts ...Option) (io.ReadCloser, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	enc := strings.ToLower(strings.TrimSpace(o.Encoding))
	if !ValidEncoding(enc) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, o.Encoding)
	}

	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("opening %s as %s", path, format)

	var rc io.ReadCloser
	switch format {
	case FormatGzip:
		rc, err = openGzip(path)
	case FormatZstd:
		rc, err = openZstd(path)
	default:
		rc, err = openMapped(path)
	}
	if err != nil {
		return nil, err
	}

	if cm, ok := charsets[enc]; ok {
		return &decoded{Reader: cm.NewDecoder().Reader(rc), under: rc}, nil
	}
	return rc, nil
}

// ReadAll opens path and returns its decoded contents.
func ReadAll(path string, opts ...Option) ([]byte, error) {
	rc, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

type decoded struct {
	io.Reader
	under io.Closer
}

func (d *decoded) Close() error { return d.under.Close() }

// mappedFile serves reads from a read-only mapping of the whole file.
type mappedFile struct {
	*bytes.Reader
	m    mmap.MMap
	file *os.File
}

func (f *mappedFile) Close() error {
	var err error
	if f.m != nil {
		err = f.m.Unmap()
	}
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func openMapped(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	// empty files cannot be mapped
	if info.Size() == 0 {
		return &mappedFile{Reader: bytes.NewReader(nil), file: file}, nil
	}

	m, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return &mappedFile{Reader: bytes.NewReader(m), m: m, file: file}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGzip(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	zr, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: file}, nil
}

type zstdFile struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.file.Close()
}

func openZstd(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	dec, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
	}
	return &zstdFile{dec: dec, file: file}, nil
}
