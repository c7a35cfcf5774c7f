package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// FileFormat represents the container of a text source.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatPlain              // plain text, memory mapped
	FormatGzip               // gzip compressed text
	FormatZstd               // zstandard compressed text
)

// FormatInfo contains metadata about a source format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	Magic       []byte
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatPlain: {
		Format:      FormatPlain,
		Description: "Plain Text",
		Extensions:  []string{".txt", ".csv", ""},
	},
	FormatGzip: {
		Format:      FormatGzip,
		Description: "Gzip Compressed Text",
		Extensions:  []string{".gz"},
		Magic:       []byte{0x1f, 0x8b},
	},
	FormatZstd: {
		Format:      FormatZstd,
		Description: "Zstandard Compressed Text",
		Extensions:  []string{".zst", ".zstd"},
		Magic:       []byte{0x28, 0xb5, 0x2f, 0xfd},
	},
}

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "Unknown"
}

// DetectFileFormat looks at the magic bytes of filename. The extension is
// not trusted: a ".gz" file without the gzip header is read as plain text.
func DetectFileFormat(filename string) (FileFormat, error) {
	file, err := os.Open(filename)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, fmt.Errorf("failed to read header from %s: %w", filename, err)
	}
	head = head[:n]

	for _, format := range []FileFormat{FormatGzip, FormatZstd} {
		if magic := supportedFormats[format].Magic; bytes.HasPrefix(head, magic) {
			return format, nil
		}
	}

	if ext := strings.ToLower(filepath.Ext(filename)); ext == ".gz" || ext == ".zst" {
		log.Warnf("%s has a %s extension but no matching header, reading as plain text", filename, ext)
	}
	return FormatPlain, nil
}
