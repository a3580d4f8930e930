package subtitle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File is a parsed subtitle file. Writing it back in its own format keeps
// everything the cue list does not model.
type File interface {
	Format() Format
	Subtitle() *Subtitle
	SetTiming(index int, start, end time.Duration) error
	Write(path string) error
}

// Open parses the subtitle file at path, choosing the parser by extension.
func Open(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	src := source{path: path, hash: Hash(data)}

	format, ok := ParseFormat(strings.ToLower(filepath.Ext(path)))
	if !ok {
		return nil, fmt.Errorf("unsupported subtitle format: %s", filepath.Ext(path))
	}
	if format == FormatASS {
		return parseASS(bytes.NewReader(data), src)
	}
	return parseCues(bytes.NewReader(data), src, format)
}

// Hash returns the hex xxhash64 digest of a subtitle file's bytes.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// HashFile hashes the file at path without parsing it.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return Hash(data), nil
}

// source carries where a parsed file came from.
type source struct {
	path string
	hash string
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("index %d out of range (0-%d)", index, n-1)
	}
	return nil
}
