// Package subtitle reads and writes SRT, VTT and ASS files and turns their
// cues into timeline lines keyed by file content.
package subtitle

import (
	"time"
)

// Entry is one cue as parsed from a file.
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// Subtitle is the plain cue list of a file.
type Subtitle struct {
	Entries []Entry
	Format  Format
	// Hash identifies the file content; line keys are built from it.
	Hash string
	Path string
}

type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "srt", ".srt":
		return FormatSRT, true
	case "vtt", ".vtt":
		return FormatVTT, true
	case "ass", ".ass", "ssa", ".ssa":
		return FormatASS, true
	}
	return "", false
}

// Writer writes a plain cue list in one format.
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}
