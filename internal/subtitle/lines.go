package subtitle

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/mgpai22/subdeck/internal/timeline"
)

// Line is one subtitle entry as the timeline sees it. Times are seconds.
type Line struct {
	// Key is <file hash>-<position> and is stable for a given file content.
	Key   string
	Index int
	Start float64
	End   float64
	Text  string

	// Persisted timing that replaces Start/End as the baseline.
	AdjustedStart *float64
	AdjustedEnd   *float64
}

// Baseline is a persisted effective interval for one line.
type Baseline struct {
	Start float64
	End   float64
}

// LineKey builds the key of the line at position index in a file.
func LineKey(hash string, index int) string {
	return hash + "-" + strconv.Itoa(index)
}

// Lines converts parsed entries into timeline lines, applying persisted
// baselines by key. Lines are ordered by start time; Key and Index keep the
// position in the file.
func Lines(sub *Subtitle, baselines map[string]Baseline) []Line {
	lines := make([]Line, len(sub.Entries))
	for i, e := range sub.Entries {
		l := Line{
			Key:   LineKey(sub.Hash, i),
			Index: i,
			Start: e.StartTime.Seconds(),
			End:   e.EndTime.Seconds(),
			Text:  e.Text,
		}
		if b, ok := baselines[l.Key]; ok {
			start, end := b.Start, b.End
			l.AdjustedStart = &start
			l.AdjustedEnd = &end
		}
		lines[i] = l
	}
	slices.SortStableFunc(lines, func(a, b Line) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return lines
}

// Accessors tells a timeline session how to read a Line.
func Accessors() timeline.Accessors[Line] {
	return timeline.Accessors[Line]{
		ID:    func(l Line) string { return l.Key },
		Start: func(l Line) float64 { return l.Start },
		End:   func(l Line) float64 { return l.End },
		AdjustedStart: func(l Line) (float64, bool) {
			if l.AdjustedStart == nil {
				return 0, false
			}
			return *l.AdjustedStart, true
		},
		AdjustedEnd: func(l Line) (float64, bool) {
			if l.AdjustedEnd == nil {
				return 0, false
			}
			return *l.AdjustedEnd, true
		},
	}
}

// FromSeconds converts seconds to a duration rounded to the millisecond.
func FromSeconds(sec float64) time.Duration {
	if sec < 0 {
		sec = 0
	}
	return (time.Duration(sec*1000+0.5) * time.Millisecond)
}

// Export writes f to path with each line's timing replaced by rangeOf. Lines
// rangeOf does not know keep their parsed timing. When format matches the
// source format the file keeps its format specific metadata.
func Export(
	f File,
	lines []Line,
	rangeOf func(key string) (timeline.Range, bool),
	path string,
	format Format,
) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	for _, l := range lines {
		r, ok := rangeOf(l.Key)
		if !ok {
			continue
		}
		if err := f.SetTiming(l.Index, FromSeconds(r.Start), FromSeconds(r.End)); err != nil {
			return fmt.Errorf("failed to set timing of line %d: %w", l.Index, err)
		}
	}

	if format == f.Format() {
		return f.Write(path)
	}
	writer, err := NewWriter(format)
	if err != nil {
		return err
	}
	if err := writer.Write(f.Subtitle(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
