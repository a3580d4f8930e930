package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// cueWriter writes plain SRT or VTT files from a cue list.
type cueWriter struct {
	format Format
}

// assWriter writes a minimal ASS script with one Default style.
type assWriter struct {
	Title    string
	FontName string
	FontSize int
}

// NewWriter returns a writer for format that only sees the plain cue list.
// Use File.Write to keep format specific metadata.
func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT, FormatVTT:
		return &cueWriter{format: format}, nil
	case FormatASS:
		return &assWriter{Title: "Subdeck Export", FontName: "Arial", FontSize: 20}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func (w *cueWriter) Write(sub *Subtitle, path string) error {
	f := &cueFile{format: w.format, cues: make([]cue, len(sub.Entries))}
	for i, e := range sub.Entries {
		f.cues[i] = cue{entry: e}
		if w.format == FormatVTT {
			f.cues[i].id = strconv.Itoa(i + 1)
		}
	}
	return f.Write(path)
}

const assHeader = `[Script Info]
Title: %s
ScriptType: v4.00+
Collisions: Normal
PlayDepth: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

func (w *assWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, assHeader, w.Title, w.FontName, w.FontSize)
	for _, e := range sub.Entries {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatTimestamp(e.StartTime, FormatASS),
			formatTimestamp(e.EndTime, FormatASS),
			strings.ReplaceAll(e.Text, "\n", `\N`))
	}
	return writeFile(path, sb.String())
}

// formatTimestamp renders d the way format spells cue times: SRT uses a
// comma before milliseconds, VTT a dot, ASS centiseconds with a one digit
// hour.
func formatTimestamp(d time.Duration, format Format) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	m := d % time.Hour / time.Minute
	s := d % time.Minute / time.Second
	ms := d % time.Second / time.Millisecond

	switch format {
	case FormatASS:
		return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, ms/10)
	case FormatVTT:
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	default:
		return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// FormatFromPath picks a format by file extension, defaulting to SRT.
func FormatFromPath(path string) Format {
	if f, ok := ParseFormat(strings.ToLower(filepath.Ext(path))); ok {
		return f
	}
	return FormatSRT
}

// Ext is the file extension for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}
