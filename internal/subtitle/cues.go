package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// matches SRT (comma) and VTT (dot) timings; VTT may omit the hours
var cueTimingRegex = regexp.MustCompile(
	`^\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})`,
)

// block is a run of non-blank lines.
type block struct {
	line  int
	lines []string
}

func scanBlocks(r io.Reader) ([]block, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var blocks []block
	inBlock := false
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			inBlock = false
			continue
		}
		if !inBlock {
			blocks = append(blocks, block{line: lineNum})
			inBlock = true
		}
		last := &blocks[len(blocks)-1]
		last.lines = append(last.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// cue is one timed SRT or VTT block.
type cue struct {
	id string
	// settings is whatever follows the VTT timing (position, align, ...)
	settings string
	entry    Entry
}

// cueFile is a parsed SRT or VTT file. VTT header, STYLE and REGION blocks
// are kept so a same-format write reproduces them.
type cueFile struct {
	format   Format
	src      source
	preamble [][]string
	cues     []cue
}

func parseCues(r io.Reader, src source, format Format) (*cueFile, error) {
	blocks, err := scanBlocks(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s file: %w", strings.ToUpper(string(format)), err)
	}

	f := &cueFile{format: format, src: src}
	for i, b := range blocks {
		head := strings.TrimSpace(b.lines[0])
		if format == FormatVTT {
			switch {
			case i == 0 && strings.HasPrefix(head, "WEBVTT"),
				strings.HasPrefix(head, "STYLE"),
				strings.HasPrefix(head, "REGION"):
				f.preamble = append(f.preamble, b.lines)
				continue
			case strings.HasPrefix(head, "NOTE"):
				continue
			}
		}

		c, ok, err := parseCue(b, len(f.cues)+1)
		if err != nil {
			return nil, err
		}
		if ok {
			f.cues = append(f.cues, c)
		}
	}
	return f, nil
}

// parseCue reads an optional identifier line, a timing line and at least
// one line of text. Blocks without a timing or without text are skipped.
func parseCue(b block, index int) (cue, bool, error) {
	for k := 0; k < len(b.lines) && k < 2; k++ {
		m := cueTimingRegex.FindStringSubmatch(b.lines[k])
		if m == nil {
			continue
		}
		if k+1 >= len(b.lines) {
			return cue{}, false, nil
		}
		start, err := parseClock(m[1], m[2], m[3], m[4])
		if err != nil {
			return cue{}, false, fmt.Errorf("invalid start timestamp at line %d: %w", b.line+k, err)
		}
		end, err := parseClock(m[5], m[6], m[7], m[8])
		if err != nil {
			return cue{}, false, fmt.Errorf("invalid end timestamp at line %d: %w", b.line+k, err)
		}

		c := cue{
			settings: strings.TrimSpace(b.lines[k][len(m[0]):]),
			entry: Entry{
				Index:     index,
				StartTime: start,
				EndTime:   end,
				Text:      strings.Join(b.lines[k+1:], "\n"),
			},
		}
		if k == 1 {
			c.id = strings.TrimSpace(b.lines[0])
			if n, err := strconv.Atoi(c.id); err == nil {
				c.entry.Index = n
			}
		}
		return c, true, nil
	}
	return cue{}, false, nil
}

// parseClock turns h:m:s.ms fields into a duration. Empty hours mean zero.
func parseClock(hours, minutes, seconds, millis string) (time.Duration, error) {
	var h int
	if hours != "" {
		v, err := strconv.Atoi(hours)
		if err != nil {
			return 0, err
		}
		h = v
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(millis)
	if err != nil {
		return 0, err
	}
	if m > 59 || s > 59 {
		return 0, fmt.Errorf("%02d:%02d out of range", m, s)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

func (f *cueFile) Format() Format {
	return f.format
}

func (f *cueFile) Subtitle() *Subtitle {
	entries := make([]Entry, len(f.cues))
	for i, c := range f.cues {
		entries[i] = c.entry
	}
	return &Subtitle{
		Entries: entries,
		Format:  f.format,
		Hash:    f.src.hash,
		Path:    f.src.path,
	}
}

func (f *cueFile) SetTiming(index int, start, end time.Duration) error {
	if err := checkIndex(index, len(f.cues)); err != nil {
		return err
	}
	f.cues[index].entry.StartTime = start
	f.cues[index].entry.EndTime = end
	return nil
}

// Write renumbers SRT cues from 1 and keeps VTT identifiers and settings.
func (f *cueFile) Write(path string) error {
	var sb strings.Builder
	if f.format == FormatVTT {
		if len(f.preamble) == 0 {
			sb.WriteString("WEBVTT\n\n")
		}
		for _, b := range f.preamble {
			sb.WriteString(strings.Join(b, "\n"))
			sb.WriteString("\n\n")
		}
	}

	for i, c := range f.cues {
		id := c.id
		if f.format == FormatSRT {
			id = strconv.Itoa(i + 1)
		}
		if id != "" {
			sb.WriteString(id)
			sb.WriteByte('\n')
		}
		sb.WriteString(formatTimestamp(c.entry.StartTime, f.format))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimestamp(c.entry.EndTime, f.format))
		if c.settings != "" && f.format == FormatVTT {
			sb.WriteByte(' ')
			sb.WriteString(c.settings)
		}
		sb.WriteByte('\n')
		sb.WriteString(c.entry.Text)
		sb.WriteString("\n\n")
	}

	return writeFile(path, sb.String())
}
