package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	assTagRegex   = regexp.MustCompile(`\{[^}]*\}`)
	assClockRegex = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})\.(\d{1,3})$`)
)

// assEvent is one Dialogue line of the [Events] section.
type assEvent struct {
	// row is the event's position in assFile.lines
	row    int
	fields []string
}

// assFile keeps every line of an ASS/SSA script verbatim. Retiming rewrites
// only the Start and End fields of the affected Dialogue lines.
type assFile struct {
	src     source
	lines   []string
	columns []string

	startCol, endCol, textCol int
	events                    []assEvent
}

func parseASS(r io.Reader, src source) (*assFile, error) {
	f := &assFile{src: src, startCol: -1, endCol: -1, textCol: -1}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	section := ""
	for scanner.Scan() {
		line := scanner.Text()
		if len(f.lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		f.lines = append(f.lines, line)
		lineNum := len(f.lines)
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.ToLower(trimmed[1 : len(trimmed)-1])
			continue
		}
		if section != "events" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "Format:"):
			if err := f.setColumns(strings.TrimPrefix(trimmed, "Format:")); err != nil {
				return nil, fmt.Errorf("invalid Format at line %d: %w", lineNum, err)
			}
		case strings.HasPrefix(trimmed, "Dialogue:"):
			if f.columns == nil {
				return nil, fmt.Errorf("Dialogue before Format at line %d", lineNum)
			}
			content := strings.TrimSpace(strings.TrimPrefix(trimmed, "Dialogue:"))
			fields := strings.SplitN(content, ",", len(f.columns))
			if len(fields) < len(f.columns) {
				return nil, fmt.Errorf(
					"failed to parse Dialogue at line %d: expected %d fields, got %d",
					lineNum, len(f.columns), len(fields),
				)
			}
			for _, col := range []int{f.startCol, f.endCol} {
				if _, err := parseASSClock(fields[col]); err != nil {
					return nil, fmt.Errorf("invalid timestamp at line %d: %w", lineNum, err)
				}
			}
			f.events = append(f.events, assEvent{row: lineNum - 1, fields: fields})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}
	if f.columns == nil {
		return nil, fmt.Errorf("ASS file missing Format line in [Events] section")
	}
	return f, nil
}

func (f *assFile) setColumns(spec string) error {
	cols := strings.Split(spec, ",")
	f.startCol, f.endCol, f.textCol = -1, -1, -1
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
		switch strings.ToLower(cols[i]) {
		case "start":
			f.startCol = i
		case "end":
			f.endCol = i
		case "text":
			f.textCol = i
		}
	}
	if f.startCol < 0 || f.endCol < 0 || f.textCol < 0 {
		return fmt.Errorf("need Start, End and Text columns, got %q", strings.TrimSpace(spec))
	}
	f.columns = cols
	return nil
}

// parseASSClock reads h:mm:ss.cc. One to three fraction digits are accepted.
func parseASSClock(ts string) (time.Duration, error) {
	m := assClockRegex.FindStringSubmatch(strings.TrimSpace(ts))
	if m == nil {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	frac := m[4] + strings.Repeat("0", 3-len(m[4]))
	return parseClock(m[1], m[2], m[3], frac)
}

// plainASSText drops override tags and turns ASS line breaks into newlines.
func plainASSText(s string) string {
	s = assTagRegex.ReplaceAllString(s, "")
	return strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(s)
}

func (f *assFile) Format() Format {
	return FormatASS
}

func (f *assFile) Subtitle() *Subtitle {
	entries := make([]Entry, len(f.events))
	for i, e := range f.events {
		start, _ := parseASSClock(e.fields[f.startCol])
		end, _ := parseASSClock(e.fields[f.endCol])
		entries[i] = Entry{
			Index:     i + 1,
			StartTime: start,
			EndTime:   end,
			Text:      plainASSText(e.fields[f.textCol]),
		}
	}
	return &Subtitle{
		Entries: entries,
		Format:  FormatASS,
		Hash:    f.src.hash,
		Path:    f.src.path,
	}
}

func (f *assFile) SetTiming(index int, start, end time.Duration) error {
	if err := checkIndex(index, len(f.events)); err != nil {
		return err
	}
	e := &f.events[index]
	e.fields[f.startCol] = formatTimestamp(start, FormatASS)
	e.fields[f.endCol] = formatTimestamp(end, FormatASS)
	f.lines[e.row] = "Dialogue: " + strings.Join(e.fields, ",")
	return nil
}

func (f *assFile) Write(path string) error {
	return writeFile(path, strings.Join(f.lines, "\n")+"\n")
}
