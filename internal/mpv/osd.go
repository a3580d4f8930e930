package mpv

import (
	"fmt"
	"strings"

	"github.com/mgpai22/subdeck/internal/timeline"
)

// overlay id used for the subtitle line
const lineOverlayID = 1

// ASS colors are &HAABBGGRR.
const (
	assWhite  = "&H00FFFFFF"
	assAmber  = "&H0000BFFF"
	assShadow = "&H80000000"
)

// LineOverlay is what the OSD shows for the active line.
type LineOverlay struct {
	Text     string
	Offset   timeline.Offset
	Adjusted bool
	// Pinned is set when a view other than the clock-derived line is active.
	Pinned string
}

// FormatLineOverlay renders o as ASS events for mpv's osd-overlay, bottom
// centered, with an offset badge in the top-right corner when the line is
// adjusted.
func FormatLineOverlay(o LineOverlay) string {
	if o.Text == "" && !o.Adjusted && o.Pinned == "" {
		return ""
	}
	var b strings.Builder
	if o.Text != "" {
		fmt.Fprintf(&b,
			"{\\an2\\pos(960,1040)\\bord3\\shad1\\3c%s\\fs54\\1c%s}%s\n",
			assShadow, assWhite, escapeASS(o.Text))
	}
	var badge []string
	if o.Adjusted {
		badge = append(badge, fmt.Sprintf("%s / %s",
			formatOffset(o.Offset.Start), formatOffset(o.Offset.End)))
	}
	if o.Pinned != "" {
		badge = append(badge, "["+escapeASS(o.Pinned)+"]")
	}
	if len(badge) > 0 {
		fmt.Fprintf(&b,
			"{\\an9\\pos(1880,40)\\bord2\\shad0\\3c%s\\fs28\\1c%s}%s\n",
			assShadow, assAmber, strings.Join(badge, " "))
	}
	return b.String()
}

// formatOffset renders seconds as a signed badge like +0.20s.
func formatOffset(sec float64) string {
	if sec >= 0 {
		return fmt.Sprintf("+%.2fs", sec)
	}
	return fmt.Sprintf("-%.2fs", -sec)
}

var assEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"{", "\\{",
	"}", "\\}",
	"\r\n", "\\N",
	"\n", "\\N",
)

func escapeASS(s string) string {
	return assEscaper.Replace(s)
}

// SetOSDOverlay sends an OSD overlay command to mpv. Empty text removes it.
func (p *Player) SetOSDOverlay(id int, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == "" {
		return p.m.Command([]string{"osd-overlay", fmt.Sprintf("%d", id), "none", ""})
	}
	return p.m.Command([]string{"osd-overlay", fmt.Sprintf("%d", id), "ass-events", text})
}

// ShowLine draws o on the subtitle overlay.
func (p *Player) ShowLine(o LineOverlay) error {
	return p.SetOSDOverlay(lineOverlayID, FormatLineOverlay(o))
}
