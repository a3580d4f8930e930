package mpv

import (
	"strings"
	"testing"

	"github.com/mgpai22/subdeck/internal/timeline"
)

func TestFormatLineOverlay(t *testing.T) {
	tests := []struct {
		name    string
		in      LineOverlay
		want    []string
		notWant []string
	}{
		{
			name: "empty",
			in:   LineOverlay{},
		},
		{
			name:    "plain line",
			in:      LineOverlay{Text: "Hello\nworld"},
			want:    []string{`Hello\Nworld`, `\an2`},
			notWant: []string{`\an9`},
		},
		{
			name: "adjusted line",
			in: LineOverlay{
				Text:     "Hi",
				Offset:   timeline.Offset{Start: -0.2, End: 1.25},
				Adjusted: true,
			},
			want: []string{"-0.20s / +1.25s", `\an9`},
		},
		{
			name: "pinned group",
			in:   LineOverlay{Text: "Hi", Pinned: "group grp-1"},
			want: []string{"[group grp-1]"},
		},
		{
			name: "braces escaped",
			in:   LineOverlay{Text: "{\\b1}bold"},
			want: []string{`\{\\b1\}bold`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatLineOverlay(tt.in)
			if len(tt.want) == 0 && got != "" {
				t.Fatalf("expected empty overlay, got %q", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("expected %q in %q", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("did not expect %q in %q", w, got)
				}
			}
		})
	}
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "+0.00s"},
		{0.2, "+0.20s"},
		{-1.5, "-1.50s"},
	}
	for _, tt := range tests {
		if got := formatOffset(tt.in); got != tt.want {
			t.Errorf("formatOffset(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
