package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mgpai22/subdeck/internal/adjust"
	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/mgpai22/subdeck/internal/timeline"
	"github.com/spf13/cobra"
)

// workspace is one subtitle file loaded into a timeline session with its
// stored adjustments applied.
type workspace struct {
	file    subtitle.File
	sub     *subtitle.Subtitle
	lines   []subtitle.Line
	session *timeline.Session[subtitle.Line]
}

func loadWorkspace(
	ctx context.Context,
	path string,
	repo adjust.Repository,
	bucketSeconds float64,
) (*workspace, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("subtitle file not found: %s", path)
	}
	f, err := subtitle.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	sub := f.Subtitle()

	baselines, err := adjust.Baselines(ctx, repo, sub.Hash)
	if err != nil {
		return nil, err
	}
	lines := subtitle.Lines(sub, baselines)

	session := timeline.New(timeline.Options[subtitle.Line]{
		Accessors:     subtitle.Accessors(),
		Lines:         lines,
		BucketSeconds: bucketSeconds,
	})
	return &workspace{file: f, sub: sub, lines: lines, session: session}, nil
}

// rangeOf reports the effective interval of a line key.
func (w *workspace) rangeOf(key string) (timeline.Range, bool) {
	if _, ok := w.session.Line(key); !ok {
		return timeline.Range{}, false
	}
	return w.session.LineRange(key), true
}

// lineRef turns a 1-based line number (position in the file) into a line
// key. Anything else is returned unchanged so keys and group ids pass through.
func (w *workspace) lineRef(ref string) string {
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 || n > len(w.lines) {
		return ref
	}
	return subtitle.LineKey(w.sub.Hash, n-1)
}

// save writes the retimed file and returns the path written. An empty path
// writes next to the source so the source keeps its hash and stored
// adjustments.
func (w *workspace) save(path string, format subtitle.Format) (string, error) {
	if format == "" && path == "" {
		format = w.file.Format()
	}
	if path == "" {
		path = retimedPath(w.sub.Path, format)
	}
	if err := subtitle.Export(w.file, w.lines, w.rangeOf, path, format); err != nil {
		return "", err
	}
	return path, nil
}

// retimedPath is the default output next to src: movie.srt becomes
// movie.retimed.srt, or movie.retimed.vtt when converting.
func retimedPath(src string, format subtitle.Format) string {
	base := strings.TrimSuffix(src, filepath.Ext(src))
	return base + ".retimed" + format.Ext()
}

// openRepository opens the sqlite store named by --db or the config.
func openRepository(cmd *cobra.Command) (*adjust.SQLite, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		p, err := cfg.DatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		path = p
	}
	repo, err := adjust.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	logger.Debugw("Opened adjustment store", "path", path)
	return repo, nil
}
