package adjust

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/mgpai22/subdeck/internal/timeline"
)

// Source is the part of a subtitle session the recorder reads.
type Source interface {
	LineRange(id string) timeline.Range
}

// Counter receives persistence outcomes; *metrics.Metrics satisfies it.
type Counter interface {
	IncAdjustment(outcome string)
	IncPersistErrors()
}

// Recorder writes a line's effective interval after every timing edit.
type Recorder struct {
	repo      Repository
	source    Source
	path      string
	hash      string
	file      map[string]timeline.Range
	threshold float64
	log       *zap.SugaredLogger
	counter   Counter
}

// NewRecorder records edits of lines parsed from sub. Stored rows are
// compared against the timing in the file, not a previously stored baseline.
func NewRecorder(
	repo Repository,
	source Source,
	sub *subtitle.Subtitle,
	lines []subtitle.Line,
	log *zap.SugaredLogger,
) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	file := make(map[string]timeline.Range, len(lines))
	for _, l := range lines {
		file[l.Key] = timeline.Range{Start: l.Start, End: l.End}
	}
	return &Recorder{
		repo:      repo,
		source:    source,
		path:      sub.Path,
		hash:      sub.Hash,
		file:      file,
		threshold: timeline.DefaultAdjustThreshold,
		log:       log,
	}
}

// WithThreshold sets how far a line must move before it is stored.
func (r *Recorder) WithThreshold(sec float64) *Recorder {
	r.threshold = sec
	return r
}

// WithCounter reports outcomes to c.
func (r *Recorder) WithCounter(c Counter) *Recorder {
	r.counter = c
	return r
}

// Record upserts the line's effective interval when it differs from the
// file timing, and deletes the stored row otherwise. Failures are logged
// and counted, never returned.
func (r *Recorder) Record(ctx context.Context, lineID string) {
	if err := r.record(ctx, lineID); err != nil {
		r.log.Warnw("Failed to persist adjustment", "key", lineID, "error", err)
		if r.counter != nil {
			r.counter.IncPersistErrors()
		}
	}
}

func (r *Recorder) record(ctx context.Context, lineID string) error {
	orig, ok := r.file[lineID]
	if !ok {
		return fmt.Errorf("unknown line %q", lineID)
	}
	rng := r.source.LineRange(lineID)
	if math.Abs(rng.Start-orig.Start) <= r.threshold &&
		math.Abs(rng.End-orig.End) <= r.threshold {
		if err := r.repo.DeleteByKey(ctx, lineID); err != nil {
			return fmt.Errorf("failed to delete adjustment: %w", err)
		}
		r.count("cleared")
		return nil
	}

	err := r.repo.Upsert(ctx, Adjustment{
		Key:          lineID,
		SubtitlePath: r.path,
		SubtitleHash: r.hash,
		Start:        rng.Start,
		End:          rng.End,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert adjustment: %w", err)
	}
	r.log.Debugw("Saved adjustment", "key", lineID, "start", rng.Start, "end", rng.End)
	r.count("saved")
	return nil
}

// RecordView records a line view. Group offsets live only in the session.
func (r *Recorder) RecordView(ctx context.Context, v timeline.View) {
	if v.Kind != timeline.ViewLine {
		return
	}
	r.Record(ctx, v.ID)
}

func (r *Recorder) count(outcome string) {
	if r.counter != nil {
		r.counter.IncAdjustment(outcome)
	}
}

// Baselines loads the stored intervals of one subtitle file, keyed by line
// key, for use with subtitle.Lines.
func Baselines(ctx context.Context, repo Repository, hash string) (map[string]subtitle.Baseline, error) {
	rows, err := repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustments: %w", err)
	}
	out := make(map[string]subtitle.Baseline, len(rows))
	for _, a := range rows {
		out[a.Key] = subtitle.Baseline{Start: a.Start, End: a.End}
	}
	return out, nil
}
