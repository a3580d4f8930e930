// Package bridge projects subtitle session state into a snapshot store that
// outside consumers read over HTTP.
package bridge

import (
	"sync"

	"github.com/mgpai22/subdeck/internal/timeline"
)

// Range is a JSON friendly timeline.Range.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// View is a JSON friendly timeline.View.
type View struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Group is a JSON friendly timeline.Group.
type Group struct {
	ID      string   `json:"id"`
	LineIDs []string `json:"lineIds"`
	Range   Range    `json:"range"`
}

// Snapshot is the projected session state.
type Snapshot struct {
	Version         uint64  `json:"version"`
	Time            float64 `json:"time"`
	Duration        float64 `json:"duration,omitempty"`
	ActiveLineID    string  `json:"activeLineId"`
	ActiveLineText  string  `json:"activeLineText,omitempty"`
	ActiveView      *View   `json:"activeView,omitempty"`
	ActiveViewRange *Range  `json:"activeViewRange,omitempty"`
	Offset          Range   `json:"offset"`
	Adjusted        bool    `json:"adjusted"`
	Groups          []Group `json:"groups"`
}

// Store holds the latest snapshot.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[chan struct{}]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		snap: Snapshot{Groups: []Group{}},
		subs: make(map[chan struct{}]struct{}),
	}
}

// Get returns the latest snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Set replaces the snapshot and bumps its version.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	snap.Version = s.snap.Version + 1
	s.snap = snap
	subs := make([]chan struct{}, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Changed returns a channel that receives after every Set until cancel is
// called. Pending notifications coalesce.
func (s *Store) Changed() (ch <-chan struct{}, cancel func()) {
	c := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[c] = struct{}{}
	s.mu.Unlock()
	return c, func() {
		s.mu.Lock()
		delete(s.subs, c)
		s.mu.Unlock()
	}
}

// Source describes what Attach and Project read.
type Source[T any] struct {
	Session   *timeline.Session[T]
	// Text returns the display text of a line. May be nil.
	Text      func(T) string
	// Threshold is the offset above which a line counts as adjusted;
	// zero means timeline.DefaultAdjustThreshold.
	Threshold float64
	// Duration reports the media length in seconds. May be nil.
	Duration  func() float64
}

// Attach keeps store in sync with src.Session until the returned func is
// called.
func Attach[T any](store *Store, src Source[T]) (detach func()) {
	store.Set(Project(src, src.Session.State()))
	return src.Session.Subscribe(func(next, _ *timeline.State) {
		store.Set(Project(src, next))
	})
}

// Project converts one session state into a Snapshot.
func Project[T any](src Source[T], st *timeline.State) Snapshot {
	session := src.Session
	threshold := src.Threshold
	if threshold <= 0 {
		threshold = timeline.DefaultAdjustThreshold
	}
	snap := Snapshot{
		Time:         st.Time,
		ActiveLineID: st.ActiveLineID,
		Groups:       make([]Group, 0, len(st.Groups)),
	}
	if src.Duration != nil {
		snap.Duration = src.Duration()
	}
	if st.ActiveLineID != "" {
		if line, ok := session.Line(st.ActiveLineID); ok && src.Text != nil {
			snap.ActiveLineText = src.Text(line)
		}
		off := session.TimeDiff(timeline.ByID(st.ActiveLineID))
		snap.Offset = Range{Start: off.Start, End: off.End}
		snap.Adjusted = session.IsLineAdjusted(st.ActiveLineID, threshold)
	}
	if st.ActiveView != nil {
		snap.ActiveView = &View{Kind: st.ActiveView.Kind.String(), ID: st.ActiveView.ID}
	}
	if st.ActiveViewRange != nil {
		snap.ActiveViewRange = &Range{Start: st.ActiveViewRange.Start, End: st.ActiveViewRange.End}
	}
	for _, g := range st.Groups {
		r := session.MapSeekRange(timeline.ForView(timeline.GroupView(g.ID)))
		snap.Groups = append(snap.Groups, Group{
			ID:      g.ID,
			LineIDs: append([]string(nil), g.LineIDs...),
			Range:   Range{Start: r.Start, End: r.End},
		})
	}
	return snap
}
