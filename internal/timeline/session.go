// Package timeline answers "which subtitle line is active now" for a moving
// playback clock while lines are edited live and merged into virtual groups.
package timeline

import (
	"math"
	"sync"
)

// Session owns the line records, the bucket index, the group registry and
// the published State. All methods are safe for concurrent use; listeners run
// after the session lock is released.
type Session[T any] struct {
	acc Accessors[T]

	mu      sync.Mutex
	idx     *index
	origins []T
	groups  *registry
	state   *State

	subs    []*subscriber
	nextSub int
}

type subscriber struct {
	id    int
	check func(next *State) func()
}

// New builds a session from opts.Lines.
func New[T any](opts Options[T]) *Session[T] {
	s := &Session[T]{
		acc:    opts.Accessors,
		idx:    newIndex(opts.BucketSeconds),
		groups: newRegistry(),
		state:  &State{},
	}
	s.SetLines(opts.Lines)
	return s
}

// SetLines replaces every line and rebuilds the index. Groups are kept;
// members that no longer exist are skipped when ranges are computed.
func (s *Session[T]) SetLines(lines []T) {
	s.commit(func(next *State) bool {
		recs := make([]*record, 0, len(lines))
		origins := make([]T, 0, len(lines))
		for _, line := range lines {
			start, end := s.acc.baseline(line)
			recs = append(recs, &record{
				id:        s.acc.ID(line),
				baseStart: start,
				baseEnd:   end,
				t1:        start,
				t2:        end,
			})
			origins = append(origins, line)
		}
		s.idx.reset(recs)
		s.origins = origins
		next.ActiveLineID = ""
		next.Groups = s.groups.list()
		return true
	})
}

// Len returns the number of lines.
func (s *Session[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idx.records)
}

// LineIDs returns every line id in original order.
func (s *Session[T]) LineIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.idx.records))
	for i, r := range s.idx.records {
		ids[i] = r.id
	}
	return ids
}

// LineAt returns the line current at seconds. It reports false only when the
// session has no lines.
func (s *Session[T]) LineAt(seconds float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.idx.lookup(seconds)
	if r == nil {
		return "", false
	}
	return r.id, true
}

// Line returns the origin object of a line.
func (s *Session[T]) Line(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.idx.get(id)
	if r == nil {
		var zero T
		return zero, false
	}
	return s.origins[r.index], true
}

// LineRange returns the effective interval of a line, or the zero range.
func (s *Session[T]) LineRange(id string) Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, _ := s.lineRangeLocked(id)
	return r
}

// CoveredRange returns a line's effective interval extended to the next
// line's start.
func (s *Session[T]) CoveredRange(id string) Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.idx.get(id)
	if r == nil {
		return Range{}
	}
	lo, hi := s.idx.covered(r)
	return Range{Start: lo, End: hi}
}

func (s *Session[T]) lineRangeLocked(id string) (Range, bool) {
	r := s.idx.get(id)
	if r == nil {
		return Range{}, false
	}
	return Range{Start: r.t1, End: r.t2}, true
}

// TargetOf targets the line whose origin is line.
func (s *Session[T]) TargetOf(line T) Target {
	return ForView(LineView(s.acc.ID(line)))
}

// Resolve turns a target into a canonical view: explicit view first, then a
// known line id, then a known group id, then a time lookup.
func (s *Session[T]) Resolve(t Target) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(t)
}

func (s *Session[T]) resolveLocked(t Target) (View, bool) {
	switch t.kind {
	case targetView:
		return t.view, true
	case targetID:
		if s.idx.get(t.id) != nil {
			return LineView(t.id), true
		}
		if s.groups.has(t.id) {
			return GroupView(t.id), true
		}
	case targetTime:
		if r := s.idx.lookup(t.time); r != nil {
			return LineView(r.id), true
		}
	}
	return View{}, false
}

// MapSeekRange returns the playback interval of any target; unresolvable
// targets map to the zero range.
func (s *Session[T]) MapSeekRange(t Target) Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.resolveLocked(t)
	if !ok {
		return Range{}
	}
	r, _ := s.viewRangeLocked(v)
	return r
}

func (s *Session[T]) viewRangeLocked(v View) (Range, bool) {
	if v.Kind == ViewGroup {
		return s.groups.rangeOf(v.ID, s.lineRangeLocked)
	}
	return s.lineRangeLocked(v.ID)
}

// SetActiveView pins range queries to v; nil hands control back to the
// clock-derived active line.
func (s *Session[T]) SetActiveView(v *View) {
	s.commit(func(next *State) bool {
		if v == nil {
			next.ActiveView = nil
			return true
		}
		pinned := *v
		next.ActiveView = &pinned
		return true
	})
}

// ActiveView returns the pinned view, or nil.
func (s *Session[T]) ActiveView() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveView
}

// CreateGroup registers a virtual group and returns its id.
func (s *Session[T]) CreateGroup(lineIDs []string, meta map[string]any) string {
	var id string
	s.commit(func(next *State) bool {
		id = s.groups.create(lineIDs, meta)
		next.Groups = s.groups.list()
		return true
	})
	return id
}

// UpdateGroup replaces the members of a group.
func (s *Session[T]) UpdateGroup(groupID string, lineIDs []string) {
	s.commit(func(next *State) bool {
		if !s.groups.update(groupID, lineIDs) {
			return false
		}
		next.Groups = s.groups.list()
		return true
	})
}

// RemoveGroup drops a group, its delta, and the active view if it was pinned
// to that group.
func (s *Session[T]) RemoveGroup(groupID string) {
	s.commit(func(next *State) bool {
		if !s.groups.remove(groupID) {
			return false
		}
		if v := next.ActiveView; v != nil && v.Kind == ViewGroup && v.ID == groupID {
			next.ActiveView = nil
		}
		next.Groups = s.groups.list()
		return true
	})
}

// Groups lists all groups in creation order.
func (s *Session[T]) Groups() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups.list()
}

// GroupsOfLine returns the ids of the groups containing lineID.
func (s *Session[T]) GroupsOfLine(lineID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups.of(lineID)
}

// AdjustLineStart moves a line's effective start by delta seconds.
func (s *Session[T]) AdjustLineStart(id string, delta float64) {
	s.editLine(id, func(r *record) { r.t1 += delta })
}

// AdjustLineEnd moves a line's effective end by delta seconds.
func (s *Session[T]) AdjustLineEnd(id string, delta float64) {
	s.editLine(id, func(r *record) { r.t2 += delta })
}

// ClearLineAdjust restores a line's effective interval to its baseline.
func (s *Session[T]) ClearLineAdjust(id string) {
	s.editLine(id, func(r *record) {
		r.t1, r.t2 = r.baseStart, r.baseEnd
	})
}

// BumpLine makes a line win lookups against older overlapping lines without
// changing its timing.
func (s *Session[T]) BumpLine(id string) {
	s.editLine(id, func(*record) {})
}

func (s *Session[T]) editLine(id string, mutate func(r *record)) {
	s.commit(func(*State) bool {
		r := s.idx.get(id)
		if r == nil {
			return false
		}
		s.idx.edit(r, mutate)
		return true
	})
}

// AdjustGroupStart shifts a group's start without touching its members.
func (s *Session[T]) AdjustGroupStart(groupID string, delta float64) {
	s.commit(func(*State) bool { return s.groups.shift(groupID, delta, 0) })
}

// AdjustGroupEnd shifts a group's end without touching its members.
func (s *Session[T]) AdjustGroupEnd(groupID string, delta float64) {
	s.commit(func(*State) bool { return s.groups.shift(groupID, 0, delta) })
}

// ClearGroupAdjust drops a group's accumulated delta.
func (s *Session[T]) ClearGroupAdjust(groupID string) {
	s.commit(func(*State) bool { return s.groups.clearDelta(groupID) })
}

// TimeDiff returns the offset from baseline: per line for lines, the group
// delta for groups.
func (s *Session[T]) TimeDiff(t Target) Offset {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.resolveLocked(t)
	if !ok {
		return Offset{}
	}
	if v.Kind == ViewGroup {
		return s.groups.delta[v.ID]
	}
	r := s.idx.get(v.ID)
	if r == nil {
		return Offset{}
	}
	return r.offset()
}

// IsLineAdjusted reports whether either edge of a line moved by more than
// threshold seconds from its baseline.
func (s *Session[T]) IsLineAdjusted(id string, threshold float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.idx.get(id)
	if r == nil {
		return false
	}
	off := r.offset()
	return math.Abs(off.Start) > threshold || math.Abs(off.End) > threshold
}

// UpdateLine swaps in a new origin for an existing id. The baseline is
// recomputed and the current offset re-applied on top of it, so live edits
// survive data refreshes.
func (s *Session[T]) UpdateLine(line T) {
	id := s.acc.ID(line)
	start, end := s.acc.baseline(line)
	s.commit(func(*State) bool {
		r := s.idx.get(id)
		if r == nil {
			return false
		}
		s.origins[r.index] = line
		s.idx.edit(r, func(r *record) {
			off := r.offset()
			r.baseStart, r.baseEnd = start, end
			r.t1, r.t2 = start+off.Start, end+off.End
		})
		return true
	})
}

// Tick moves the session clock and re-derives the active line.
func (s *Session[T]) Tick(seconds float64) {
	s.commit(func(next *State) bool {
		next.Time = seconds
		next.ActiveLineID = ""
		if r := s.idx.lookup(seconds); r != nil {
			next.ActiveLineID = r.id
		}
		return true
	})
}

// AttachClock drives the session from clock until the returned func is
// called.
func (s *Session[T]) AttachClock(clock Clock) (detach func()) {
	off := clock.OnTimeUpdate(s.Tick)
	now := clock.Now()
	s.commit(func(next *State) bool {
		next.Time = now
		return true
	})
	return off
}

// State returns the current snapshot. Callers must not modify it.
func (s *Session[T]) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe calls fn with every new snapshot.
func (s *Session[T]) Subscribe(fn func(next, prev *State)) (unsubscribe func()) {
	return Watch(s, func(st *State) *State { return st }, fn)
}

// Watch calls listener whenever selector's result changes between snapshots.
func Watch[T any, S comparable](s *Session[T], selector func(*State) S, listener func(next, prev S)) (unsubscribe func()) {
	s.mu.Lock()
	last := selector(s.state)
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, &subscriber{
		id: id,
		check: func(st *State) func() {
			v := selector(st)
			if v == last {
				return nil
			}
			prev := last
			last = v
			return func() { listener(v, prev) }
		},
	})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// commit runs fn on a copy of the current state; when fn reports a change the
// copy is published and subscribers are notified outside the lock.
func (s *Session[T]) commit(fn func(next *State) bool) {
	s.mu.Lock()
	next := *s.state
	if !fn(&next) {
		s.mu.Unlock()
		return
	}
	calls := s.publishLocked(&next)
	s.mu.Unlock()
	for _, call := range calls {
		call()
	}
}

func (s *Session[T]) publishLocked(next *State) []func() {
	next.ActiveViewRange = nil
	var derived Range
	var ok bool
	if next.ActiveView != nil {
		derived, ok = s.viewRangeLocked(*next.ActiveView)
	} else if next.ActiveLineID != "" {
		derived, ok = s.lineRangeLocked(next.ActiveLineID)
	}
	if ok {
		if prev := s.state.ActiveViewRange; prev != nil && *prev == derived {
			next.ActiveViewRange = prev
		} else {
			next.ActiveViewRange = &derived
		}
	}
	s.state = next

	var calls []func()
	for _, sub := range s.subs {
		if call := sub.check(next); call != nil {
			calls = append(calls, call)
		}
	}
	return calls
}
