package timeline

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestClearLineAdjustRestoresBaseline(t *testing.T) {
	s := threeLines()
	s.AdjustLineEnd("L2", 1)
	if got := s.LineRange("L2"); got.End != 5 {
		t.Fatalf("expected end 5 after adjust, got %v", got.End)
	}
	s.ClearLineAdjust("L2")
	if got := s.LineRange("L2"); got != (Range{Start: 2, End: 4}) {
		t.Errorf("expected baseline [2,4], got %+v", got)
	}
	if s.IsLineAdjusted("L2", DefaultAdjustThreshold) {
		t.Error("expected L2 unadjusted after clear")
	}
}

func TestAdjustedAccessorsDefineBaseline(t *testing.T) {
	s := newSession(
		cue{id: "a", start: 1, end: 2, adjStart: f(1.5)},
		cue{id: "b", start: 3, end: 4, adjEnd: f(4.25)},
	)
	if got := s.LineRange("a"); got != (Range{Start: 1.5, End: 2}) {
		t.Errorf("a: expected [1.5,2], got %+v", got)
	}
	if got := s.LineRange("b"); got != (Range{Start: 3, End: 4.25}) {
		t.Errorf("b: expected [3,4.25], got %+v", got)
	}
	if got := s.TimeDiff(ByID("a")); got != (Offset{}) {
		t.Errorf("expected zero offset against adjusted baseline, got %+v", got)
	}
}

func TestTimeDiffAndIsLineAdjusted(t *testing.T) {
	s := threeLines()
	s.AdjustLineStart("L1", -0.25)
	s.AdjustLineEnd("L1", 0.03)

	diff := s.TimeDiff(ByID("L1"))
	if !near(diff.Start, -0.25) || !near(diff.End, 0.03) {
		t.Errorf("expected offset {-0.25 0.03}, got %+v", diff)
	}
	if !s.IsLineAdjusted("L1", DefaultAdjustThreshold) {
		t.Error("expected L1 adjusted at default threshold")
	}
	if s.IsLineAdjusted("L1", 0.5) {
		t.Error("expected L1 unadjusted at 0.5s threshold")
	}

	s.AdjustLineEnd("L3", 0.03)
	if s.IsLineAdjusted("L3", DefaultAdjustThreshold) {
		t.Error("expected 0.03s nudge below default threshold")
	}
}

func TestUpdateLinePreservesOffset(t *testing.T) {
	s := threeLines()
	s.AdjustLineStart("L2", -0.25)
	s.AdjustLineEnd("L2", 0.5)
	before := s.TimeDiff(ByID("L2"))

	s.UpdateLine(cue{id: "L2", start: 2, end: 4, adjStart: f(3), adjEnd: f(4.5)})

	after := s.TimeDiff(ByID("L2"))
	if !near(before.Start, after.Start) || !near(before.End, after.End) {
		t.Errorf("expected offset %+v preserved, got %+v", before, after)
	}
	if got := s.LineRange("L2"); !near(got.Start, 2.75) || !near(got.End, 5) {
		t.Errorf("expected [2.75,5], got %+v", got)
	}
	line, ok := s.Line("L2")
	if !ok || line.adjStart == nil || *line.adjStart != 3 {
		t.Errorf("expected origin replaced, got %+v", line)
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	s := threeLines()
	calls := 0
	unsub := s.Subscribe(func(next, prev *State) { calls++ })
	defer unsub()

	s.AdjustLineStart("missing", 1)
	s.AdjustLineEnd("missing", 1)
	s.ClearLineAdjust("missing")
	s.UpdateLine(cue{id: "missing", start: 1, end: 2})
	s.UpdateGroup("grp-404", []string{"L1"})
	s.RemoveGroup("grp-404")
	s.AdjustGroupEnd("grp-404", 1)

	if calls != 0 {
		t.Errorf("expected no snapshots for unknown ids, got %d", calls)
	}
	if got := s.LineRange("missing"); got != (Range{}) {
		t.Errorf("expected zero range, got %+v", got)
	}
	if got := s.TimeDiff(ByID("missing")); got != (Offset{}) {
		t.Errorf("expected zero offset, got %+v", got)
	}
	if _, ok := s.Line("missing"); ok {
		t.Error("expected missing line")
	}
}

func TestMapSeekRangeResolution(t *testing.T) {
	s := newSession(
		cue{id: "L1", start: 0, end: 2},
		cue{id: "grp-1", start: 2, end: 4},
		cue{id: "L3", start: 5, end: 7},
	)
	gid := s.CreateGroup([]string{"L1", "L3"}, nil)
	if gid != "grp-1" {
		t.Fatalf("expected first group id grp-1, got %s", gid)
	}

	tests := []struct {
		name   string
		target Target
		want   Range
	}{
		{"line id", ByID("L3"), Range{Start: 5, End: 7}},
		{"line id shadows group id", ByID("grp-1"), Range{Start: 2, End: 4}},
		{"explicit group view", ForView(GroupView("grp-1")), Range{Start: 0, End: 7}},
		{"time in gap", AtTime(4.5), Range{Start: 2, End: 4}},
		{"line payload", s.TargetOf(cue{id: "L1"}), Range{Start: 0, End: 2}},
		{"unknown id", ByID("nope"), Range{}},
		{"unknown group view", ForView(GroupView("grp-9")), Range{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.MapSeekRange(tt.target); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	if v, ok := s.Resolve(ByID("grp-1")); !ok || v != LineView("grp-1") {
		t.Errorf("expected line view, got %+v ok=%v", v, ok)
	}
	if _, ok := s.Resolve(Target{}); ok {
		t.Error("expected zero Target to be unresolvable")
	}
}

func TestGroupRangeAndDelta(t *testing.T) {
	s := threeLines()
	gid := s.CreateGroup([]string{"L2", "L1", "L2"}, map[string]any{"label": "merged"})

	groups := s.Groups()
	if len(groups) != 1 || len(groups[0].LineIDs) != 2 {
		t.Fatalf("expected one group with 2 members, got %+v", groups)
	}
	if groups[0].Meta["label"] != "merged" {
		t.Errorf("expected meta kept, got %+v", groups[0].Meta)
	}

	view := ForView(GroupView(gid))
	if got := s.MapSeekRange(view); got != (Range{Start: 0, End: 4}) {
		t.Errorf("expected [0,4], got %+v", got)
	}

	s.AdjustGroupStart(gid, 0.5)
	s.AdjustGroupEnd(gid, 1)
	s.AdjustGroupEnd(gid, 0.25)
	if got := s.MapSeekRange(view); got != (Range{Start: 0.5, End: 5.25}) {
		t.Errorf("expected [0.5,5.25], got %+v", got)
	}
	if got := s.TimeDiff(view); got != (Offset{Start: 0.5, End: 1.25}) {
		t.Errorf("expected group offset {0.5 1.25}, got %+v", got)
	}
	if got := s.LineRange("L2"); got != (Range{Start: 2, End: 4}) {
		t.Errorf("group delta leaked into member: %+v", got)
	}

	// member edits flow into the group range
	s.AdjustLineEnd("L2", 1)
	if got := s.MapSeekRange(view); got != (Range{Start: 0.5, End: 6.25}) {
		t.Errorf("expected [0.5,6.25], got %+v", got)
	}

	s.ClearGroupAdjust(gid)
	if got := s.MapSeekRange(view); got != (Range{Start: 0, End: 5}) {
		t.Errorf("expected [0,5] after clearing delta, got %+v", got)
	}
}

func TestGroupWidensWhenMembersAreAdded(t *testing.T) {
	s := newSession(
		cue{id: "a", start: 4, end: 5},
		cue{id: "b", start: 1, end: 2},
		cue{id: "c", start: 6, end: 9},
		cue{id: "d", start: 4.5, end: 4.75},
	)
	gid := s.CreateGroup([]string{"a"}, nil)
	prev := s.MapSeekRange(ByID(gid))
	members := []string{"a"}
	for _, add := range []string{"d", "b", "c", "missing"} {
		members = append(members, add)
		s.UpdateGroup(gid, members)
		got := s.MapSeekRange(ByID(gid))
		if got.Start > prev.Start || got.End < prev.End {
			t.Fatalf("adding %s narrowed %+v to %+v", add, prev, got)
		}
		prev = got
	}
	if prev != (Range{Start: 1, End: 9}) {
		t.Errorf("expected [1,9], got %+v", prev)
	}
}

func TestGroupsOfLineAndRemove(t *testing.T) {
	s := threeLines()
	g1 := s.CreateGroup([]string{"L1", "L2"}, nil)
	g2 := s.CreateGroup([]string{"L2", "L3"}, nil)

	if got := s.GroupsOfLine("L2"); len(got) != 2 || got[0] != g1 || got[1] != g2 {
		t.Errorf("expected [%s %s], got %v", g1, g2, got)
	}

	s.AdjustGroupEnd(g1, 2)
	view := GroupView(g1)
	s.SetActiveView(&view)
	if v := s.ActiveView(); v == nil || *v != view {
		t.Fatalf("expected active view %+v, got %+v", view, v)
	}

	s.RemoveGroup(g1)
	if s.ActiveView() != nil {
		t.Error("expected active view cleared with its group")
	}
	if got := s.GroupsOfLine("L2"); len(got) != 1 || got[0] != g2 {
		t.Errorf("expected [%s], got %v", g2, got)
	}
	if got := s.GroupsOfLine("L1"); len(got) != 0 {
		t.Errorf("expected no groups for L1, got %v", got)
	}
	if got := s.State().Groups; len(got) != 1 || got[0].ID != g2 {
		t.Errorf("expected state groups [%s], got %+v", g2, got)
	}

	g3 := s.CreateGroup([]string{"L1"}, nil)
	if g3 == g1 {
		t.Errorf("expected fresh id, got reused %s", g3)
	}
	if got := s.TimeDiff(ByID(g3)); got != (Offset{}) {
		t.Errorf("expected new group without delta, got %+v", got)
	}
}

func TestTickDerivesActiveLineAndRange(t *testing.T) {
	s := threeLines()
	s.Tick(1)
	st := s.State()
	if st.Time != 1 || st.ActiveLineID != "L1" {
		t.Fatalf("expected time 1 on L1, got %+v", st)
	}
	if st.ActiveViewRange == nil || *st.ActiveViewRange != (Range{Start: 0, End: 2}) {
		t.Fatalf("expected range [0,2], got %+v", st.ActiveViewRange)
	}

	s.Tick(1.5)
	if next := s.State(); next == st {
		t.Error("expected a new snapshot per tick")
	} else if next.ActiveViewRange != st.ActiveViewRange {
		t.Error("expected unchanged range to keep its pointer")
	}

	gid := s.CreateGroup([]string{"L2", "L3"}, nil)
	view := GroupView(gid)
	s.SetActiveView(&view)
	s.Tick(0.5)
	st = s.State()
	if st.ActiveLineID != "L1" {
		t.Errorf("expected clock to keep deriving L1, got %s", st.ActiveLineID)
	}
	if st.ActiveViewRange == nil || *st.ActiveViewRange != (Range{Start: 2, End: 7}) {
		t.Errorf("expected pinned group range [2,7], got %+v", st.ActiveViewRange)
	}
	if v, ok := st.CurrentView(); !ok || v != view {
		t.Errorf("expected current view %+v, got %+v", view, v)
	}

	s.SetActiveView(nil)
	if got := s.State().ActiveViewRange; got == nil || *got != (Range{Start: 0, End: 2}) {
		t.Errorf("expected range to follow L1 again, got %+v", got)
	}
}

func TestWatchFiresOnlyOnChange(t *testing.T) {
	s := threeLines()
	var seen []string
	unsub := Watch(s, func(st *State) string { return st.ActiveLineID }, func(next, prev string) {
		seen = append(seen, prev+">"+next)
	})

	for _, at := range []float64{0.5, 1, 1.5, 2.5, 3, 4.5, 6} {
		s.Tick(at)
	}
	want := []string{">L1", "L1>L2", "L2>L3"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], seen[i])
		}
	}

	unsub()
	s.Tick(0)
	if len(seen) != len(want) {
		t.Errorf("listener called after unsubscribe: %v", seen)
	}
}

func TestListenerMayCallBackIntoSession(t *testing.T) {
	s := threeLines()
	var ranges []Range
	unsub := Watch(s, func(st *State) string { return st.ActiveLineID }, func(next, _ string) {
		ranges = append(ranges, s.LineRange(next))
	})
	defer unsub()

	s.Tick(3)
	if len(ranges) != 1 || ranges[0] != (Range{Start: 2, End: 4}) {
		t.Errorf("expected [2,4], got %+v", ranges)
	}
}

type manualClock struct {
	now float64
	fns map[int]func(float64)
	seq int
}

func (c *manualClock) OnTimeUpdate(fn func(float64)) func() {
	if c.fns == nil {
		c.fns = make(map[int]func(float64))
	}
	c.seq++
	id := c.seq
	c.fns[id] = fn
	return func() { delete(c.fns, id) }
}

func (c *manualClock) Now() float64 { return c.now }

func (c *manualClock) advance(to float64) {
	c.now = to
	for _, fn := range c.fns {
		fn(to)
	}
}

func TestAttachClock(t *testing.T) {
	s := threeLines()
	clock := &manualClock{now: 0.75}
	detach := s.AttachClock(clock)

	if got := s.State().Time; got != 0.75 {
		t.Errorf("expected time seeded from clock, got %v", got)
	}
	clock.advance(5.5)
	if got := s.State().ActiveLineID; got != "L3" {
		t.Errorf("expected L3, got %s", got)
	}

	detach()
	clock.advance(1)
	if got := s.State().ActiveLineID; got != "L3" {
		t.Errorf("expected detached clock to be ignored, got %s", got)
	}
}

func TestSetLinesKeepsGroups(t *testing.T) {
	s := threeLines()
	gid := s.CreateGroup([]string{"L1", "L3"}, nil)
	s.AdjustLineEnd("L1", 1)

	s.SetLines([]cue{
		{id: "L1", start: 10, end: 11},
		{id: "L3", start: 12, end: 13},
	})
	if s.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", s.Len())
	}
	if got := s.LineIDs(); got[0] != "L1" || got[1] != "L3" {
		t.Errorf("unexpected ids %v", got)
	}
	if s.IsLineAdjusted("L1", DefaultAdjustThreshold) {
		t.Error("expected rebuilt lines to start unadjusted")
	}
	if got := s.MapSeekRange(ByID(gid)); got != (Range{Start: 10, End: 13}) {
		t.Errorf("expected group over new lines [10,13], got %+v", got)
	}
}
