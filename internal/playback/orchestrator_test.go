package playback

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/subdeck/internal/timeline"
)

type line struct {
	id         string
	start, end float64
}

func newTimeline(lines ...line) *timeline.Session[line] {
	return timeline.New(timeline.Options[line]{
		Accessors: timeline.Accessors[line]{
			ID:    func(l line) string { return l.id },
			Start: func(l line) float64 { return l.start },
			End:   func(l line) float64 { return l.end },
		},
		Lines: lines,
	})
}

// fakePlayer records every command and lets the test drive time updates.
type fakePlayer struct {
	mu    sync.Mutex
	subs  map[int]func(float64)
	order []int
	next  int
	now   float64
	calls []string
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{subs: map[int]func(float64){}}
}

func (p *fakePlayer) OnTimeUpdate(fn func(float64)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := p.next
	p.subs[id] = fn
	p.order = append(p.order, id)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *fakePlayer) Now() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *fakePlayer) SeekTo(seconds float64) {
	p.record(fmt.Sprintf("seek(%g)", seconds))
	p.mu.Lock()
	p.now = seconds
	p.mu.Unlock()
}

func (p *fakePlayer) Play()  { p.record("play") }
func (p *fakePlayer) Pause() { p.record("pause") }

func (p *fakePlayer) record(c string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
}

func (p *fakePlayer) emit(seconds float64) {
	p.mu.Lock()
	p.now = seconds
	var fns []func(float64)
	for _, id := range p.order {
		if fn, ok := p.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(seconds)
	}
}

func (p *fakePlayer) listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *fakePlayer) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.calls
	p.calls = nil
	return c
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingObserver) Observe(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[event]++
}

func (c *countingObserver) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[event]
}

func setup(opts Options, lines ...line) (*Orchestrator, *timeline.Session[line], *fakePlayer, *fakeClock) {
	tl := newTimeline(lines...)
	p := newFakePlayer()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	opts.Now = clk.now
	return New(tl, p, opts), tl, p, clk
}

func expectCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestAutoPauseFiresOncePerOverrun(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPause = true
	obs := &countingObserver{}
	opts.Observer = obs
	_, tl, p, clk := setup(opts, line{"L1", 10, 12}, line{"L2", 15, 17})

	p.emit(11.0)
	if got := tl.State().ActiveLineID; got != "L1" {
		t.Fatalf("expected active line L1, got %q", got)
	}
	clk.advance(time.Second)
	p.emit(12.1)
	expectCalls(t, p.drain(), "pause", "seek(10)")

	clk.advance(100 * time.Millisecond)
	p.emit(12.1001)
	expectCalls(t, p.drain())

	if got := obs.count(EventAutoPause); got != 1 {
		t.Errorf("expected 1 auto_pause event, got %d", got)
	}
}

func TestSingleRepeatLoopsRange(t *testing.T) {
	opts := DefaultOptions()
	opts.SingleRepeat = true
	_, _, p, clk := setup(opts, line{"L1", 10, 12}, line{"L2", 15, 17})

	p.emit(11)
	clk.advance(time.Second)
	p.emit(12.2)
	expectCalls(t, p.drain(), "seek(10)", "play")

	// once the overdue window has passed the policy applies again
	clk.advance(700 * time.Millisecond)
	p.emit(12.3)
	expectCalls(t, p.drain(), "seek(10)", "play")
}

func TestAutoPauseWinsOverSingleRepeat(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPause = true
	opts.SingleRepeat = true
	_, _, p, _ := setup(opts, line{"L1", 0, 20})

	p.emit(5)
	p.emit(25)
	expectCalls(t, p.drain(), "pause", "seek(0)")
}

func TestPinnedViewDrivesPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPause = true
	_, tl, p, _ := setup(opts, line{"L1", 0, 2}, line{"L2", 2, 4}, line{"L3", 5, 7})

	g := tl.CreateGroup([]string{"L1", "L2"}, nil)
	v := timeline.GroupView(g)
	tl.SetActiveView(&v)

	p.emit(3)
	expectCalls(t, p.drain())
	p.emit(4.5)
	expectCalls(t, p.drain(), "pause", "seek(0)")
}

func TestDisabledOrchestratorIsInert(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPause = true
	o, tl, p, _ := setup(opts, line{"L1", 0, 2}, line{"L2", 4, 6})
	o.SetEnabled(false)

	p.emit(1)
	p.emit(3)
	if got := tl.State().ActiveLineID; got != "" {
		t.Errorf("disabled instance forwarded a tick: active %q", got)
	}
	o.AdjustEndAndPeek(timeline.ByID("L1"), 1, Preview{})
	o.PreviewHead(timeline.ByID("L1"), Preview{})
	expectCalls(t, p.drain())
	if got := tl.LineRange("L1"); got != (timeline.Range{Start: 0, End: 2}) {
		t.Errorf("disabled macro edited the line: %+v", got)
	}
	if o.Enabled() {
		t.Error("expected Enabled() to be false")
	}
}

func TestAdjustEndAndPeekLoops(t *testing.T) {
	var adjusted []timeline.View
	opts := DefaultOptions()
	opts.AfterAdjust = func(v timeline.View) { adjusted = append(adjusted, v) }
	o, tl, p, clk := setup(opts, line{"L1", 0, 2}, line{"L2", 2, 6}, line{"L3", 9, 11})

	o.AdjustEndAndPeek(timeline.ByID("L2"), 2, Preview{Seconds: 1, Then: ThenLoop})
	if got := tl.LineRange("L2"); got != (timeline.Range{Start: 2, End: 8}) {
		t.Fatalf("expected L2 at [2,8], got %+v", got)
	}
	if v := tl.ActiveView(); v == nil || *v != timeline.LineView("L2") {
		t.Errorf("expected L2 pinned, got %+v", v)
	}
	if len(adjusted) != 1 || adjusted[0] != timeline.LineView("L2") {
		t.Errorf("expected one AfterAdjust for L2, got %v", adjusted)
	}
	expectCalls(t, p.drain(), "seek(7)", "play")

	for at := 7.1; at < 7.95; at += 0.1 {
		clk.advance(100 * time.Millisecond)
		p.emit(at)
	}
	expectCalls(t, p.drain())

	clk.advance(100 * time.Millisecond)
	p.emit(8.0)
	expectCalls(t, p.drain(), "seek(2)", "play")

	// the preview is over, later ticks do nothing more
	clk.advance(time.Second)
	p.emit(8.0)
	expectCalls(t, p.drain())
}

func TestShortPreviewEndsInsideOverdueWindow(t *testing.T) {
	o, tl, p, clk := setup(DefaultOptions(), line{"L1", 0, 2}, line{"L2", 2, 6})

	o.AdjustEndAndPeek(timeline.ByID("L2"), 2, Preview{Seconds: 0.2, Then: ThenLoop})
	if got := tl.LineRange("L2"); got != (timeline.Range{Start: 2, End: 8}) {
		t.Fatalf("expected L2 at [2,8], got %+v", got)
	}
	expectCalls(t, p.drain(), "seek(7.8)", "play")

	for _, at := range []float64{7.85, 7.9, 7.95} {
		clk.advance(50 * time.Millisecond)
		p.emit(at)
	}
	expectCalls(t, p.drain())

	// 200ms after the seek, well inside the overdue window
	clk.advance(50 * time.Millisecond)
	p.emit(8.05)
	expectCalls(t, p.drain(), "seek(2)", "play")
}

func TestAdjustStartAndPeekDefaultsToNone(t *testing.T) {
	o, tl, p, clk := setup(DefaultOptions(), line{"L1", 0, 2}, line{"L2", 4, 6})

	o.AdjustStartAndPeek(timeline.ByID("L2"), -0.5, Preview{Seconds: 0.05})
	if got := tl.LineRange("L2"); got != (timeline.Range{Start: 3.5, End: 6}) {
		t.Fatalf("expected L2 at [3.5,6], got %+v", got)
	}
	expectCalls(t, p.drain(), "seek(3.5)", "play")

	clk.advance(time.Second)
	p.emit(3.8)
	expectCalls(t, p.drain())
}

func TestPreviewPauseReturnsToStart(t *testing.T) {
	o, _, p, clk := setup(DefaultOptions(), line{"L1", 0, 5}, line{"L2", 5, 9})

	o.PreviewTail(timeline.ByID("L2"), Preview{Seconds: 2, Then: ThenPause})
	expectCalls(t, p.drain(), "seek(7)", "play")

	clk.advance(time.Second)
	p.emit(8)
	clk.advance(time.Second)
	p.emit(9.01)
	expectCalls(t, p.drain(), "seek(5)", "pause")
}

func TestPreviewIgnoresStalePositions(t *testing.T) {
	o, _, p, clk := setup(DefaultOptions(), line{"L1", 0, 5}, line{"L2", 20, 30})

	o.PreviewHead(timeline.ByID("L1"), Preview{Seconds: 1, Then: ThenPause})
	expectCalls(t, p.drain(), "seek(0)", "play")

	// the player still reports where it was before the seek
	clk.advance(50 * time.Millisecond)
	p.emit(25)
	expectCalls(t, p.drain())

	clk.advance(time.Second)
	p.emit(1.0)
	expectCalls(t, p.drain(), "seek(0)", "pause")
}

func TestNewPreviewSupersedesOld(t *testing.T) {
	obs := &countingObserver{}
	opts := DefaultOptions()
	opts.Observer = obs
	o, _, p, clk := setup(opts, line{"L1", 0, 4}, line{"L2", 4, 8})
	base := p.listeners()

	o.PreviewHead(timeline.ByID("L1"), Preview{Seconds: 1, Then: ThenPause})
	o.PreviewHead(timeline.ByID("L2"), Preview{Seconds: 1, Then: ThenLoop})
	if got := p.listeners(); got != base+1 {
		t.Errorf("expected one preview listener, got %d", got-base)
	}
	expectCalls(t, p.drain(), "seek(0)", "play", "seek(4)", "play")

	clk.advance(time.Second)
	p.emit(5)
	expectCalls(t, p.drain(), "seek(4)", "play")
	if got := obs.count(EventPreviewSuperseded); got != 1 {
		t.Errorf("expected 1 superseded event, got %d", got)
	}
	if got := p.listeners(); got != base {
		t.Errorf("expected preview listener removed, got %d extra", got-base)
	}
}

func TestDetachStopsEverything(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPause = true
	o, tl, p, clk := setup(opts, line{"L1", 0, 4}, line{"L2", 4, 8})

	o.PreviewTail(timeline.ByID("L1"), Preview{Seconds: 1, Then: ThenLoop})
	p.drain()
	o.Detach()
	if got := p.listeners(); got != 0 {
		t.Errorf("expected no listeners after Detach, got %d", got)
	}

	clk.advance(time.Second)
	p.emit(4.5)
	p.emit(9)
	expectCalls(t, p.drain())
	if got := tl.State().ActiveLineID; got != "" {
		t.Errorf("detached instance forwarded a tick: active %q", got)
	}

	o.AdjustEndAndPeek(timeline.ByID("L1"), 1, Preview{})
	expectCalls(t, p.drain())
}

func TestUnresolvableTargetIsNoOp(t *testing.T) {
	o, _, p, _ := setup(DefaultOptions(), line{"L1", 0, 4})

	o.AdjustEndAndPeek(timeline.ByID("nope"), 1, Preview{})
	o.AdjustStartAndPeek(timeline.ByID("grp-9"), 1, Preview{})
	expectCalls(t, p.drain())
}

func TestUpdateOptionsTogglesPolicy(t *testing.T) {
	o, _, p, _ := setup(DefaultOptions(), line{"L1", 0, 2}, line{"L2", 3, 5})

	p.emit(1)
	p.emit(2.5)
	expectCalls(t, p.drain())

	o.UpdateOptions(func(opts *Options) { opts.AutoPause = true })
	if !o.Options().AutoPause {
		t.Fatal("expected AutoPause to be set")
	}
	p.emit(2.6)
	expectCalls(t, p.drain(), "pause", "seek(0)")
}

func TestParseThen(t *testing.T) {
	tests := []struct {
		in   string
		want Then
	}{
		{"loop", ThenLoop},
		{"pause", ThenPause},
		{"none", ThenNone},
		{"", ThenDefault},
		{"bogus", ThenDefault},
	}
	for _, tt := range tests {
		if got := ParseThen(tt.in); got != tt.want {
			t.Errorf("ParseThen(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
