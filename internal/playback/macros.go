package playback

import (
	"math"

	"github.com/mgpai22/subdeck/internal/timeline"
)

// Then is what a preview does once it has played for its duration.
type Then int

const (
	// ThenDefault picks the macro's own default.
	ThenDefault Then = iota
	// ThenLoop seeks back to the range start and keeps playing.
	ThenLoop
	// ThenPause seeks back to the range start and pauses.
	ThenPause
	// ThenNone leaves the transport running.
	ThenNone
)

func (t Then) String() string {
	switch t {
	case ThenLoop:
		return "loop"
	case ThenPause:
		return "pause"
	case ThenNone:
		return "none"
	default:
		return "default"
	}
}

// ParseThen maps "loop", "pause" and "none" to a Then. Anything else is
// ThenDefault.
func ParseThen(s string) Then {
	switch s {
	case "loop":
		return ThenLoop
	case "pause":
		return ThenPause
	case "none":
		return ThenNone
	default:
		return ThenDefault
	}
}

// Preview parameterizes a macro's preview. A zero Seconds means one second.
type Preview struct {
	Seconds float64
	Then    Then
}

func (p Preview) seconds() float64 {
	if p.Seconds <= 0 {
		return 1
	}
	return p.Seconds
}

func (p Preview) then(def Then) Then {
	if p.Then == ThenDefault {
		return def
	}
	return p.Then
}

// AdjustEndAndPeek pins target as the active view, moves its end by delta
// and plays the last seconds of the new range. It loops by default.
func (o *Orchestrator) AdjustEndAndPeek(target timeline.Target, delta float64, p Preview) {
	v, ok := o.beginMacro(target)
	if !ok {
		return
	}
	if v.Kind == timeline.ViewGroup {
		o.tl.AdjustGroupEnd(v.ID, delta)
	} else {
		o.tl.AdjustLineEnd(v.ID, delta)
	}
	o.afterAdjust(v)

	r := o.tl.MapSeekRange(timeline.ForView(v))
	sec := math.Max(o.Options().MinPreview, p.seconds())
	o.playPreview(math.Max(r.Start, r.End-sec), sec, p.then(ThenLoop), r)
}

// AdjustStartAndPeek pins target as the active view, moves its start by
// delta and plays the first seconds of the new range.
func (o *Orchestrator) AdjustStartAndPeek(target timeline.Target, delta float64, p Preview) {
	v, ok := o.beginMacro(target)
	if !ok {
		return
	}
	if v.Kind == timeline.ViewGroup {
		o.tl.AdjustGroupStart(v.ID, delta)
	} else {
		o.tl.AdjustLineStart(v.ID, delta)
	}
	o.afterAdjust(v)

	r := o.tl.MapSeekRange(timeline.ForView(v))
	sec := math.Max(o.Options().MinPreview, p.seconds())
	o.playPreview(r.Start, sec, p.then(ThenNone), r)
}

// PreviewTail plays the last seconds of target's range without editing it.
func (o *Orchestrator) PreviewTail(target timeline.Target, p Preview) {
	if !o.Enabled() {
		return
	}
	r := o.tl.MapSeekRange(target)
	sec := p.seconds()
	o.playPreview(math.Max(r.Start, r.End-sec), sec, p.then(ThenNone), r)
}

// PreviewHead plays the first seconds of target's range without editing it.
func (o *Orchestrator) PreviewHead(target timeline.Target, p Preview) {
	if !o.Enabled() {
		return
	}
	r := o.tl.MapSeekRange(target)
	o.playPreview(r.Start, p.seconds(), p.then(ThenNone), r)
}

func (o *Orchestrator) beginMacro(target timeline.Target) (timeline.View, bool) {
	if !o.Enabled() {
		return timeline.View{}, false
	}
	v, ok := o.tl.Resolve(target)
	if !ok {
		o.Options().Logger.Debugw("Nothing to adjust")
		return timeline.View{}, false
	}
	o.tl.SetActiveView(&v)
	return v, true
}

func (o *Orchestrator) afterAdjust(v timeline.View) {
	if fn := o.Options().AfterAdjust; fn != nil {
		fn(v)
	}
}

// playPreview seeks to start, plays, and watches player time until
// start+duration is reached. A newer preview or Detach makes it a no-op.
func (o *Orchestrator) playPreview(start, duration float64, then Then, base timeline.Range) {
	o.mu.Lock()
	if o.detached {
		o.mu.Unlock()
		return
	}
	o.token++
	token := o.token
	prev := o.preview
	run := &previewRun{token: token}
	o.preview = run
	o.lastSeek = o.opts.Now()
	log := o.opts.Logger
	o.mu.Unlock()

	if prev != nil {
		if prev.unsub != nil {
			prev.unsub()
		}
		o.observe(EventPreviewSuperseded)
	}

	log.Debugw("Starting preview",
		"start", start, "seconds", duration, "then", then.String())
	o.seek(start)
	o.play()
	o.observe(EventPreviewStarted)

	end := start + duration
	unsub := o.player.OnTimeUpdate(func(t float64) {
		o.mu.Lock()
		live := o.enabled && !o.detached && o.token == token
		// positions from before the seek landed
		stale := o.overdueLocked() && (t < start || t > end+o.opts.Overdue.Seconds())
		o.mu.Unlock()
		if !live {
			o.finishPreview(run)
			return
		}
		if stale || t < end {
			return
		}
		o.finishPreview(run)
		o.observe(EventPreviewFinished)
		switch then {
		case ThenLoop:
			o.markSeek()
			o.seek(base.Start)
			o.play()
		case ThenPause:
			o.markSeek()
			o.seek(base.Start)
			o.pause()
		}
	})

	o.mu.Lock()
	if o.preview == run {
		run.unsub = unsub
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	// superseded or detached while subscribing
	unsub()
}

func (o *Orchestrator) finishPreview(run *previewRun) {
	o.mu.Lock()
	unsub := run.unsub
	run.unsub = nil
	if o.preview == run {
		o.preview = nil
	}
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
