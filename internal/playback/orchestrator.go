// Package playback turns subtitle timeline state into player commands:
// auto-pause at the end of a line, single-line repeat, and short previews
// after a timing edit.
package playback

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mgpai22/subdeck/internal/timeline"
)

// DefaultOverdue is how long natural ticks are ignored after a programmatic
// seek.
const DefaultOverdue = 600 * time.Millisecond

// DefaultMinPreview is the shortest preview an adjust macro plays, in seconds.
const DefaultMinPreview = 0.2

// Timeline is the part of a subtitle session the orchestrator drives.
// *timeline.Session satisfies it for any line type.
type Timeline interface {
	Tick(seconds float64)
	State() *timeline.State
	Resolve(t timeline.Target) (timeline.View, bool)
	MapSeekRange(t timeline.Target) timeline.Range
	SetActiveView(v *timeline.View)
	AdjustLineStart(id string, delta float64)
	AdjustLineEnd(id string, delta float64)
	AdjustGroupStart(id string, delta float64)
	AdjustGroupEnd(id string, delta float64)
}

// Observer receives one event name per command or policy decision.
type Observer interface {
	Observe(event string)
}

// Event names reported to an Observer.
const (
	EventSeek              = "seek"
	EventPlay              = "play"
	EventPause             = "pause"
	EventAutoPause         = "auto_pause"
	EventSingleRepeat      = "single_repeat"
	EventPreviewStarted    = "preview_started"
	EventPreviewFinished   = "preview_finished"
	EventPreviewSuperseded = "preview_superseded"
)

// Options configures an Orchestrator. Start from DefaultOptions.
type Options struct {
	AutoPause    bool
	SingleRepeat bool
	// InertialSeek is informational; it should match the adapter's window.
	InertialSeek time.Duration
	Overdue      time.Duration
	MinPreview   float64

	Now      func() time.Time
	Logger   *zap.SugaredLogger
	Observer Observer
	// AfterAdjust runs after every adjust macro, outside any lock.
	AfterAdjust func(v timeline.View)
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		InertialSeek: DefaultInertialSeek,
		Overdue:      DefaultOverdue,
		MinPreview:   DefaultMinPreview,
	}
}

// Orchestrator evaluates playback policy on every player tick and runs the
// adjust/preview macros. Several orchestrators may share a player; only
// enabled ones act.
type Orchestrator struct {
	tl     Timeline
	player Player

	mu          sync.Mutex
	opts        Options
	enabled     bool
	detached    bool
	lastSeek    time.Time
	token       uint64
	preview     *previewRun
	unsubscribe func()
}

type previewRun struct {
	token uint64
	unsub func()
}

// New binds an orchestrator to tl and player and subscribes to the player's
// time updates.
func New(tl Timeline, player Player, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	o := &Orchestrator{
		tl:      tl,
		player:  player,
		opts:    opts,
		enabled: true,
	}
	unsub := player.OnTimeUpdate(o.Tick)
	o.mu.Lock()
	o.unsubscribe = unsub
	o.mu.Unlock()
	return o
}

// UpdateOptions applies fn to the current options.
func (o *Orchestrator) UpdateOptions(fn func(*Options)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.opts)
	if o.opts.Now == nil {
		o.opts.Now = time.Now
	}
	if o.opts.Logger == nil {
		o.opts.Logger = zap.NewNop().Sugar()
	}
}

// Options returns a copy of the current options.
func (o *Orchestrator) Options() Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts
}

// SetEnabled turns policy and macros on or off for this instance.
func (o *Orchestrator) SetEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = enabled
}

// Enabled reports whether this instance acts on ticks and macros.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled && !o.detached
}

// Detach invalidates any running preview and stops listening to the player.
// Every later call is a no-op.
func (o *Orchestrator) Detach() {
	o.mu.Lock()
	o.detached = true
	o.token++
	var unsubs []func()
	if o.preview != nil {
		unsubs = append(unsubs, o.preview.unsub)
		o.preview = nil
	}
	if o.unsubscribe != nil {
		unsubs = append(unsubs, o.unsubscribe)
		o.unsubscribe = nil
	}
	o.mu.Unlock()
	for _, fn := range unsubs {
		if fn != nil {
			fn()
		}
	}
}

// Tick forwards a player time into the timeline and applies the auto-pause
// and single-repeat policy. Ticks inside the overdue window after a
// programmatic seek are ignored: the player may still be reporting the
// position from before the seek.
func (o *Orchestrator) Tick(seconds float64) {
	o.mu.Lock()
	if !o.enabled || o.detached || o.overdueLocked() {
		o.mu.Unlock()
		return
	}
	opts := o.opts
	o.mu.Unlock()

	o.tl.Tick(seconds)

	r := o.tl.State().ActiveViewRange
	if r == nil || seconds <= r.End {
		return
	}
	switch {
	case opts.AutoPause:
		o.pause()
		o.markSeek()
		o.seek(r.Start)
		o.observe(EventAutoPause)
		opts.Logger.Debugw("Auto-paused at end of range",
			"time", seconds, "start", r.Start, "end", r.End)
	case opts.SingleRepeat:
		o.markSeek()
		o.seek(r.Start)
		o.play()
		o.observe(EventSingleRepeat)
		opts.Logger.Debugw("Repeating range",
			"time", seconds, "start", r.Start, "end", r.End)
	}
}

func (o *Orchestrator) overdueLocked() bool {
	return o.opts.Now().Sub(o.lastSeek) < o.opts.Overdue
}

func (o *Orchestrator) markSeek() {
	o.mu.Lock()
	o.lastSeek = o.opts.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) seek(seconds float64) {
	o.player.SeekTo(seconds)
	o.observe(EventSeek)
}

func (o *Orchestrator) play() {
	o.player.Play()
	o.observe(EventPlay)
}

func (o *Orchestrator) pause() {
	o.player.Pause()
	o.observe(EventPause)
}

func (o *Orchestrator) observe(event string) {
	o.mu.Lock()
	obs := o.opts.Observer
	o.mu.Unlock()
	if obs != nil {
		obs.Observe(event)
	}
}
