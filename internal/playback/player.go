package playback

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInertialSeek is how long SeekTo waits for a newer target before
// issuing the seek.
const DefaultInertialSeek = 200 * time.Millisecond

// Player is everything the orchestrator needs from a media player.
type Player interface {
	OnTimeUpdate(fn func(seconds float64)) (unsubscribe func())
	Now() float64
	SeekTo(seconds float64)
	Play()
	Pause()
}

// Transport is the raw engine behind an InertialAdapter.
type Transport interface {
	Position() float64
	SeekAbsolute(seconds float64) error
	SetPaused(paused bool) error
}

type stopper interface {
	Stop() bool
}

func afterFunc(d time.Duration, fn func()) stopper {
	return time.AfterFunc(d, fn)
}

// InertialAdapter turns a Transport into a Player. Time updates pushed with
// Publish are fanned out to subscribers, and bursts of SeekTo calls collapse
// into one seek to the last requested time.
type InertialAdapter struct {
	transport Transport
	window    time.Duration
	log       *zap.SugaredLogger
	after     func(time.Duration, func()) stopper

	mu      sync.Mutex
	subs    []timeSub
	nextSub int
	pending stopper
	gen     uint64
	target  float64
	seeking bool
}

type timeSub struct {
	id int
	fn func(float64)
}

// NewInertialAdapter wraps t. A window of zero seeks immediately.
func NewInertialAdapter(t Transport, window time.Duration, log *zap.SugaredLogger) *InertialAdapter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &InertialAdapter{
		transport: t,
		window:    window,
		log:       log,
		after:     afterFunc,
	}
}

// OnTimeUpdate implements Player.
func (a *InertialAdapter) OnTimeUpdate(fn func(seconds float64)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSub++
	id := a.nextSub
	a.subs = append(a.subs, timeSub{id: id, fn: fn})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, s := range a.subs {
			if s.id == id {
				a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers a position reported by the transport to every subscriber.
// Subscribers may unsubscribe from inside the callback.
func (a *InertialAdapter) Publish(seconds float64) {
	a.mu.Lock()
	subs := append([]timeSub(nil), a.subs...)
	a.mu.Unlock()
	for _, s := range subs {
		s.fn(seconds)
	}
}

// Now reports the pending seek target while a seek is being coalesced.
func (a *InertialAdapter) Now() float64 {
	a.mu.Lock()
	if a.seeking {
		t := a.target
		a.mu.Unlock()
		return t
	}
	a.mu.Unlock()
	return a.transport.Position()
}

// SeekTo implements Player.
func (a *InertialAdapter) SeekTo(seconds float64) {
	if a.window <= 0 {
		a.seek(seconds)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Stop()
	}
	a.gen++
	gen := a.gen
	a.target = seconds
	a.seeking = true
	a.pending = a.after(a.window, func() { a.flush(gen) })
}

// Flush issues a pending seek now.
func (a *InertialAdapter) Flush() {
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()
	a.flush(gen)
}

func (a *InertialAdapter) flush(gen uint64) {
	a.mu.Lock()
	if !a.seeking || gen != a.gen {
		a.mu.Unlock()
		return
	}
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	target := a.target
	a.seeking = false
	a.mu.Unlock()
	a.seek(target)
}

func (a *InertialAdapter) seek(seconds float64) {
	if err := a.transport.SeekAbsolute(seconds); err != nil {
		a.log.Warnw("Seek failed", "target", seconds, "error", err)
	}
}

// Play implements Player.
func (a *InertialAdapter) Play() {
	if err := a.transport.SetPaused(false); err != nil {
		a.log.Warnw("Play failed", "error", err)
	}
}

// Pause implements Player.
func (a *InertialAdapter) Pause() {
	if err := a.transport.SetPaused(true); err != nil {
		a.log.Warnw("Pause failed", "error", err)
	}
}

// Close drops a pending seek without issuing it.
func (a *InertialAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.seeking = false
	a.gen++
}
