// Package mpv drives libmpv as the playback transport and draws the active
// subtitle line with an OSD overlay.
package mpv

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/gen2brain/go-mpv"
	"go.uber.org/zap"

	"github.com/mgpai22/subdeck/internal/config"
)

// Player wraps libmpv. It satisfies playback.Transport.
type Player struct {
	m        *mpv.Mpv
	log      *zap.SugaredLogger
	mu       sync.Mutex
	paused   bool
	duration float64
	position float64
	done     chan struct{}

	// OnTimePos receives every time-pos change from the event loop
	// goroutine. Set it before LoadFile.
	OnTimePos func(seconds float64)
}

// New creates and initializes an mpv instance with its own window.
func New(cfg config.PlayerConfig, log *zap.SugaredLogger) (*Player, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := mpv.New()
	p := &Player{m: m, log: log, done: make(chan struct{})}

	p.option("hwdec", cfg.HWDec)
	p.option("vo", "gpu")
	p.option("osc", "yes")
	p.option("keep-open", "yes")
	p.option("input-default-bindings", "yes")
	p.option("input-vo-keyboard", "yes")
	// subtitles are drawn by the overlay
	p.option("sid", "no")
	p.option("volume", strconv.Itoa(cfg.Volume))

	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize mpv: %w", err)
	}

	m.ObserveProperty(0, "time-pos", mpv.FormatDouble)
	m.ObserveProperty(0, "duration", mpv.FormatDouble)
	m.ObserveProperty(0, "pause", mpv.FormatFlag)

	go p.eventLoop()

	return p, nil
}

func (p *Player) option(name, value string) {
	if value == "" {
		return
	}
	if err := p.m.SetOptionString(name, value); err != nil {
		p.log.Warnw("mpv option rejected", "option", name, "value", value, "error", err)
	}
}

// LoadFile starts playback of path.
func (p *Player) LoadFile(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m.Command([]string{"loadfile", path})
}

// SeekAbsolute seeks to an absolute position.
func (p *Player) SeekAbsolute(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m.Command([]string{"seek", fmt.Sprintf("%.3f", seconds), "absolute+exact"})
}

// SetPaused sets the pause property.
func (p *Player) SetPaused(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := "no"
	if paused {
		v = "yes"
	}
	return p.m.SetPropertyString("pause", v)
}

// Position returns the last reported playback position in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Duration returns the total duration in seconds.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Paused returns the current pause state.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Done is closed when mpv shuts down, e.g. when its window is closed.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Destroy terminates mpv.
func (p *Player) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m.TerminateDestroy()
}

func (p *Player) eventLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)
	for {
		ev := p.m.WaitEvent(1.0)
		if ev == nil {
			continue
		}

		switch ev.EventID {
		case mpv.EventPropertyChange:
			if ev.Data == nil {
				continue
			}
			prop := ev.Property()
			var tick func(float64)
			var at float64
			p.mu.Lock()
			switch prop.Name {
			case "time-pos":
				if v, ok := prop.Data.(float64); ok {
					p.position = v
					tick, at = p.OnTimePos, v
				}
			case "duration":
				if v, ok := prop.Data.(float64); ok {
					p.duration = v
				}
			case "pause":
				if v, ok := prop.Data.(int); ok {
					p.paused = v == 1
				}
			}
			p.mu.Unlock()
			if tick != nil {
				tick(at)
			}

		case mpv.EventEnd:
			if ev.Data != nil {
				p.log.Debugw("mpv end-file", "reason", ev.EndFile().Reason)
			}

		case mpv.EventShutdown:
			return
		}
	}
}
