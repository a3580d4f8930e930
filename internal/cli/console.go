package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mgpai22/subdeck/internal/adjust"
	"github.com/mgpai22/subdeck/internal/playback"
	"github.com/mgpai22/subdeck/internal/timeline"
)

const consoleHelp = `commands:
  s+ [sec] | s- [sec]    move the start of the current line or group and peek
  e+ [sec] | e- [sec]    move the end of the current line or group and peek
  head [sec] | tail [sec] preview without editing
  clear                  drop the adjustment of the current line or group
  group N...             group lines (1-based numbers or keys)
  ungroup GROUP          remove a group
  view N|GROUP|off       pin a line or group, or follow playback again
  autopause on|off       pause at the end of every line
  repeat on|off          replay the current line
  play | pause | goto SEC
  status                 show position, duration and pause state
  save [path]            write the retimed subtitle file
                         (default NAME.retimed.EXT; the source file is kept
                         because stored adjustments are keyed by its content)
  help | quit`

var errQuit = errors.New("quit")

// playerStatus is the read side of the media player.
type playerStatus interface {
	Duration() float64
	Paused() bool
}

// flusher is a player that can issue a coalesced seek right away.
type flusher interface {
	Flush()
}

// command is one parsed console line.
type command struct {
	op string
	// seconds is zero when the optional argument was omitted.
	seconds float64
	on      bool
	args    []string
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	c := command{op: strings.ToLower(fields[0]), args: fields[1:]}

	switch c.op {
	case "s+", "s-", "e+", "e-", "head", "tail":
		if len(c.args) > 1 {
			return c, fmt.Errorf("%s takes at most one argument", c.op)
		}
		if len(c.args) == 1 {
			sec, err := strconv.ParseFloat(c.args[0], 64)
			if err != nil || sec <= 0 {
				return c, fmt.Errorf("invalid seconds %q", c.args[0])
			}
			c.seconds = sec
		}
	case "goto":
		if len(c.args) != 1 {
			return c, fmt.Errorf("goto needs a time in seconds")
		}
		sec, err := strconv.ParseFloat(c.args[0], 64)
		if err != nil || sec < 0 {
			return c, fmt.Errorf("invalid seconds %q", c.args[0])
		}
		c.seconds = sec
	case "autopause", "repeat":
		if len(c.args) != 1 {
			return c, fmt.Errorf("%s needs on or off", c.op)
		}
		switch strings.ToLower(c.args[0]) {
		case "on":
			c.on = true
		case "off":
		default:
			return c, fmt.Errorf("%s needs on or off, got %q", c.op, c.args[0])
		}
	case "group":
		if len(c.args) == 0 {
			return c, fmt.Errorf("group needs at least one line")
		}
	case "ungroup", "view":
		if len(c.args) != 1 {
			return c, fmt.Errorf("%s needs exactly one id", c.op)
		}
	case "save":
		if len(c.args) > 1 {
			return c, fmt.Errorf("save takes at most one path")
		}
	case "clear", "play", "pause", "status", "help", "quit", "q":
		if c.op == "q" {
			c.op = "quit"
		}
	default:
		return c, fmt.Errorf("unknown command %q (try help)", c.op)
	}
	return c, nil
}

// deck applies console commands to a loaded workspace.
type deck struct {
	ws       *workspace
	orch     *playback.Orchestrator
	player   playback.Player
	status   playerStatus // may be nil
	recorder *adjust.Recorder
	step     float64
	preview  float64
	out      io.Writer
	log      *zap.SugaredLogger
}

// current is the view edits apply to: the pinned view, else the active line.
func (d *deck) current() (timeline.Target, error) {
	v, ok := d.ws.session.State().CurrentView()
	if !ok {
		return timeline.Target{}, fmt.Errorf("no active line")
	}
	return timeline.ForView(v), nil
}

func (d *deck) exec(ctx context.Context, c command) error {
	p := playback.Preview{Seconds: d.preview}

	switch c.op {
	case "":
		return nil
	case "help":
		fmt.Fprintln(d.out, consoleHelp)
	case "quit":
		return errQuit
	case "s+", "s-", "e+", "e-":
		t, err := d.current()
		if err != nil {
			return err
		}
		delta := d.step
		if c.seconds > 0 {
			delta = c.seconds
		}
		if strings.HasSuffix(c.op, "-") {
			delta = -delta
		}
		if c.op[0] == 's' {
			d.orch.AdjustStartAndPeek(t, delta, p)
		} else {
			d.orch.AdjustEndAndPeek(t, delta, p)
		}
	case "head", "tail":
		t, err := d.current()
		if err != nil {
			return err
		}
		if c.seconds > 0 {
			p.Seconds = c.seconds
		}
		if c.op == "head" {
			d.orch.PreviewHead(t, p)
		} else {
			d.orch.PreviewTail(t, p)
		}
	case "clear":
		v, ok := d.ws.session.State().CurrentView()
		if !ok {
			return fmt.Errorf("no active line")
		}
		if v.Kind == timeline.ViewGroup {
			d.ws.session.ClearGroupAdjust(v.ID)
		} else {
			d.ws.session.ClearLineAdjust(v.ID)
			d.recorder.RecordView(ctx, v)
		}
	case "group":
		ids := make([]string, 0, len(c.args))
		for _, a := range c.args {
			key := d.ws.lineRef(a)
			if _, ok := d.ws.session.Line(key); !ok {
				return fmt.Errorf("unknown line %q", a)
			}
			ids = append(ids, key)
		}
		id := d.ws.session.CreateGroup(ids, nil)
		fmt.Fprintf(d.out, "created %s\n", id)
	case "ungroup":
		d.ws.session.RemoveGroup(c.args[0])
	case "view":
		if strings.EqualFold(c.args[0], "off") {
			d.ws.session.SetActiveView(nil)
			return nil
		}
		v, ok := d.ws.session.Resolve(timeline.ByID(d.ws.lineRef(c.args[0])))
		if !ok {
			return fmt.Errorf("unknown line or group %q", c.args[0])
		}
		d.ws.session.SetActiveView(&v)
	case "autopause":
		d.orch.UpdateOptions(func(o *playback.Options) { o.AutoPause = c.on })
	case "repeat":
		d.orch.UpdateOptions(func(o *playback.Options) { o.SingleRepeat = c.on })
	case "play":
		d.player.Play()
	case "pause":
		d.player.Pause()
	case "goto":
		d.player.SeekTo(c.seconds)
		if f, ok := d.player.(flusher); ok {
			f.Flush()
		}
	case "status":
		d.printStatus()
	case "save":
		path := ""
		if len(c.args) == 1 {
			path = c.args[0]
		}
		written, err := d.ws.save(path, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "saved %s\n", written)
	}
	return nil
}

func (d *deck) printStatus() {
	st := d.ws.session.State()
	line := "-"
	if st.ActiveLineID != "" {
		if l, ok := d.ws.session.Line(st.ActiveLineID); ok {
			line = strconv.Itoa(l.Index + 1)
		}
	}
	if d.status == nil {
		fmt.Fprintf(d.out, "%.3f line %s\n", d.player.Now(), line)
		return
	}
	state := "playing"
	if d.status.Paused() {
		state = "paused"
	}
	fmt.Fprintf(d.out, "%.3f / %.3f %s line %s\n", d.player.Now(), d.status.Duration(), state, line)
}

// readCommands sends every line of r to the returned channel until r is
// exhausted or ctx is done.
func readCommands(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
