package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mgpai22/subdeck/internal/adjust"
	"github.com/mgpai22/subdeck/internal/bridge"
	"github.com/mgpai22/subdeck/internal/metrics"
	"github.com/mgpai22/subdeck/internal/mpv"
	"github.com/mgpai22/subdeck/internal/playback"
	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/mgpai22/subdeck/internal/timeline"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [media_file] [subtitle_file]",
	Short: "Play a video and retime its subtitles line by line",
	Long: `Play a video in mpv with the subtitle file drawn line by line, and edit
timing from the console while it plays.

Each edit moves the start or end of the current line (or the pinned group)
and immediately previews the changed edge. Edits are stored per file content
and applied again the next time the same file is opened.

Type "help" at the prompt for the command list.

Examples:
  subdeck play movie.mkv movie.srt
  subdeck play movie.mkv movie.ass --auto-pause
  subdeck play movie.mkv movie.vtt --listen 127.0.0.1:8787`,
	Args: cobra.ExactArgs(2),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().
		Bool("auto-pause", false, "Pause at the end of every line (overrides config)")
	playCmd.Flags().
		Bool("repeat", false, "Replay the current line when it ends (overrides config)")
	playCmd.Flags().
		String("listen", "", "Serve session state over HTTP on this address (overrides config)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	mediaPath, subtitlePath := args[0], args[1]

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if cmd.Flags().Changed("auto-pause") {
		cfg.Playback.AutoPause, _ = cmd.Flags().GetBool("auto-pause")
	}
	if cmd.Flags().Changed("repeat") {
		cfg.Playback.SingleRepeat, _ = cmd.Flags().GetBool("repeat")
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Bridge.Listen = listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	ws, err := loadWorkspace(ctx, subtitlePath, repo, cfg.Timeline.BucketSeconds)
	if err != nil {
		return err
	}
	log := logger.SugaredLogger
	log.Infow("Loaded subtitles",
		"path", subtitlePath,
		"format", ws.sub.Format,
		"lines", len(ws.lines),
		"hash", ws.sub.Hash,
	)

	m := metrics.New()
	session := ws.session
	recorder := adjust.NewRecorder(repo, session, ws.sub, ws.lines, log).
		WithThreshold(cfg.Timeline.AdjustThreshold).
		WithCounter(m)

	player, err := mpv.New(cfg.Player, log)
	if err != nil {
		return err
	}
	defer player.Destroy()

	adapter := playback.NewInertialAdapter(player, cfg.Playback.InertialSeek(), log)
	defer adapter.Close()
	player.OnTimePos = adapter.Publish

	opts := playback.DefaultOptions()
	opts.AutoPause = cfg.Playback.AutoPause
	opts.SingleRepeat = cfg.Playback.SingleRepeat
	opts.InertialSeek = cfg.Playback.InertialSeek()
	opts.Overdue = cfg.Playback.Overdue()
	opts.MinPreview = cfg.Playback.MinPreview
	opts.Logger = log
	opts.Observer = m
	opts.AfterAdjust = func(v timeline.View) { recorder.RecordView(ctx, v) }
	orch := playback.New(session, adapter, opts)
	defer orch.Detach()

	if cfg.Player.OSD {
		defer attachOverlay(session, player, cfg.Timeline.AdjustThreshold)()
	}
	defer timeline.Watch(session,
		func(st *timeline.State) string { return st.ActiveLineID },
		func(next, _ string) { log.Debugw("Active line", "key", next) },
	)()

	updateGauges := func() { m.SetSession(session.Len(), len(session.Groups())) }
	serveErr := make(chan error, 1)
	if cfg.Bridge.Listen != "" {
		store := bridge.NewStore()
		defer bridge.Attach(store, bridge.Source[subtitle.Line]{
			Session:   session,
			Text:      func(l subtitle.Line) string { return l.Text },
			Threshold: cfg.Timeline.AdjustThreshold,
			Duration:  player.Duration,
		})()
		handler := bridge.Router(bridge.NewHandler(store, log), m, cfg.Bridge.CORSOrigins, updateGauges)
		go func() { serveErr <- bridge.Serve(ctx, cfg.Bridge.Listen, handler, log) }()
	}

	if err := player.LoadFile(mediaPath); err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}

	d := &deck{
		ws:       ws,
		orch:     orch,
		player:   adapter,
		status:   player,
		recorder: recorder,
		step:     cfg.Playback.AdjustStep,
		preview:  cfg.Playback.PreviewSeconds,
		out:      cmd.OutOrStdout(),
		log:      log,
	}
	fmt.Fprintln(d.out, `subdeck ready, type "help" for commands`)

	input := readCommands(ctx, cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-player.Done():
			log.Infow("Player closed")
			return nil
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("bridge failed: %w", err)
			}
		case line, ok := <-input:
			if !ok {
				// stdin closed; keep playing until the window closes
				input = nil
				continue
			}
			c, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(d.out, err)
				continue
			}
			if err := d.exec(ctx, c); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				d.log.Debugw("Command failed", "command", c.op, "error", err)
				fmt.Fprintln(d.out, err)
			}
		}
	}
}

// attachOverlay draws the active line and its offset badge on the mpv OSD.
func attachOverlay(
	session *timeline.Session[subtitle.Line],
	player *mpv.Player,
	threshold float64,
) (detach func()) {
	var (
		mu   sync.Mutex
		last mpv.LineOverlay
	)
	return session.Subscribe(func(st, _ *timeline.State) {
		o := overlayFor(session, st, threshold)
		mu.Lock()
		defer mu.Unlock()
		if o == last {
			return
		}
		last = o
		if err := player.ShowLine(o); err != nil {
			logger.Debugw("Failed to update overlay", "error", err)
		}
	})
}

func overlayFor(
	session *timeline.Session[subtitle.Line],
	st *timeline.State,
	threshold float64,
) mpv.LineOverlay {
	var o mpv.LineOverlay
	if st.ActiveLineID != "" {
		// the active line outlives its range until the next one starts
		r := session.LineRange(st.ActiveLineID)
		if l, ok := session.Line(st.ActiveLineID); ok && st.Time >= r.Start && st.Time <= r.End {
			o.Text = l.Text
		}
		o.Offset = session.TimeDiff(timeline.ByID(st.ActiveLineID))
		o.Adjusted = session.IsLineAdjusted(st.ActiveLineID, threshold)
	}
	if v := st.ActiveView; v != nil {
		o.Pinned = "pinned"
		if v.Kind == timeline.ViewGroup {
			o.Pinned = v.ID
		}
	}
	return o
}
