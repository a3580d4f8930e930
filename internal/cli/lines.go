package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/spf13/cobra"
)

var linesCmd = &cobra.Command{
	Use:   "lines [subtitle_file]",
	Short: "List subtitle lines with their effective timing",
	Long: `List every line of a subtitle file with the timing stored adjustments
give it. Adjusted lines are marked with *.

Examples:
  subdeck lines movie.srt
  subdeck lines movie.srt --at 83.5`,
	Args: cobra.ExactArgs(1),
	RunE: runLines,
}

func init() {
	rootCmd.AddCommand(linesCmd)

	linesCmd.Flags().
		Float64("at", -1, "Only print the line active at this time in seconds")
}

func runLines(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetFloat64("at")
	ctx := context.Background()

	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	ws, err := loadWorkspace(ctx, args[0], repo, cfg.Timeline.BucketSeconds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if at >= 0 {
		key, ok := ws.session.LineAt(at)
		if !ok {
			return fmt.Errorf("no lines in %s", args[0])
		}
		l, _ := ws.session.Line(key)
		printLine(out, ws, l)
		return nil
	}
	for _, l := range ws.lines {
		printLine(out, ws, l)
	}
	return nil
}

func printLine(w io.Writer, ws *workspace, l subtitle.Line) {
	r := ws.session.LineRange(l.Key)
	mark := " "
	if l.AdjustedStart != nil || l.AdjustedEnd != nil {
		mark = "*"
	}
	fmt.Fprintf(w, "%4d%s %9.3f -> %9.3f  %s\n", l.Index+1, mark, r.Start, r.End, l.Text)
}
