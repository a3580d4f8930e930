package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [subtitle_file]",
	Short: "Write a subtitle file with stored adjustments applied",
	Long: `Write a copy of a subtitle file with every stored timing adjustment
applied. Exporting to the source format keeps styles and headers; other
formats are written from the plain cue list.

Examples:
  subdeck export movie.srt
  subdeck export movie.ass -o fixed.ass
  subdeck export movie.srt --format vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file path")
	exportCmd.Flags().
		StringP("format", "f", "", "Output subtitle format (srt, vtt, ass); defaults to the source format")
}

func runExport(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	formatStr, _ := cmd.Flags().GetString("format")
	ctx := context.Background()

	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	ws, err := loadWorkspace(ctx, inputPath, repo, cfg.Timeline.BucketSeconds)
	if err != nil {
		return err
	}

	format := ws.file.Format()
	if formatStr != "" {
		f, ok := subtitle.ParseFormat(strings.ToLower(formatStr))
		if !ok {
			return fmt.Errorf("unsupported format %q: use srt, vtt, or ass", formatStr)
		}
		format = f
	}

	if outputPath == "" {
		outputPath = retimedPath(inputPath, format)
	}

	adjusted := 0
	for _, l := range ws.lines {
		if l.AdjustedStart != nil {
			adjusted++
		}
	}
	logger.Infow("Exporting subtitles",
		"input", inputPath,
		"output", outputPath,
		"format", format,
		"adjusted", adjusted,
	)

	if _, err := ws.save(outputPath, format); err != nil {
		return fmt.Errorf("failed to export subtitles: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Subtitles exported successfully: %s\n", absOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "  Entries: %d\n", len(ws.lines))
	fmt.Fprintf(cmd.OutOrStdout(), "  Adjusted: %d\n", adjusted)
	return nil
}
