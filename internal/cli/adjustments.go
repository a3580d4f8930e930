package cli

import (
	"context"
	"fmt"

	"github.com/mgpai22/subdeck/internal/subtitle"
	"github.com/spf13/cobra"
)

var adjustmentsCmd = &cobra.Command{
	Use:   "adjustments",
	Short: "Inspect or drop stored timing adjustments",
}

var adjustmentsListCmd = &cobra.Command{
	Use:   "list [subtitle_file]",
	Short: "List stored adjustments for a subtitle file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdjustmentsList,
}

var adjustmentsClearCmd = &cobra.Command{
	Use:   "clear [subtitle_file]",
	Short: "Drop every stored adjustment for a subtitle file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdjustmentsClear,
}

func init() {
	rootCmd.AddCommand(adjustmentsCmd)
	adjustmentsCmd.AddCommand(adjustmentsListCmd, adjustmentsClearCmd)
}

func runAdjustmentsList(cmd *cobra.Command, args []string) error {
	hash, err := subtitle.HashFile(args[0])
	if err != nil {
		return err
	}
	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	rows, err := repo.FindByHash(context.Background(), hash)
	if err != nil {
		return fmt.Errorf("failed to list adjustments: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No adjustments stored")
		return nil
	}
	for _, a := range rows {
		fmt.Fprintf(out, "%s  %9.3f -> %9.3f  %s\n",
			a.Key, a.Start, a.End, a.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAdjustmentsClear(cmd *cobra.Command, args []string) error {
	hash, err := subtitle.HashFile(args[0])
	if err != nil {
		return err
	}
	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.DeleteByFileHash(context.Background(), hash); err != nil {
		return fmt.Errorf("failed to clear adjustments: %w", err)
	}
	logger.Infow("Cleared adjustments", "path", args[0], "hash", hash)
	return nil
}
