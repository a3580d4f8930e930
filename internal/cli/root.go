package cli

import (
	"fmt"

	"github.com/mgpai22/subdeck/internal/config"
	"github.com/mgpai22/subdeck/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "subdeck",
	Short: "Line-by-line subtitle timing with live playback",
	Long: `Subdeck plays a video next to its subtitle file and lets you retime
lines while you listen.

Every timing edit previews the changed edge, is stored by file content and
survives restarts. Lines can be grouped and navigated as one unit.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		if err := config.LoadEnv(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file path (default $XDG_CONFIG_HOME/subdeck/config.toml)")
	rootCmd.PersistentFlags().
		String("db", "", "Adjustment database path (overrides config)")
}
