package cmd

import (
	"fmt"
	"os"

	"backtomatic/internal/config"
	"backtomatic/internal/db"
	"backtomatic/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg   *config.Config
	debug bool
)

// Commands that keep backup history open the database in PersistentPreRunE.
var historyCmds = map[string]bool{
	"backup": true, "upload": true, "daemon": true, "watch": true, "history": true,
}

var rootCmd = &cobra.Command{
	Use:   "backtomatic",
	Short: "Back up a folder into a zip archive and upload it to the cloud",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		if historyCmds[cmd.Name()] {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
