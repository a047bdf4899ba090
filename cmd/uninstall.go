package cmd

import (
	"fmt"

	"backtomatic/internal/autostart"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the folder watch from autostart",
	RunE: func(cmd *cobra.Command, args []string) error {
		as := autostart.New()

		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if !installed {
			fmt.Println("no autostart entry found")
			return nil
		}

		if err := as.Uninstall(); err != nil {
			return err
		}

		fmt.Println("backtomatic autostart removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
