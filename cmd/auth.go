package cmd

import (
	"fmt"

	"backtomatic/internal/auth"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for cloud services",
}

func authorizeCmd(name, title string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: "Authenticate with " + title,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvider(name, consoleHost())
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if err := p.Authorize(ctx); err != nil {
				return err
			}

			fmt.Printf("Authenticated with %s\n", title)
			return nil
		},
	}
}

func init() {
	authCmd.AddCommand(
		authorizeCmd(auth.GDriveName, "Google Drive"),
		authorizeCmd(auth.DropboxName, "Dropbox"),
	)
	rootCmd.AddCommand(authCmd)
}
