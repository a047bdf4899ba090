package cmd

import (
	"errors"
	"fmt"

	"backtomatic/internal/auth"

	"github.com/spf13/cobra"
)

var credentialsProvider string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage OAuth client secrets",
}

var credentialsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Copy a client secret JSON file into the credentials directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if credentialsProvider != auth.GDriveName && credentialsProvider != auth.DropboxName {
			return fmt.Errorf("unknown provider %q", credentialsProvider)
		}

		var src string
		if len(args) == 1 {
			src = args[0]
		} else {
			path, ok := consoleHost().SelectFile()
			if !ok {
				return errors.New("no client secret file selected")
			}
			src = path
		}

		dst, err := auth.NewStore(cfg.CredentialsDir).ImportSecret(credentialsProvider, src)
		if err != nil {
			return err
		}

		fmt.Printf("saved %s\n", dst)
		return nil
	},
}

func init() {
	credentialsImportCmd.Flags().StringVar(&credentialsProvider, "provider", auth.GDriveName, "gdrive or dropbox")
	credentialsCmd.AddCommand(credentialsImportCmd)
	rootCmd.AddCommand(credentialsCmd)
}
