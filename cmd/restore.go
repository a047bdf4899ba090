package cmd

import (
	"fmt"
	"os"
	"slices"

	"backtomatic/internal/archive"

	"github.com/spf13/cobra"
)

var restorePasswordStdin bool

var restoreCmd = &cobra.Command{
	Use:   "restore <archive> <dir>",
	Short: "Extract a backup archive into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := archive.List(args[0])
		if err != nil {
			return err
		}

		var password string
		if slices.ContainsFunc(entries, func(e archive.EntryInfo) bool { return e.Encrypted }) {
			if restorePasswordStdin {
				password, err = readPassword(os.Stdin)
				if err != nil {
					return err
				}
			} else {
				var ok bool
				password, ok = consoleHost().PromptPassword()
				if !ok {
					return archive.ErrMissingPassword
				}
			}
		}

		ctx, stop := signalContext()
		defer stop()

		n, err := archive.Extract(ctx, args[0], args[1], password)
		if err != nil {
			return err
		}

		fmt.Printf("restored %d files into %s\n", n, args[1])
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restorePasswordStdin, "password-stdin", false, "read the archive password from stdin")
	rootCmd.AddCommand(restoreCmd)
}
