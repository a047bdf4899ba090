package cmd

import (
	"fmt"

	"backtomatic/internal/archive"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "List the files in a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := archive.List(args[0])
		if err != nil {
			return err
		}

		var total uint64
		fmt.Printf("%-10s %-19s %-4s %s\n", "SIZE", "MODIFIED", "ENC", "NAME")
		for _, e := range entries {
			enc := ""
			if e.Encrypted {
				enc = "yes"
			}

			fmt.Printf("%-10s %-19s %-4s %s\n",
				humanize.Bytes(e.Size), e.Modified.Format("2006-01-02 15:04:05"), enc, e.Name)
			total += e.Size
		}

		fmt.Printf("%d files, %s uncompressed\n", len(entries), humanize.Bytes(total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
