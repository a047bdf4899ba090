package cmd

import (
	"fmt"

	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/ui/tui"

	"github.com/spf13/cobra"
)

var (
	uploadTarget string
	uploadTUI    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an existing archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		host := consoleHost()
		orch := newOrchestrator(newUploader(host, true))

		ctx, stop := signalContext()
		defer stop()

		events, err := orch.StartUpload(ctx, args[0], uploadTarget)
		if err != nil {
			return err
		}

		var res backup.Result
		if uploadTUI {
			res, err = tui.Run("BackTomatic upload: "+args[0], events)
		} else {
			res, err = backup.Deliver(events, host)
		}
		if err != nil {
			return err
		}

		fmt.Printf("uploaded to %s: %s\n", res.Target, res.RemoteID)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTarget, "target", "", "upload target: gdrive, dropbox or s3")
	uploadCmd.Flags().BoolVar(&uploadTUI, "tui", false, "show progress in a terminal UI")
	rootCmd.AddCommand(uploadCmd)
}
