package cmd

import (
	"fmt"
	"os"

	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/ui/tui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	backupDest          string
	backupLevel         string
	backupExcludeTemp   bool
	backupEncrypt       bool
	backupPasswordStdin bool
	backupUpload        bool
	backupTarget        string
	backupTUI           bool
)

var backupCmd = &cobra.Command{
	Use:   "backup [source]",
	Short: "Archive a folder, optionally encrypt and upload it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		job := backup.Job{
			Destination: backupDest,
			Level:       levelOrDefault(backupLevel),
			ExcludeTemp: backupExcludeTemp,
			Encrypt:     backupEncrypt,
			Upload:      backupUpload,
			Target:      backupTarget,
		}
		if len(args) == 1 {
			job.Source = args[0]
		}

		if backupPasswordStdin {
			password, err := readPassword(os.Stdin)
			if err != nil {
				return err
			}
			job.Password = password
		}

		host := consoleHost()
		orch := newOrchestrator(newUploader(host, true))

		if err := orch.Prepare(&job, host); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		events, err := orch.Start(ctx, job)
		if err != nil {
			return err
		}

		var res backup.Result
		if backupTUI {
			res, err = tui.Run("BackTomatic: "+job.Source, events)
		} else {
			res, err = backup.Deliver(events, host)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d files, %s)\n", res.Archive.Path, res.Archive.Files, humanize.Bytes(uint64(res.Archive.Bytes)))
		if res.RemoteID != "" {
			fmt.Printf("uploaded to %s: %s\n", res.Target, res.RemoteID)
		}

		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupDest, "dest", "", "archive path (default: backup.zip next to the source folder)")
	backupCmd.Flags().StringVar(&backupLevel, "level", "", "compression level: low, medium or high")
	backupCmd.Flags().BoolVar(&backupExcludeTemp, "exclude-temp", false, "skip temporary files (.tmp, .log, .iso)")
	backupCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "encrypt the archive with AES-256")
	backupCmd.Flags().BoolVar(&backupPasswordStdin, "password-stdin", false, "read the archive password from stdin")
	backupCmd.Flags().BoolVar(&backupUpload, "upload", false, "upload the archive when it is written")
	backupCmd.Flags().StringVar(&backupTarget, "target", "", "upload target: gdrive, dropbox or s3")
	backupCmd.Flags().BoolVar(&backupTUI, "tui", false, "show progress in a terminal UI")
	rootCmd.AddCommand(backupCmd)
}
