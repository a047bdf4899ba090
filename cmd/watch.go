package cmd

import (
	"fmt"
	"os"

	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch <source>",
	Short: "Back up a folder every time it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	job := backup.Job{
		Source:      args[0],
		Destination: backupDest,
		Level:       levelOrDefault(backupLevel),
		ExcludeTemp: backupExcludeTemp,
		Encrypt:     backupEncrypt,
		Upload:      backupUpload,
		Target:      backupTarget,
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
	runner := watch.NewRunner(orch, job, host)

	w, err := watch.NewWatcher(64, runner.Ignore)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Watch(job.Source); err != nil {
		return err
	}

	logger.Log.Info("watching for changes",
		zap.String("source", job.Source),
		zap.Duration("debounce", cfg.WatchDebounce))
	fmt.Fprintf(os.Stderr, "watching %s, press Ctrl+C to stop\n", job.Source)

	ctx, stop := signalContext()
	defer stop()

	changes := watch.Filter(w.Changes(), cfg.WatchIgnore)
	changes = watch.NewChecksumFilter().Run(changes)
	runner.Run(ctx, watch.Debounce(changes, cfg.WatchDebounce))

	logger.Log.Info("watch stopped",
		zap.Int64("backups", runner.Started()),
		zap.Int64("skipped", runner.Skipped()))
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&backupDest, "dest", "", "archive path (default: backup.zip next to the source folder)")
	watchCmd.Flags().StringVar(&backupLevel, "level", "", "compression level: low, medium or high")
	watchCmd.Flags().BoolVar(&backupExcludeTemp, "exclude-temp", false, "skip temporary files (.tmp, .log, .iso)")
	watchCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "encrypt the archive with AES-256")
	watchCmd.Flags().BoolVar(&backupPasswordStdin, "password-stdin", false, "read the archive password from stdin")
	watchCmd.Flags().BoolVar(&backupUpload, "upload", false, "upload each archive when it is written")
	watchCmd.Flags().StringVar(&backupTarget, "target", "", "upload target: gdrive, dropbox or s3")
	rootCmd.AddCommand(watchCmd)
}
