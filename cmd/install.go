package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"backtomatic/internal/autostart"

	"github.com/spf13/cobra"
)

var (
	installDest        string
	installLevel       string
	installExcludeTemp bool
	installUpload      bool
	installTarget      string
)

var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Register a folder watch to run on boot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		source, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}

		watchArgs := []string{"watch", source}
		if installDest != "" {
			dest, err := filepath.Abs(installDest)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", installDest, err)
			}
			watchArgs = append(watchArgs, "--dest", dest)
		}
		if installLevel != "" {
			watchArgs = append(watchArgs, "--level", installLevel)
		}
		if installExcludeTemp {
			watchArgs = append(watchArgs, "--exclude-temp")
		}
		if installUpload {
			watchArgs = append(watchArgs, "--upload")
		}
		if installTarget != "" {
			watchArgs = append(watchArgs, "--target", installTarget)
		}

		as := autostart.New()
		if err := as.Install(execPath, watchArgs); err != nil {
			return err
		}

		fmt.Printf("watch on %s registered for autostart\n", source)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installDest, "dest", "", "archive path (default: backup.zip next to the source folder)")
	installCmd.Flags().StringVar(&installLevel, "level", "", "compression level: low, medium or high")
	installCmd.Flags().BoolVar(&installExcludeTemp, "exclude-temp", false, "skip temporary files (.tmp, .log, .iso)")
	installCmd.Flags().BoolVar(&installUpload, "upload", false, "upload each archive when it is written")
	installCmd.Flags().StringVar(&installTarget, "target", "", "upload target: gdrive, dropbox or s3")
	rootCmd.AddCommand(installCmd)
}
