package cmd

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon, cancelling any running backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := postDaemon("/stop"); err != nil {
			return err
		}

		fmt.Println("daemon stopping")
		return nil
	},
}

func postDaemon(path string) error {
	resp, err := http.Post(daemonURL(path), "application/json", nil)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon answered %s", resp.Status)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
