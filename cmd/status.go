package cmd

import (
	"fmt"

	"backtomatic/internal/model"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Busy bool                `json:"busy"`
			Jobs []model.JobSnapshot `json:"jobs"`
		}

		if err := getDaemon("/status", &result); err != nil {
			return err
		}

		state := "idle"
		if result.Busy {
			state = "backup running"
		}
		fmt.Printf("daemon: %s\n", state)

		if len(result.Jobs) == 0 {
			fmt.Println("no jobs yet")
			return nil
		}

		fmt.Printf("%-36s %-7s %-8s %-20s %s\n", "JOB", "KIND", "STATE", "PROGRESS", "SOURCE")

		for _, snap := range result.Jobs {
			jobState := "done"
			switch {
			case snap.Running:
				jobState = "running"
			case snap.Err != "":
				jobState = "failed"
			}

			fmt.Printf("%-36s %-7s %-8s %-20s %s\n",
				snap.JobID, snap.Kind, jobState, snap.Label, snap.Source)
			if snap.Err != "" {
				fmt.Printf("    %s\n", snap.Err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
