package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"backtomatic/internal/db"
	"backtomatic/internal/logger"
	"backtomatic/internal/model"
	"backtomatic/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyN      int
	historyFailed bool
	historyStats  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyStats {
			return printStats()
		}

		records, err := fetchHistory(historyN, historyFailed)
		if err != nil {
			logger.Log.Debug("daemon unavailable, reading local history", zap.Error(err))

			repo := repository.NewHistoryRepository(db.DB)
			if historyFailed {
				records, err = repo.GetFailed()
			} else {
				records, err = repo.GetRecent(historyN)
			}
			if err != nil {
				return err
			}
		}

		if len(records) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range records {
			status := "✓"
			switch r.Status {
			case model.StatusFailed:
				status = "✗"
			case model.StatusCancelled:
				status = "-"
			}

			fmt.Printf("%s [%s] %-6s %-8s %s\n",
				status,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Kind,
				humanize.Bytes(uint64(r.Bytes)),
				r.Source,
			)
			if r.RemoteID != "" {
				fmt.Printf("    %s: %s\n", r.Target, r.RemoteID)
			}
			if r.ErrMsg != "" {
				fmt.Printf("    %s\n", r.ErrMsg)
			}
		}

		return nil
	},
}

func printStats() error {
	var stats repository.Stats
	if err := getDaemon("/history/stats", &stats); err != nil {
		logger.Log.Debug("daemon unavailable, reading local history", zap.Error(err))

		stats, err = repository.NewHistoryRepository(db.DB).GetStats()
		if err != nil {
			return err
		}
	}

	fmt.Printf("total: %d  success: %d  failed: %d  cancelled: %d\n",
		stats.Total, stats.Success, stats.Failed, stats.Cancelled)
	return nil
}

func fetchHistory(n int, failed bool) ([]model.BackupRecord, error) {
	path := fmt.Sprintf("/history?n=%d", n)
	if failed {
		path += "&failed=true"
	}

	var records []model.BackupRecord
	if err := getDaemon(path, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func getDaemon(path string, v any) error {
	resp, err := http.Get(daemonURL(path))
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon answered %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}

	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "show only failed backups")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show totals per outcome")
	rootCmd.AddCommand(historyCmd)
}
