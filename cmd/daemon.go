package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtomatic/internal/daemon"
	"backtomatic/internal/db"
	"backtomatic/internal/logger"
	"backtomatic/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve the local backup API",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	// Nobody is around to answer a consent prompt, so remotes rely on the
	// tokens saved by `backtomatic auth`.
	orch := newOrchestrator(newUploader(nil, false))
	manager := daemon.NewJobManager(orch)

	srv := daemon.NewServer(manager, repository.NewHistoryRepository(db.DB), cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("backtomatic daemon started",
		zap.Int("port", cfg.DaemonPort),
		zap.String("target", cfg.Target))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
