package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backtomatic/internal/archive"
	"backtomatic/internal/auth"
	"backtomatic/internal/backup"
	"backtomatic/internal/db"
	"backtomatic/internal/repository"
	"backtomatic/internal/ui/console"
	"backtomatic/internal/upload"
	"backtomatic/internal/upload/dropbox"
	"backtomatic/internal/upload/gdrive"
	"backtomatic/internal/upload/s3"
)

func consoleHost() *console.Host {
	return console.New(os.Stdin, os.Stderr)
}

// providerOptions enables the browser consent flow only for commands run by
// a user; the daemon has to rely on stored tokens.
func providerOptions(host backup.Host, interactive bool) []auth.Option {
	opts := []auth.Option{auth.WithConsentTimeout(cfg.ConsentTimeout)}
	if interactive {
		opts = append(opts,
			auth.WithConsent(auth.PrintConsent),
			auth.WithSecretSelector(host.SelectFile))
	}

	return opts
}

func newUploader(host backup.Host, interactive bool) *upload.Uploader {
	store := auth.NewStore(cfg.CredentialsDir)
	opts := providerOptions(host, interactive)

	return upload.New(upload.Remotes(
		gdrive.New(auth.NewGDrive(store, opts...), cfg.GDriveFolder, cfg.ChunkSize),
		dropbox.New(auth.NewDropbox(store, opts...), cfg.DropboxFolder, cfg.ChunkSize),
		s3.New(cfg.S3, cfg.ChunkSize),
	), cfg.Target)
}

func newOrchestrator(uploader *upload.Uploader) *backup.Orchestrator {
	var history backup.Recorder
	if db.DB != nil {
		history = repository.NewHistoryRepository(db.DB)
	}

	return backup.New(archive.NewBuilder(), uploader, history, backup.Options{
		EventBuffer:    cfg.EventBuffer,
		TempExtensions: cfg.TempExtensions,
	})
}

func newProvider(name string, host backup.Host) (*auth.Provider, error) {
	store := auth.NewStore(cfg.CredentialsDir)
	opts := providerOptions(host, true)

	switch name {
	case auth.GDriveName:
		return auth.NewGDrive(store, opts...), nil
	case auth.DropboxName:
		return auth.NewDropbox(store, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want %s or %s)", name, auth.GDriveName, auth.DropboxName)
	}
}

func levelOrDefault(level string) archive.Level {
	if level == "" {
		level = cfg.DefaultLevel
	}

	return archive.ParseLevel(level)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", archive.ErrMissingPassword
	}

	return password, nil
}
