package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"backtomatic/internal/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Change struct {
	Path string
	Op   fsnotify.Op
	At   time.Time
}

// Watcher reports changes anywhere below a directory. Paths for which
// ignore returns true are dropped.
type Watcher struct {
	fw       *fsnotify.Watcher
	changeCh chan Change
	doneCh   chan struct{}
	ignore   func(path string) bool
}

func NewWatcher(bufferSize int, ignore func(path string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if ignore == nil {
		ignore = func(string) bool { return false }
	}

	return &Watcher{
		fw:       fw,
		changeCh: make(chan Change, bufferSize),
		doneCh:   make(chan struct{}),
		ignore:   ignore,
	}, nil
}

func (w *Watcher) Watch(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(absDir); err != nil {
		return fmt.Errorf("source directory not found: %w", err)
	}

	if err := w.addRecursive(absDir); err != nil {
		return err
	}

	go w.run()

	logger.Log.Info("watcher started",
		zap.String("dir", absDir))
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if err := w.fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Log.Debug("watching directory",
				zap.String("path", path))
		}

		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.changeCh)

	for {
		select {
		case <-w.doneCh:
			logger.Log.Info("watcher stopping")
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}

			if ev.Op == fsnotify.Chmod || w.ignore(ev.Name) {
				continue
			}

			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						logger.Log.Warn("failed to watch new directory",
							zap.String("path", ev.Name),
							zap.Error(err))
					}
				}
			}

			select {
			case w.changeCh <- Change{Path: ev.Name, Op: ev.Op, At: time.Now()}:
			default:
				logger.Log.Debug("change channel is full, dropping change",
					zap.String("path", ev.Name))
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) Changes() <-chan Change {
	return w.changeCh
}

func (w *Watcher) Stop() {
	close(w.doneCh)
	_ = w.fw.Close()
}
