package configwatcher

import (
	"context"
	"path/filepath"
	"time"

	"commsense_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounce = time.Second

// Reloader is called with the watched path after the file settles.
type Reloader func(path string) error

// Watch calls reload whenever the file at path changes, until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are picked up too. Bursts of events within a second trigger one reload.
func Watch(ctx context.Context, path string, reload Reloader) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return err
	}

	go loop(ctx, watcher, absPath, reload)
	return nil
}

func loop(ctx context.Context, watcher *fsnotify.Watcher, absPath string, reload Reloader) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}
		case <-timer.C:
			if err := reload(absPath); err != nil {
				logger.Log.Error("Failed to reload config", zap.String("path", absPath), zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", absPath))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
