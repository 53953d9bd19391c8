package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pagepilot/pagepilot/internal/logging"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 200 * time.Millisecond

// Watch reloads the config file on change and invokes onChange with the
// newly resolved config. Blocks until ctx is done. The watch is on the
// containing directory so atomic-rename saves are seen.
func Watch(ctx context.Context, path string, onChange func(Resolved)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(path)

	var timer *time.Timer
	reload := func() {
		c, err := Load(path)
		if err != nil {
			logging.Warnf("config reload skipped: %v", err)
			return
		}
		r, err := c.Resolve()
		if err != nil {
			logging.Warnf("config reload skipped: %v", err)
			return
		}
		logging.Infof("config reloaded from %s", path)
		onChange(r)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("config watcher error: %v", err)
		}
	}
}
