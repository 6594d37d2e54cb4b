package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

const RELOAD_DEBOUNCE_DURATION = 100 * time.Millisecond

// Watch loads the configuration file at path each time it is written or replaced and calls onReload
// with the result of the loading. Watch blocks until ctx is done. Bursts of events are coalesced.
func Watch(ctx context.Context, path string, onReload func(*Config, error)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	//the file is often replaced by a rename, so its directory is watched.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	debounced := debounce.New(RELOAD_DEBOUNCE_DURATION)
	defer debounced(func() {})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounced(func() {
				if ctx.Err() == nil {
					onReload(Load(absPath))
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onReload(nil, err)
		}
	}
}
