package prompts

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the prompt file whenever it changes on disk, until ctx is
// cancelled. The directory is watched rather than the file so that editors
// which replace the file on save are picked up.
func (st *Store) Watch(ctx context.Context) error {
	if st.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	target := filepath.Clean(st.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := st.Reload(); err != nil {
					log.Printf("[prompts] reload %s failed, keeping previous set: %v", target, err)
					continue
				}
				log.Printf("[prompts] reloaded %s", target)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[prompts] watcher error: %v", err)
			}
		}
	}()
	return nil
}
