package bandfloor

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the floors file whenever it changes and hands the new
// Floors to apply. It blocks until ctx is cancelled. The watch is on
// the parent directory so atomic rename-style saves are seen.
func Watch(ctx context.Context, path string, apply func(*Floors)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			evAbs, _ := filepath.Abs(ev.Name)
			if evAbs != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("bandfloor: watch error: %v", err)
		case <-fire:
			floors, err := LoadFile(path)
			if err != nil {
				// Keep serving the previous floors; a bad edit must
				// not drop the configured minimums.
				log.Printf("bandfloor: reload failed, keeping previous floors: %v", err)
				continue
			}
			apply(floors)
		}
	}
}
