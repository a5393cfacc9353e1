package state

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"relaycode/internal/logx"
)

const watchDebounce = 200 * time.Millisecond

// FixtureWatcher reports edits to the fixtures file. Editors often replace
// files by rename, so the parent directory is watched and events are
// filtered by name.
type FixtureWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan struct{}
	log     *logx.Logger
}

func WatchFixtures(ctx context.Context, path string, log *logx.Logger) (*FixtureWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	fw := &FixtureWatcher{
		path:    filepath.Clean(path),
		watcher: w,
		changes: make(chan struct{}, 1),
		log:     log,
	}
	go fw.loop(ctx)
	return fw, nil
}

// Changes receives one value per debounced burst of writes. It is closed
// when the watcher stops.
func (fw *FixtureWatcher) Changes() <-chan struct{} { return fw.changes }

func (fw *FixtureWatcher) Close() error { return fw.watcher.Close() }

func (fw *FixtureWatcher) loop(ctx context.Context) {
	defer close(fw.changes)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			_ = fw.watcher.Close()
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warnf("state: fixture watcher: %v", err)
		case <-fire:
			fire = nil
			select {
			case fw.changes <- struct{}{}:
			default:
			}
		}
	}
}
