package playliststore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/metadata"
	"github.com/osa030/cassette/internal/domain/playlist"
)

const debounceDelay = 100 * time.Millisecond

// Watch reports playlists whose content changed on disk until ctx is
// done. A change to a playlist file reports that playlist and "all"; a
// change in the tracks directory reports "all". Changes made through
// Save are not reported. onChange runs on a timer goroutine.
func (s *Store) Watch(ctx context.Context, onChange func(name string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	watched := 0
	for _, dir := range []string{s.playlistsDir, s.tracksDir} {
		if _, err := os.Stat(dir); err != nil {
			zlog.Debug().Msgf("playliststore: not watching %s: %v", dir, err)
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		watched++
	}
	if watched == 0 {
		_ = watcher.Close()
		return errors.New("no library directory to watch")
	}

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	trigger := func(name string) {
		mu.Lock()
		defer mu.Unlock()

		if t, ok := timers[name]; ok {
			t.Stop()
		}
		timers[name] = time.AfterFunc(debounceDelay, func() {
			if ctx.Err() == nil {
				onChange(name)
			}
		})
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				for _, name := range s.affected(event.Name) {
					trigger(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zlog.Warn().Err(err).Msg("playliststore: watch error")
			}
		}
	}()

	zlog.Info().Msgf("playliststore: watching %s and %s", s.playlistsDir, s.tracksDir)
	return nil
}

// affected maps a changed file to the playlists whose content it feeds.
func (s *Store) affected(path string) []string {
	dir, file := filepath.Dir(path), filepath.Base(path)

	if sameDir(dir, s.playlistsDir) && filepath.Ext(file) == Extension {
		name := strings.TrimSuffix(file, Extension)
		if s.wroteRecently(name) {
			return nil
		}
		if name == playlist.All {
			return []string{playlist.All}
		}
		return []string{name, playlist.All}
	}
	if sameDir(dir, s.tracksDir) && metadata.IsSupportedFileType(file) {
		return []string{playlist.All}
	}
	return nil
}

func sameDir(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
