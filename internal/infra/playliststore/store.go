// Package playliststore persists playlists as text files, one track path
// per line.
package playliststore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/cassette/internal/domain/playlist"
	"github.com/osa030/cassette/internal/infra/config"
)

// Extension is the file extension of stored playlists.
const Extension = ".txt"

// selfWriteWindow is how long the watcher ignores changes caused by Save.
const selfWriteWindow = time.Second

// ErrInvalidName is returned for names that cannot be used as file names.
var ErrInvalidName = errors.New("invalid playlist name")

// Store reads and writes playlists under a directory.
type Store struct {
	playlistsDir string
	tracksDir    string

	mu     sync.Mutex
	writes map[string]time.Time // last Save per playlist name
}

// New creates a store for the library directories in cfg.
func New(cfg config.LibraryConfig) *Store {
	return &Store{
		playlistsDir: cfg.PlaylistsDir,
		tracksDir:    cfg.TracksDir,
		writes:       make(map[string]time.Time),
	}
}

// Path returns the file backing the named playlist.
func (s *Store) Path(name string) string {
	return filepath.Join(s.playlistsDir, name+Extension)
}

// Load returns the paths of the named playlist in order. A playlist that
// has never been saved is empty. The aggregate playlist "all" combines
// every stored playlist and the audio files in the tracks directory.
func (s *Store) Load(name string) ([]string, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if name == playlist.All {
		return s.aggregate().Paths(), nil
	}

	paths, err := readPlaylistFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			zlog.Debug().Msgf("playliststore: %q has no file yet", name)
			return []string{}, nil
		}
		return nil, errors.Wrapf(err, "failed to load playlist %q", name)
	}
	return paths, nil
}

func (s *Store) aggregate() *SourceChain {
	var sources []Source
	for _, name := range s.storedNames() {
		sources = append(sources, fileSource{path: s.Path(name)})
	}
	sources = append(sources, dirSource{dir: s.tracksDir})
	return NewSourceChain(sources...)
}

// Save writes paths to the named playlist. With appendMode the paths not
// already present are added to the end; otherwise the file is replaced.
func (s *Store) Save(paths []string, name string, appendMode bool) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.playlistsDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", s.playlistsDir)
	}

	content := paths
	if appendMode {
		existing, err := readPlaylistFile(s.Path(name))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to load playlist %q", name)
		}
		content = append(existing, lo.Without(paths, existing...)...)
	}

	if err := writeAtomic(s.Path(name), content); err != nil {
		return errors.Wrapf(err, "failed to save playlist %q", name)
	}

	s.mu.Lock()
	s.writes[name] = time.Now()
	s.mu.Unlock()

	zlog.Debug().Msgf("playliststore: saved %q (%d paths, append=%t)", name, len(content), appendMode)
	return nil
}

// Names returns the stored playlist names, sorted, preceded by "all".
func (s *Store) Names() []string {
	return lo.Uniq(append([]string{playlist.All}, s.storedNames()...))
}

func (s *Store) storedNames() []string {
	entries, err := os.ReadDir(s.playlistsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Warn().Err(err).Msgf("playliststore: failed to list %s", s.playlistsDir)
		}
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(names)
	return names
}

// wroteRecently reports whether name was saved by this store within the
// self-write window.
func (s *Store) wroteRecently(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.writes[name]
	return ok && time.Since(at) < selfWriteWindow
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
