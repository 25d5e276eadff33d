package playliststore

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/cassette/internal/app/metadata"
)

// Source yields track paths for the aggregate playlist.
type Source interface {
	// Paths returns the paths this source contributes, in order.
	Paths() ([]string, error)

	// Name returns the source name used in logs.
	Name() string
}

// SourceChain concatenates the paths of several sources.
type SourceChain struct {
	sources []Source
}

// NewSourceChain creates a new source chain.
func NewSourceChain(sources ...Source) *SourceChain {
	return &SourceChain{sources: sources}
}

// Paths collects paths from every source in order, dropping duplicates.
// A failing source is logged and skipped.
func (c *SourceChain) Paths() []string {
	var all []string
	for i, src := range c.sources {
		paths, err := src.Paths()
		if err != nil {
			zlog.Warn().Msgf("playliststore: source failed, skipping: index=%d source=%s error=%v", i+1, src.Name(), err)
			continue
		}
		zlog.Debug().Msgf("playliststore: source returned paths: source=%s count=%d", src.Name(), len(paths))
		all = append(all, paths...)
	}
	return lo.Uniq(all)
}

// fileSource reads one playlist file.
type fileSource struct {
	path string
}

func (s fileSource) Name() string {
	return "file:" + filepath.Base(s.path)
}

func (s fileSource) Paths() ([]string, error) {
	return readPlaylistFile(s.path)
}

// dirSource lists the supported audio files directly inside a directory.
type dirSource struct {
	dir string
}

func (s dirSource) Name() string {
	return "dir:" + s.dir
}

func (s dirSource) Paths() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", s.dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !metadata.IsSupportedFileType(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// readPlaylistFile returns the non-blank, non-comment lines of path.
// Relative entries are resolved against the file's directory.
func readPlaylistFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return paths, nil
}
