// Package metadata turns audio file paths into displayable tracks.
//
// Metadata is advisory: a track is never rejected because its tags are
// missing or corrupt. Titles and artists are resolved through a chain of
// embedded tags, the file name, and fixed defaults.
package metadata

import (
	"os"
	"path/filepath"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/domain/track"
	"github.com/osa030/cassette/internal/infra/config"
	"github.com/osa030/cassette/internal/infra/metrics"
)

const (
	// DefaultArtist is used when no artist can be resolved.
	DefaultArtist = "Artist"

	// nameSeparator splits "Artist - Title" file names.
	nameSeparator = " - "

	extMP3 = ".mp3"
	extWAV = ".wav"
)

// Sources reported for each resolved field.
const (
	SourceID3v2    = "id3v2"
	SourceID3v1    = "id3v1"
	SourceFilename = "filename"
	SourceDefault  = "default"
)

// Notifier receives user-facing message codes.
type Notifier interface {
	Notify(code string, args ...string)
}

// SupportedExtensions returns the supported file extensions, e.g. ".mp3".
func SupportedExtensions() []string {
	return []string{extMP3, extWAV}
}

// IsSupportedFileType reports whether the file name ends with a supported
// extension. Matching is a case-sensitive suffix check.
func IsSupportedFileType(path string) bool {
	name := filepath.Base(path)
	for _, ext := range SupportedExtensions() {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Resolver resolves tracks from file paths.
type Resolver struct {
	notifier Notifier
	tags     tagReader
}

// NewResolver creates a resolver that reports rejected file types to notifier.
func NewResolver(notifier Notifier) *Resolver {
	return &Resolver{
		notifier: notifier,
		tags:     id3Reader{},
	}
}

// ResolveTrack reads the file at path into a Track. It returns false when
// the path does not exist, cannot be read, or is not a supported type.
func (r *Resolver) ResolveTrack(path string) (track.Track, bool) {
	if path == "" {
		return track.Track{}, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		zlog.Debug().Msgf("metadata: skipping %s: not a regular file", path)
		metrics.MetadataRejectedTotal.WithLabelValues("missing").Inc()
		return track.Track{}, false
	}
	if !isReadable(path) {
		zlog.Debug().Msgf("metadata: skipping %s: not readable", path)
		metrics.MetadataRejectedTotal.WithLabelValues("unreadable").Inc()
		return track.Track{}, false
	}
	if !IsSupportedFileType(path) {
		metrics.MetadataRejectedTotal.WithLabelValues("filetype").Inc()
		if r.notifier != nil {
			r.notifier.Notify(config.MsgWrongFiletype)
		}
		return track.Track{}, false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return track.Track{
		Name:     r.ResolveTitle(abs),
		Artist:   r.ResolveArtist(abs),
		FilePath: abs,
	}, true
}

// ResolveAll resolves paths in order, dropping those that fail.
func (r *Resolver) ResolveAll(paths []string) []track.Track {
	tracks := make([]track.Track, 0, len(paths))
	for _, path := range paths {
		if t, ok := r.ResolveTrack(path); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// ResolveArtist returns the artist for path.
func (r *Resolver) ResolveArtist(path string) string {
	value, source := r.resolve(path, fieldArtist)
	metrics.MetadataResolutionsTotal.WithLabelValues(string(fieldArtist), source).Inc()
	return value
}

// ResolveTitle returns the title for path.
func (r *Resolver) ResolveTitle(path string) string {
	value, source := r.resolve(path, fieldTitle)
	metrics.MetadataResolutionsTotal.WithLabelValues(string(fieldTitle), source).Inc()
	return value
}

func (r *Resolver) resolve(path string, f field) (string, string) {
	name := filepath.Base(path)

	if strings.HasSuffix(name, extMP3) {
		if value, source := r.tags.read(path, f); value != "" {
			return value, source
		}
	}

	if artist, title, ok := strings.Cut(name, nameSeparator); ok {
		value := artist
		if f == fieldTitle {
			value = StripExtension(title)
		}
		if value != "" {
			return value, SourceFilename
		}
	}

	if f == fieldArtist {
		return DefaultArtist, SourceDefault
	}
	return StripExtension(name), SourceDefault
}

// StripExtension removes the final ".suffix" from name. Names without a
// dot are returned unchanged.
func StripExtension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name
	}
	return name[:i]
}

func isReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
