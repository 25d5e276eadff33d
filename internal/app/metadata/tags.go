package metadata

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"
)

type field string

const (
	fieldArtist field = "artist"
	fieldTitle  field = "title"
)

// tagReader reads a single field from an embedded tag container.
type tagReader interface {
	read(path string, f field) (value string, source string)
}

// id3Reader reads ID3v2 first and falls back to the legacy ID3v1 block.
type id3Reader struct{}

func (id3Reader) read(path string, f field) (string, string) {
	file, err := os.Open(path)
	if err != nil {
		zlog.Debug().Msgf("metadata: failed to open %s for tags: %v", path, err)
		return "", ""
	}
	defer file.Close()

	if m, err := readID3v2(file); err != nil {
		zlog.Debug().Msgf("metadata: id3v2 unavailable for %s: %v", path, err)
	} else if value := pick(m, f); value != "" {
		return value, SourceID3v2
	}

	if m, err := readID3v1(file); err != nil {
		zlog.Debug().Msgf("metadata: id3v1 unavailable for %s: %v", path, err)
	} else if value := pick(m, f); value != "" {
		return value, SourceID3v1
	}

	return "", ""
}

// readID3v2 parses the tag at the start of r. Panics from malformed
// frames are converted into errors.
func readID3v2(r io.ReadSeeker) (m tag.Metadata, err error) {
	defer func() {
		if p := recover(); p != nil {
			m, err = nil, errors.Newf("id3v2 parser panic: %v", p)
		}
	}()
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to seek to tag header")
	}
	return tag.ReadID3v2Tags(r)
}

// readID3v1 parses the fixed 128-byte block at the end of r.
func readID3v1(r io.ReadSeeker) (m tag.Metadata, err error) {
	defer func() {
		if p := recover(); p != nil {
			m, err = nil, errors.Newf("id3v1 parser panic: %v", p)
		}
	}()
	return tag.ReadID3v1Tags(r)
}

func pick(m tag.Metadata, f field) string {
	switch f {
	case fieldTitle:
		return strings.TrimSpace(m.Title())
	case fieldArtist:
		if artist := strings.TrimSpace(m.Artist()); artist != "" {
			return artist
		}
		return strings.TrimSpace(m.AlbumArtist())
	default:
		return ""
	}
}
