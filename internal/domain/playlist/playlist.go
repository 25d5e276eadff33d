// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/cassette/internal/domain/track"

// All is the reserved name of the playlist that aggregates every stored
// playlist and the tracks directory.
const All = "all"

// Playlist is a named, ordered sequence of tracks. Insertion order is
// playback order. A playlist only references files; it never owns them.
type Playlist struct {
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in playback order
}

// FilePaths returns the file path of every track, in order.
func (p Playlist) FilePaths() []string {
	paths := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		paths[i] = t.FilePath
	}
	return paths
}

// Len returns the number of tracks.
func (p Playlist) Len() int {
	return len(p.Tracks)
}

// IsAggregate reports whether the playlist is the reserved "all" playlist.
func (p Playlist) IsAggregate() bool {
	return p.Name == All
}
