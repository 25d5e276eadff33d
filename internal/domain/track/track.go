// Package track provides the Track domain entity.
package track

import "path/filepath"

// Track represents a playable audio file with its display metadata.
// Track is a comparable value: two tracks with identical fields are
// interchangeable.
type Track struct {
	Name     string // Display title
	Artist   string // Display artist
	FilePath string // Absolute path to the audio file
}

// String returns the "Artist - Name" display form.
func (t Track) String() string {
	return t.Artist + " - " + t.Name
}

// FileName returns the base name of the track's file.
func (t Track) FileName() string {
	return filepath.Base(t.FilePath)
}

// IsZero reports whether t carries no data.
func (t Track) IsZero() bool {
	return t == Track{}
}

// Index returns the position of the first track equal to t, or -1.
func Index(tracks []Track, t Track) int {
	for i, candidate := range tracks {
		if candidate == t {
			return i
		}
	}
	return -1
}
