// Package playlist provides the ordered track store and selection-index
// arithmetic used by the playback controller.
package playlist

import (
	"github.com/osa030/cassette/internal/domain/track"
)

// Manager owns an ordered track sequence and the current selection index.
//
// Manager is not safe for concurrent use; the playback controller
// serialises every call.
//
// Duplicate values are allowed. IndexOf always reports the first equal
// track, so after Select(i) on a later duplicate IndexOf of the result
// returns the earlier position rather than i.
type Manager struct {
	tracks []track.Track
	index  int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		tracks: make([]track.Track, 0),
	}
}

// Set replaces the sequence wholesale and resets the index to 0.
func (m *Manager) Set(tracks []track.Track) {
	m.tracks = append(make([]track.Track, 0, len(tracks)), tracks...)
	m.index = 0
}

// Normalize maps any integer into [0, Len()). It returns 0 for an empty
// sequence.
func (m *Manager) Normalize(i int) int {
	n := len(m.tracks)
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// Select returns the track at the normalized position of i and records it
// as current. Negative values count back from the end.
func (m *Manager) Select(i int) (track.Track, bool) {
	if len(m.tracks) == 0 {
		return track.Track{}, false
	}
	m.index = m.Normalize(i)
	return m.tracks[m.index], true
}

// At returns the track at the normalized position of i without changing
// the selection.
func (m *Manager) At(i int) (track.Track, bool) {
	if len(m.tracks) == 0 {
		return track.Track{}, false
	}
	return m.tracks[m.Normalize(i)], true
}

// Index returns the last selected index.
func (m *Manager) Index() int {
	return m.index
}

// Add appends t. No uniqueness check is made here.
func (m *Manager) Add(t track.Track) {
	m.tracks = append(m.tracks, t)
}

// Remove deletes the first track equal to t and reports whether one was
// found.
func (m *Manager) Remove(t track.Track) bool {
	i := track.Index(m.tracks, t)
	if i < 0 {
		return false
	}
	m.tracks = append(m.tracks[:i], m.tracks[i+1:]...)
	return true
}

// Has reports whether the sequence contains t.
func (m *Manager) Has(t track.Track) bool {
	return track.Index(m.tracks, t) >= 0
}

// IndexOf returns the position of the first track equal to t, or -1.
func (m *Manager) IndexOf(t track.Track) int {
	return track.Index(m.tracks, t)
}

// IsEmpty reports whether the sequence has no tracks.
func (m *Manager) IsEmpty() bool {
	return len(m.tracks) == 0
}

// Len returns the number of tracks.
func (m *Manager) Len() int {
	return len(m.tracks)
}

// Tracks returns a copy of the sequence.
func (m *Manager) Tracks() []track.Track {
	result := make([]track.Track, len(m.tracks))
	copy(result, m.tracks)
	return result
}
