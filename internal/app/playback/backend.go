package playback

import (
	"time"

	"github.com/osa030/cassette/internal/domain/track"
)

// Backend creates audio-resource handles.
type Backend interface {
	// Open creates a handle bound to the file at path. The handle starts
	// stopped at position zero and reports asynchronous events on events
	// until it is closed.
	Open(path string, events chan<- Event) (Handle, error)
}

// Handle is a live audio resource bound to exactly one file.
type Handle interface {
	Play() error
	Pause() error
	// Stop halts output and rewinds to the start.
	Stop() error
	Seek(position time.Duration) error
	// SetVolume sets the output gain in [0, 1].
	SetVolume(volume float64)
	Position() time.Duration
	// Duration returns the total length, or 0 while unknown.
	Duration() time.Duration
	// Close releases the resource. It is synchronous and idempotent.
	Close() error
}

// PlaylistStore loads and saves playlists as ordered file paths.
type PlaylistStore interface {
	Load(name string) ([]string, error)
	Save(paths []string, name string, append bool) error
}

// TrackResolver turns file paths into tracks.
type TrackResolver interface {
	ResolveAll(paths []string) []track.Track
	ResolveTrack(path string) (track.Track, bool)
}

// Notifier receives user-facing message codes.
type Notifier interface {
	Notify(code string, args ...string)
}

// Hooks are UI callbacks invoked after state changes. They run outside the
// controller lock and may call back into the controller.
type Hooks struct {
	OnProgress   func() // Position or transport state changed
	OnEndOfTrack func() // A track ended and the selection advanced
}
