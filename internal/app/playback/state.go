// Package playback provides the playback state machine that drives an
// audio backend from a playlist selection.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // No output; position rewound or no track selected
	StatePlaying              // Output running
	StatePaused               // Output suspended at the current position
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
