package playback

// EventType represents a backend event type.
type EventType int

const (
	EventReady      EventType = iota // Handle finished loading and can report its duration
	EventTimeUpdate                  // Playback position advanced
	EventEndOfMedia                  // Playback reached the end of the track
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventTimeUpdate:
		return "time_update"
	case EventEndOfMedia:
		return "end_of_media"
	default:
		return "unknown"
	}
}

// Event is sent by a Handle on the channel it was opened with.
type Event struct {
	Type   EventType
	Source Handle // Handle that emitted the event
}
