package audio

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/playback"
)

// clockResolution is how often a silent handle checks for end of media.
const clockResolution = 25 * time.Millisecond

// SilentBackend decodes files for their duration and then plays them
// against the wall clock without producing sound.
type SilentBackend struct {
	progressInterval time.Duration
}

// NewSilentBackend creates a silent backend.
func NewSilentBackend(progressInterval time.Duration) *SilentBackend {
	if progressInterval <= 0 {
		progressInterval = 500 * time.Millisecond
	}
	return &SilentBackend{progressInterval: progressInterval}
}

// Open implements playback.Backend.
func (b *SilentBackend) Open(path string, events chan<- playback.Event) (playback.Handle, error) {
	d, err := decode(path)
	if err != nil {
		return nil, err
	}
	duration := d.duration()
	if err := d.Close(); err != nil {
		zlog.Debug().Err(err).Msgf("audio: failed to close decoder for %s", path)
	}

	h := &silentHandle{
		emitter:  newEmitter(events),
		duration: duration,
		interval: b.progressInterval,
	}
	go h.send(playback.Event{Type: playback.EventReady, Source: h})
	return h, nil
}

type silentHandle struct {
	emitter

	mu        sync.Mutex
	duration  time.Duration
	interval  time.Duration
	offset    time.Duration // position at the last start, pause or seek
	startedAt time.Time     // zero unless running
	cancel    context.CancelFunc
	volume    float64
	isClosed  bool
}

func (h *silentHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isClosed || h.cancel != nil {
		return nil
	}
	if h.offset >= h.duration {
		h.offset = 0
	}
	h.startLocked()
	return nil
}

func (h *silentHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.offset = h.positionLocked()
	h.haltLocked()
	return nil
}

func (h *silentHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.haltLocked()
	h.offset = 0
	return nil
}

func (h *silentHandle) Seek(position time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	running := h.cancel != nil
	h.haltLocked()
	h.offset = clampPosition(position, h.duration)
	if running {
		h.startLocked()
	}
	h.trySend(playback.Event{Type: playback.EventTimeUpdate, Source: h})
	return nil
}

func (h *silentHandle) SetVolume(volume float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
}

func (h *silentHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *silentHandle) Duration() time.Duration {
	return h.duration
}

func (h *silentHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isClosed {
		return nil
	}
	h.isClosed = true
	h.haltLocked()
	close(h.closed)
	return nil
}

func (h *silentHandle) positionLocked() time.Duration {
	if h.startedAt.IsZero() {
		return h.offset
	}
	return clampPosition(h.offset+toWallTime(time.Now()).Sub(h.startedAt), h.duration)
}

func (h *silentHandle) haltLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.startedAt = time.Time{}
}

// startLocked runs the wall clock from the current offset until the end of
// the track or until halted.
func (h *silentHandle) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.startedAt = toWallTime(time.Now())
	endTime := h.startedAt.Add(h.duration - h.offset)

	go func() {
		ticker := time.NewTicker(min(clockResolution, h.interval))
		defer ticker.Stop()
		lastUpdate := time.Now()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).Before(endTime) {
					if time.Since(lastUpdate) >= h.interval {
						lastUpdate = time.Now()
						h.trySend(playback.Event{Type: playback.EventTimeUpdate, Source: h})
					}
					continue
				}

				h.mu.Lock()
				if ctx.Err() != nil {
					h.mu.Unlock()
					return
				}
				h.offset = h.duration
				h.cancel = nil
				h.startedAt = time.Time{}
				h.mu.Unlock()
				cancel()

				h.send(playback.Event{Type: playback.EventEndOfMedia, Source: h})
				return
			}
		}
	}()
}

// toWallTime returns t with the monotonic clock reading stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
