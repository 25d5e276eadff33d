//go:build (linux && cgo) || windows || darwin

package audio

import (
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/infra/config"
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// SpeakerBackend plays files through the system audio device.
type SpeakerBackend struct {
	sampleRate       beep.SampleRate
	progressInterval time.Duration
}

func newSpeakerBackend(cfg config.AudioConfig, progressInterval time.Duration) (playback.Backend, error) {
	sampleRate := beep.SampleRate(cfg.SampleRate)
	speakerOnce.Do(func() {
		buffer := sampleRate.N(time.Duration(cfg.BufferMs) * time.Millisecond)
		speakerErr = speaker.Init(sampleRate, buffer)
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialize speaker")
	}

	if progressInterval <= 0 {
		progressInterval = 500 * time.Millisecond
	}
	zlog.Info().Msgf("audio: speaker initialized at %d Hz", cfg.SampleRate)
	return &SpeakerBackend{sampleRate: sampleRate, progressInterval: progressInterval}, nil
}

// Open implements playback.Backend.
func (b *SpeakerBackend) Open(path string, events chan<- playback.Event) (playback.Handle, error) {
	d, err := decode(path)
	if err != nil {
		return nil, err
	}

	var stream beep.Streamer = d.streamer
	if d.format.SampleRate != b.sampleRate {
		stream = beep.Resample(4, d.format.SampleRate, b.sampleRate, d.streamer)
	}

	h := &speakerHandle{
		emitter: newEmitter(events),
		track:   d,
		ctrl:    &beep.Ctrl{Streamer: stream, Paused: true},
	}
	h.volume = &effects.Volume{Streamer: h.ctrl, Base: 2}

	go h.send(playback.Event{Type: playback.EventReady, Source: h})
	go h.tick(b.progressInterval)
	return h, nil
}

type speakerHandle struct {
	emitter

	mu       sync.Mutex
	track    *decoded
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	queued   bool // the stream is on the mixer
	isClosed bool
}

func (h *speakerHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isClosed {
		return nil
	}

	speaker.Lock()
	if h.track.streamer.Position() >= h.track.streamer.Len() {
		if err := h.track.streamer.Seek(0); err != nil {
			speaker.Unlock()
			return errors.Wrap(err, "failed to rewind")
		}
	}
	h.ctrl.Paused = false
	speaker.Unlock()

	if !h.queued {
		h.queued = true
		speaker.Play(beep.Seq(h.volume, beep.Callback(func() {
			// Called from the mixer with the speaker locked.
			go h.finished()
		})))
	}
	return nil
}

func (h *speakerHandle) Pause() error {
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (h *speakerHandle) Stop() error {
	speaker.Lock()
	defer speaker.Unlock()

	h.ctrl.Paused = true
	return errors.Wrap(h.track.streamer.Seek(0), "failed to rewind")
}

func (h *speakerHandle) Seek(position time.Duration) error {
	speaker.Lock()
	n := h.track.format.SampleRate.N(clampPosition(position, h.track.duration()))
	err := h.track.streamer.Seek(min(n, h.track.streamer.Len()))
	speaker.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to seek")
	}

	h.trySend(playback.Event{Type: playback.EventTimeUpdate, Source: h})
	return nil
}

func (h *speakerHandle) SetVolume(volume float64) {
	speaker.Lock()
	defer speaker.Unlock()

	h.volume.Silent = volume <= 0
	if volume > 0 {
		h.volume.Volume = math.Log2(volume)
	}
}

func (h *speakerHandle) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return h.track.format.SampleRate.D(h.track.streamer.Position())
}

func (h *speakerHandle) Duration() time.Duration {
	return h.track.duration()
}

func (h *speakerHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isClosed {
		return nil
	}
	h.isClosed = true
	close(h.closed)

	// Detach from the mixer before releasing the decoder.
	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()

	return h.track.Close()
}

func (h *speakerHandle) finished() {
	h.mu.Lock()
	if h.isClosed {
		h.mu.Unlock()
		return
	}
	h.queued = false
	h.mu.Unlock()

	h.send(playback.Event{Type: playback.EventEndOfMedia, Source: h})
}

// tick reports progress while the handle is playing.
func (h *speakerHandle) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.closed:
			return
		case <-ticker.C:
			speaker.Lock()
			paused := h.ctrl.Paused
			speaker.Unlock()
			if !paused {
				h.trySend(playback.Event{Type: playback.EventTimeUpdate, Source: h})
			}
		}
	}
}
