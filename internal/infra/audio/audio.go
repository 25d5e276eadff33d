// Package audio provides playback backends built on gopxl/beep.
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/infra/config"
)

// Backend names accepted by New.
const (
	BackendSpeaker = "speaker"
	BackendSilent  = "silent"
)

// ErrUnsupportedFormat is returned when a file cannot be decoded by extension.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// New creates the backend named by cfg.Backend. Handles report
// EventTimeUpdate every progressInterval while playing. A speaker that
// cannot be initialized is replaced by the silent backend.
func New(cfg config.AudioConfig, progressInterval time.Duration) (playback.Backend, error) {
	switch cfg.Backend {
	case BackendSpeaker:
		backend, err := newSpeakerBackend(cfg, progressInterval)
		if err != nil {
			zlog.Warn().Err(err).Msg("audio: speaker unavailable, falling back to silent backend")
			return NewSilentBackend(progressInterval), nil
		}
		return backend, nil
	case BackendSilent:
		zlog.Info().Msg("audio: using silent backend")
		return NewSilentBackend(progressInterval), nil
	default:
		return nil, errors.Newf("unknown audio backend %q", cfg.Backend)
	}
}

// decoded bundles the resources of one opened file.
type decoded struct {
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
}

func (d *decoded) duration() time.Duration {
	return d.format.SampleRate.D(d.streamer.Len())
}

// Close releases the decoder and the file.
func (d *decoded) Close() error {
	err := d.streamer.Close()
	// Decoders may already have closed the file.
	_ = d.file.Close()
	return err
}

func decode(path string) (*decoded, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".wav" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	if ext == ".mp3" {
		streamer, format, err = mp3.Decode(f)
	} else {
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	return &decoded{file: f, streamer: streamer, format: format}, nil
}

// emitter delivers handle events without outliving the handle.
type emitter struct {
	events chan<- playback.Event
	closed chan struct{}
}

func newEmitter(events chan<- playback.Event) emitter {
	return emitter{events: events, closed: make(chan struct{})}
}

// send blocks until the event is queued or the handle is closed.
func (e emitter) send(ev playback.Event) {
	select {
	case e.events <- ev:
	case <-e.closed:
	}
}

// trySend drops the event when the queue is full.
func (e emitter) trySend(ev playback.Event) {
	select {
	case e.events <- ev:
	case <-e.closed:
	default:
	}
}

func clampPosition(position, duration time.Duration) time.Duration {
	return max(0, min(position, duration))
}
