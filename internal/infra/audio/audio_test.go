package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/infra/config"
)

const testRate = beep.SampleRate(44100)

// writeSilence writes a WAV file of silence lasting d.
func writeSilence(t *testing.T, name string, d time.Duration) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(testRate.N(d)), format))
	return path
}

func waitEvent(t *testing.T, events <-chan playback.Event, want playback.EventType) playback.Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == want {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
		}
	}
}

func TestDecode(t *testing.T) {
	path := writeSilence(t, "tone.wav", 100*time.Millisecond)

	d, err := decode(path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, testRate, d.format.SampleRate)
	assert.InDelta(t, float64(100*time.Millisecond), float64(d.duration()), float64(time.Millisecond))
}

func TestDecode_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := decode(filepath.Join(dir, "song.flac"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = decode(filepath.Join(dir, "missing.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wave file"), 0o644))
	_, err = decode(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestNew(t *testing.T) {
	backend, err := New(config.AudioConfig{Backend: BackendSilent}, 100*time.Millisecond)
	require.NoError(t, err)
	assert.IsType(t, &SilentBackend{}, backend)

	_, err = New(config.AudioConfig{Backend: "alsa"}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown audio backend "alsa"`)
}

func TestSilentHandle_PlaysToEnd(t *testing.T) {
	path := writeSilence(t, "short.wav", 100*time.Millisecond)
	events := make(chan playback.Event, 16)

	h, err := NewSilentBackend(20*time.Millisecond).Open(path, events)
	require.NoError(t, err)
	defer h.Close()

	ready := waitEvent(t, events, playback.EventReady)
	assert.Equal(t, h, ready.Source)
	assert.Zero(t, h.Position())

	require.NoError(t, h.Play())
	end := waitEvent(t, events, playback.EventEndOfMedia)
	assert.Equal(t, h, end.Source)
	assert.Equal(t, h.Duration(), h.Position())

	// Playing again after the end starts over.
	require.NoError(t, h.Play())
	assert.Less(t, h.Position(), h.Duration())
	waitEvent(t, events, playback.EventEndOfMedia)
}

func TestSilentHandle_Transport(t *testing.T) {
	path := writeSilence(t, "long.wav", 2*time.Second)
	events := make(chan playback.Event, 64)

	h, err := NewSilentBackend(20*time.Millisecond).Open(path, events)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Play())
	waitEvent(t, events, playback.EventTimeUpdate)

	require.NoError(t, h.Pause())
	paused := h.Position()
	assert.Positive(t, paused)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, paused, h.Position())

	require.NoError(t, h.Seek(time.Second))
	assert.Equal(t, time.Second, h.Position())

	require.NoError(t, h.Seek(time.Hour))
	assert.Equal(t, h.Duration(), h.Position())

	require.NoError(t, h.Stop())
	assert.Zero(t, h.Position())

	h.SetVolume(0.5)
}

func TestSilentHandle_CloseUnblocksSenders(t *testing.T) {
	path := writeSilence(t, "short.wav", 50*time.Millisecond)
	events := make(chan playback.Event) // never drained

	h, err := NewSilentBackend(10*time.Millisecond).Open(path, events)
	require.NoError(t, err)
	require.NoError(t, h.Play())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.Close())
		assert.NoError(t, h.Close())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}
