package playback

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cassette/internal/domain/track"
)

type fakeHandle struct {
	mu       sync.Mutex
	path     string
	events   chan<- Event
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64
	closed   bool
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = true
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	return nil
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.position = 0
	return nil
}

func (h *fakeHandle) Seek(position time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = position
	return nil
}

func (h *fakeHandle) SetVolume(volume float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
}

func (h *fakeHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *fakeHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) emit(t EventType) {
	h.events <- Event{Type: t, Source: h}
}

type fakeBackend struct {
	mu      sync.Mutex
	opened  []*fakeHandle
	failing map[string]bool
}

func (b *fakeBackend) Open(path string, events chan<- Event) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing[path] {
		return nil, errors.Newf("cannot decode %s", path)
	}
	h := &fakeHandle{path: path, events: events, duration: 200 * time.Second}
	b.opened = append(b.opened, h)
	return h, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

func (b *fakeBackend) last() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		return nil
	}
	return b.opened[len(b.opened)-1]
}

type saveCall struct {
	paths  []string
	name   string
	append bool
}

type fakeStore struct {
	mu        sync.Mutex
	playlists map[string][]string
	saves     []saveCall
}

func (s *fakeStore) Load(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, ok := s.playlists[name]
	if !ok {
		return nil, errors.Newf("playlist %q not found", name)
	}
	return append([]string(nil), paths...), nil
}

func (s *fakeStore) Save(paths []string, name string, appendMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, saveCall{paths: paths, name: name, append: appendMode})
	return nil
}

func (s *fakeStore) lastSave() saveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

// fakeResolver names tracks after their file, "Artist - Title.wav".
type fakeResolver struct{}

func (fakeResolver) ResolveTrack(path string) (track.Track, bool) {
	if !strings.HasSuffix(path, ".wav") && !strings.HasSuffix(path, ".mp3") {
		return track.Track{}, false
	}
	if _, err := os.Stat(path); err != nil {
		return track.Track{}, false
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	artist, title, ok := strings.Cut(base, " - ")
	if !ok {
		artist, title = "Artist", base
	}
	return track.Track{Name: title, Artist: artist, FilePath: path}, true
}

func (r fakeResolver) ResolveAll(paths []string) []track.Track {
	var tracks []track.Track
	for _, p := range paths {
		if t, ok := r.ResolveTrack(p); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

type notification struct {
	code string
	args []string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(code string, args ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{code: code, args: args})
}

func (n *fakeNotifier) codes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := make([]string, len(n.sent))
	for i, s := range n.sent {
		codes[i] = s.code
	}
	return codes
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fixture struct {
	ctrl     *Controller
	backend  *fakeBackend
	store    *fakeStore
	notifier *fakeNotifier
	dir      string
	paths    []string
}

// newFixture writes the named files into a temp dir and registers them as
// the "all" playlist.
func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte("audio"), 0o644))
	}

	f := &fixture{
		backend:  &fakeBackend{failing: map[string]bool{}},
		store:    &fakeStore{playlists: map[string][]string{"all": paths}},
		notifier: &fakeNotifier{},
		dir:      dir,
		paths:    paths,
	}
	f.ctrl = NewController(Config{
		DefaultVolume:   0.75,
		InitialPlaylist: "all",
		EventBuffer:     16,
	}, Deps{
		Backend:  f.backend,
		Store:    f.store,
		Resolver: fakeResolver{},
		Notifier: f.notifier,
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ctrl.Init(t.Context()))
}

func (f *fixture) current(t *testing.T) track.Track {
	t.Helper()
	cur, ok := f.ctrl.CurrentTrack()
	require.True(t, ok)
	return cur
}
