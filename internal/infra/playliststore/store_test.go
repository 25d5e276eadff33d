package playliststore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cassette/internal/infra/config"
)

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	root := t.TempDir()
	tracks := filepath.Join(root, "tracks")
	playlists := filepath.Join(root, "playlists")
	require.NoError(t, os.MkdirAll(tracks, 0o755))
	return New(config.LibraryConfig{TracksDir: tracks, PlaylistsDir: playlists}), tracks, playlists
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func TestStore_LoadMissingPlaylist(t *testing.T) {
	s, _, _ := newTestStore(t)

	paths, err := s.Load("road trip")
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.NotNil(t, paths)
}

func TestStore_SaveAndLoad(t *testing.T) {
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Save([]string{"/music/a.mp3", "/music/b.wav"}, "mix", false))
	paths, err := s.Load("mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/a.mp3", "/music/b.wav"}, paths)

	// Append skips paths already present.
	require.NoError(t, s.Save([]string{"/music/b.wav", "/music/c.mp3"}, "mix", true))
	paths, err = s.Load("mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/a.mp3", "/music/b.wav", "/music/c.mp3"}, paths)

	// Overwrite replaces everything.
	require.NoError(t, s.Save([]string{"/music/c.mp3"}, "mix", false))
	paths, err = s.Load("mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/c.mp3"}, paths)

	info, err := os.Stat(s.Path("mix"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestStore_AppendCreatesFile(t *testing.T) {
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Save([]string{"/music/a.mp3"}, "new", true))
	paths, err := s.Load("new")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/a.mp3"}, paths)
}

func TestStore_LoadParsesLines(t *testing.T) {
	s, _, playlists := newTestStore(t)
	require.NoError(t, os.MkdirAll(playlists, 0o755))
	content := "# favourites\n\n  /abs/one.mp3  \nrel/two.wav\n"
	require.NoError(t, os.WriteFile(filepath.Join(playlists, "fav.txt"), []byte(content), 0o644))

	paths, err := s.Load("fav")
	require.NoError(t, err)
	assert.Equal(t, []string{"/abs/one.mp3", filepath.Join(playlists, "rel", "two.wav")}, paths)
}

func TestStore_LoadAll(t *testing.T) {
	s, tracks, _ := newTestStore(t)
	touch(t, filepath.Join(tracks, "b.wav"))
	touch(t, filepath.Join(tracks, "a.mp3"))
	touch(t, filepath.Join(tracks, "cover.jpg"))
	require.NoError(t, os.Mkdir(filepath.Join(tracks, "sub.mp3"), 0o755))

	require.NoError(t, s.Save([]string{"/x/one.mp3", filepath.Join(tracks, "b.wav")}, "alpha", false))
	require.NoError(t, s.Save([]string{"/x/two.mp3", "/x/one.mp3"}, "beta", false))

	paths, err := s.Load("all")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/x/one.mp3",
		filepath.Join(tracks, "b.wav"),
		"/x/two.mp3",
		filepath.Join(tracks, "a.mp3"),
	}, paths)
}

func TestStore_LoadAllWithoutDirectories(t *testing.T) {
	root := t.TempDir()
	s := New(config.LibraryConfig{
		TracksDir:    filepath.Join(root, "none"),
		PlaylistsDir: filepath.Join(root, "nothing"),
	})

	paths, err := s.Load("all")
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Equal(t, []string{"all"}, s.Names())
}

func TestStore_Names(t *testing.T) {
	s, _, playlists := newTestStore(t)
	require.NoError(t, s.Save(nil, "zeta", false))
	require.NoError(t, s.Save(nil, "alpha", false))
	require.NoError(t, s.Save(nil, "all", false))
	require.NoError(t, os.WriteFile(filepath.Join(playlists, "notes.md"), nil, 0o644))

	assert.Equal(t, []string{"all", "alpha", "zeta"}, s.Names())
}

func TestStore_InvalidNames(t *testing.T) {
	s, _, _ := newTestStore(t)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := s.Load(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, s.Save(nil, name, false), ErrInvalidName, name)
	}
}

type stubSource struct {
	name  string
	paths []string
	err   error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Paths() ([]string, error) { return s.paths, s.err }

func TestSourceChain(t *testing.T) {
	chain := NewSourceChain(
		stubSource{name: "first", paths: []string{"a", "b"}},
		stubSource{name: "broken", err: errors.New("disk on fire")},
		stubSource{name: "second", paths: []string{"b", "c", "a"}},
	)

	assert.Equal(t, []string{"a", "b", "c"}, chain.Paths())
	assert.Empty(t, NewSourceChain().Paths())
}

func TestStore_Affected(t *testing.T) {
	s, tracks, playlists := newTestStore(t)

	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"playlist file", filepath.Join(playlists, "mix.txt"), []string{"mix", "all"}},
		{"aggregate file", filepath.Join(playlists, "all.txt"), []string{"all"}},
		{"temp file", filepath.Join(playlists, "mix.txt.1234"), nil},
		{"track", filepath.Join(tracks, "song.mp3"), []string{"all"}},
		{"non-audio track", filepath.Join(tracks, "cover.jpg"), nil},
		{"elsewhere", "/tmp/mix.txt", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.affected(tt.path))
		})
	}

	require.NoError(t, s.Save(nil, "mix", false))
	assert.Nil(t, s.affected(filepath.Join(playlists, "mix.txt")))
}

func TestStore_Watch(t *testing.T) {
	s, tracks, playlists := newTestStore(t)
	require.NoError(t, os.MkdirAll(playlists, 0o755))

	var (
		mu      sync.Mutex
		changed = map[string]int{}
	)
	require.NoError(t, s.Watch(t.Context(), func(name string) {
		mu.Lock()
		defer mu.Unlock()
		changed[name]++
	}))

	require.NoError(t, os.WriteFile(filepath.Join(playlists, "mix.txt"), []byte("/a.mp3\n"), 0o644))
	touch(t, filepath.Join(tracks, "new.wav"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed["mix"] >= 1 && changed["all"] >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_WatchNoDirectories(t *testing.T) {
	root := t.TempDir()
	s := New(config.LibraryConfig{
		TracksDir:    filepath.Join(root, "none"),
		PlaylistsDir: filepath.Join(root, "nothing"),
	})

	err := s.Watch(t.Context(), func(string) {})
	require.Error(t, err)
}
