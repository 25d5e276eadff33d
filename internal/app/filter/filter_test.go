package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cassette/internal/domain/track"
	"github.com/osa030/cassette/internal/infra/config"
)

type stubFilter struct {
	name   string
	result Result
	calls  int
}

func (f *stubFilter) Name() string { return f.name }
func (f *stubFilter) Description() string { return "stub" }
func (f *stubFilter) ReturnCodes() []string { return []string{f.result.Code} }
func (f *stubFilter) ValidateConfig(settings map[string]any) error { return nil }
func (f *stubFilter) Check(ctx context.Context, candidate track.Track, existing []track.Track) Result {
	f.calls++
	return f.result
}

func TestChain_Execute(t *testing.T) {
	t.Run("empty chain accepts", func(t *testing.T) {
		result := NewChain().Execute(context.Background(), track.Track{}, nil)
		assert.True(t, result.Accepted)
	})

	t.Run("first rejection stops the chain", func(t *testing.T) {
		first := &stubFilter{name: "first", result: Accept()}
		second := &stubFilter{name: "second", result: Reject("nope")}
		third := &stubFilter{name: "third", result: Accept()}

		chain := NewChain(first, second)
		chain.Add(third)

		result := chain.Execute(context.Background(), track.Track{}, nil)
		assert.False(t, result.Accepted)
		assert.Equal(t, "nope", result.Code)
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 1, second.calls)
		assert.Equal(t, 0, third.calls)
		assert.Len(t, chain.Filters(), 3)
	})
}

func TestNewChainFromConfig(t *testing.T) {
	t.Run("enabled filters only, in name order", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"readable_file_filter":   {Enabled: true},
			"duplicate_track_filter": {Enabled: true, Settings: map[string]any{"match": "normalized"}},
		}}

		chain, err := NewChainFromConfig(cfg)
		require.NoError(t, err)
		require.Len(t, chain.Filters(), 2)
		assert.Equal(t, "duplicate_track_filter", chain.Filters()[0].Name())
		assert.Equal(t, "readable_file_filter", chain.Filters()[1].Name())

		dup := chain.Filters()[0].(*DuplicateTrackFilter)
		assert.Equal(t, MatchNormalized, dup.config.Match)
	})

	t.Run("disabled filters are skipped", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: false},
		}}
		chain, err := NewChainFromConfig(cfg)
		require.NoError(t, err)
		assert.Empty(t, chain.Filters())
	})

	t.Run("unknown filter", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"no_such_filter": {Enabled: true},
		}}
		_, err := NewChainFromConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no_such_filter")
	})

	t.Run("invalid settings", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true, Settings: map[string]any{"match": "fuzzy"}},
		}}
		_, err := NewChainFromConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate_track_filter")
	})
}

func TestRegistry(t *testing.T) {
	registered := GetRegistered()
	for _, name := range []string{"duplicate_track_filter", "readable_file_filter"} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
		assert.NotEmpty(t, f.ReturnCodes())
	}
}

func TestReadableFileFilter_Check(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp3")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))

	tests := []struct {
		name         string
		path         string
		wantAccepted bool
	}{
		{name: "existing file", path: present, wantAccepted: true},
		{name: "missing file", path: filepath.Join(dir, "missing.mp3"), wantAccepted: false},
		{name: "directory", path: dir, wantAccepted: false},
	}

	f := &ReadableFileFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), track.Track{FilePath: tt.path}, nil)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, config.MsgNonexistingFile, result.Code)
			}
		})
	}
}
