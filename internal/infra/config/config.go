// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Library  LibraryConfig           `yaml:"library"`
	Playback PlaybackConfig          `yaml:"playback"`
	Audio    AudioConfig             `yaml:"audio"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	Metrics  MetricsConfig           `yaml:"metrics"`
}

// LibraryConfig represents where tracks and playlists live on disk.
type LibraryConfig struct {
	TracksDir    string `yaml:"tracks_dir" default:"tracks" validate:"required"`
	PlaylistsDir string `yaml:"playlists_dir" default:"playlists" validate:"required"`
	NoWatch      bool   `yaml:"no_watch"`
}

// PlaybackConfig represents playback controller configuration.
type PlaybackConfig struct {
	DefaultVolume      float64 `yaml:"default_volume" default:"0.75" validate:"gte=0,lte=1"`
	ProgressIntervalMs int     `yaml:"progress_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	EventBuffer        int     `yaml:"event_buffer" default:"64" validate:"gte=1"`
	InitialPlaylist    string  `yaml:"initial_playlist" default:"all"`
}

// AudioConfig represents the audio output backend configuration.
type AudioConfig struct {
	Backend    string `yaml:"backend" default:"speaker" validate:"oneof=speaker silent"`
	SampleRate int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// MessagesConfig represents user-facing notification templates.
// Templates use {0}, {1}, ... as placeholders.
type MessagesConfig struct {
	SelectedPlaylist string `yaml:"selected_playlist" default:"Selected Playlist: {0}"`
	PlaylistEmpty    string `yaml:"playlist_empty" default:"The selected playlist is empty!"`
	NowPlaying       string `yaml:"now_playing" default:"Now Playing: {0}"`
	Paused           string `yaml:"paused" default:"Paused"`
	Stopped          string `yaml:"stopped" default:"Stopped"`
	Selected         string `yaml:"selected" default:"Selected Track: {0}"`
	NonexistingFile  string `yaml:"nonexisting_file" default:"File not found: {0}"`
	WrongFiletype    string `yaml:"wrong_filetype" default:"Wrong filetype! Supported: .mp3, .wav"`
	AddedTrack       string `yaml:"added_track" default:"Added {0} to the playlist"`
	RemovedTrack     string `yaml:"removed_track" default:"Removed {0} from the playlist"`
	DuplicateTrack   string `yaml:"duplicate_track" default:"The playlist already has this track"`
	DefaultError     string `yaml:"default_error" default:"An error has occurred, see the log for details"`
}

// Message codes understood by MessagesConfig.Get.
const (
	MsgSelectedPlaylist = "selected_playlist"
	MsgPlaylistEmpty    = "playlist_empty"
	MsgNowPlaying       = "now_playing"
	MsgPaused           = "paused"
	MsgStopped          = "stopped"
	MsgSelected         = "selected"
	MsgNonexistingFile  = "nonexisting_file"
	MsgWrongFiletype    = "wrong_filetype"
	MsgAddedTrack       = "added_track"
	MsgRemovedTrack     = "removed_track"
	MsgDuplicateTrack   = "duplicate_track"
	MsgError            = "default_error"
)

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return finish(&cfg)
}

// Default returns a configuration built only from defaults and the
// environment. It is used when no config file exists.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.overrideFromEnv()

	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CASSETTE_TRACKS_DIR"); v != "" {
		c.Library.TracksDir = v
	}
	if v := os.Getenv("CASSETTE_PLAYLISTS_DIR"); v != "" {
		c.Library.PlaylistsDir = v
	}
	if v := os.Getenv("CASSETTE_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("CASSETTE_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = strings.ToLower(v)
	}
}

// Get returns the template for the given message code.
func (m *MessagesConfig) Get(code string) string {
	switch code {
	case MsgSelectedPlaylist:
		return m.SelectedPlaylist
	case MsgPlaylistEmpty:
		return m.PlaylistEmpty
	case MsgNowPlaying:
		return m.NowPlaying
	case MsgPaused:
		return m.Paused
	case MsgStopped:
		return m.Stopped
	case MsgSelected:
		return m.Selected
	case MsgNonexistingFile:
		return m.NonexistingFile
	case MsgWrongFiletype:
		return m.WrongFiletype
	case MsgAddedTrack:
		return m.AddedTrack
	case MsgRemovedTrack:
		return m.RemovedTrack
	case MsgDuplicateTrack:
		return m.DuplicateTrack
	default:
		return m.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Library.TracksDir == c.Library.PlaylistsDir {
		return errors.Newf("tracks_dir and playlists_dir must differ (both %q)", c.Library.TracksDir)
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter, or nil.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
