package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/cassette/internal/domain/track"
	"github.com/osa030/cassette/internal/infra/config"
)

// Duplicate match modes.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
)

// DuplicateTrackConfig holds duplicate_track_filter settings.
type DuplicateTrackConfig struct {
	Match string `mapstructure:"match" default:"exact" validate:"oneof=exact normalized"`
}

// DuplicateTrackFilter rejects tracks the playlist already holds.
// Without this filter enabled, playlists accept duplicates.
//
// exact matches structurally equal tracks. normalized additionally treats
// remasters and alternate versions by the same artist as the same track;
// covers by a different artist are still accepted.
type DuplicateTrackFilter struct {
	config DuplicateTrackConfig
}

// NewDuplicateTrackFilter creates a filter in exact mode.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{config: DuplicateTrackConfig{Match: MatchExact}}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the playlist (optionally ignoring remaster/version suffixes)"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{config.MsgDuplicateTrack}
}

// ValidateConfig decodes, defaults and validates the filter settings.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var cfg DuplicateTrackConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = cfg
	return nil
}

// Check checks if the candidate is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, candidate track.Track, existing []track.Track) Result {
	for _, t := range existing {
		if t == candidate {
			return Reject(config.MsgDuplicateTrack)
		}
		if f.config.Match == MatchNormalized && isSameRecording(t, candidate) {
			return Reject(config.MsgDuplicateTrack)
		}
	}
	return Accept()
}

// isSameRecording reports whether two tracks are versions of the same song
// by the same artist.
func isSameRecording(a, b track.Track) bool {
	if normalizeTrackName(a.Name) != normalizeTrackName(b.Name) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a.Artist), strings.TrimSpace(b.Artist))
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live$`),             // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespace.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
