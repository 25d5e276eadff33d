// Package filter provides the admission chain for tracks added to a
// playlist.
package filter

import (
	"context"

	"github.com/osa030/cassette/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // message code, e.g. "duplicate_track", "nonexisting_file"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter settings.
	ValidateConfig(settings map[string]any) error
	// Check decides whether candidate may join a playlist holding existing.
	Check(ctx context.Context, candidate track.Track, existing []track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
