package filter

import (
	"context"
	"os"

	"github.com/osa030/cassette/internal/domain/track"
	"github.com/osa030/cassette/internal/infra/config"
)

// ReadableFileFilter rejects tracks whose file disappeared between
// resolution and insertion.
type ReadableFileFilter struct{}

func (f *ReadableFileFilter) Name() string {
	return "readable_file_filter"
}

func (f *ReadableFileFilter) Description() string {
	return "Checks that the track's file still exists and is a regular file"
}

func (f *ReadableFileFilter) ReturnCodes() []string {
	return []string{config.MsgNonexistingFile}
}

func (f *ReadableFileFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *ReadableFileFilter) Check(ctx context.Context, candidate track.Track, existing []track.Track) Result {
	info, err := os.Stat(candidate.FilePath)
	if err != nil || !info.Mode().IsRegular() {
		return Reject(config.MsgNonexistingFile)
	}
	return Accept()
}

func init() {
	Register("readable_file_filter", func() Filter {
		return &ReadableFileFilter{}
	})
}
