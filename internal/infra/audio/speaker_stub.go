//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/infra/config"
)

func newSpeakerBackend(config.AudioConfig, time.Duration) (playback.Backend, error) {
	return nil, errors.New("speaker output is not available in this build (requires cgo on linux)")
}
