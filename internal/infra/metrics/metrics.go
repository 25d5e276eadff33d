// Package metrics provides Prometheus metrics for the player.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
)

// Metadata metrics
var (
	MetadataResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_metadata_resolutions_total",
			Help: "Resolved metadata fields by the stage that produced them",
		},
		[]string{"field", "source"},
	)

	MetadataRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_metadata_rejected_total",
			Help: "Paths that could not be turned into tracks",
		},
		[]string{"reason"},
	)
)

// Playback metrics
var (
	PlaybackTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_playback_transitions_total",
			Help: "Playback controller transitions",
		},
		[]string{"transition"},
	)

	PlaybackHandlesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cassette_playback_handles_open",
			Help: "Number of live audio-resource handles",
		},
	)

	PlaybackStaleEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cassette_playback_stale_events_total",
			Help: "Backend events dropped because their handle was already released",
		},
	)
)

// Notification metrics
var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_notifications_total",
			Help: "Notifications sent by message code",
		},
		[]string{"code"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("metrics: serving on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "metrics server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown metrics server")
	}
	return nil
}
