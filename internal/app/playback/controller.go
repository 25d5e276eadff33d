package playback

import (
	"context"
	"math"
	"os"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/filter"
	"github.com/osa030/cassette/internal/app/metadata"
	"github.com/osa030/cassette/internal/app/playlist"
	domainplaylist "github.com/osa030/cassette/internal/domain/playlist"
	"github.com/osa030/cassette/internal/domain/track"
	"github.com/osa030/cassette/internal/infra/config"
	"github.com/osa030/cassette/internal/infra/metrics"
)

// Errors
var (
	ErrNotReady      = errors.New("playback controller not initialized")
	ErrInvalidVolume = errors.New("volume must be within [0, 1]")
)

// Config holds controller configuration.
type Config struct {
	DefaultVolume   float64 // Volume applied to every new handle until changed
	InitialPlaylist string  // Playlist selected by Init
	EventBuffer     int     // Capacity of the backend event channel
}

// Admission decides whether a track may join the selected playlist.
type Admission interface {
	Execute(ctx context.Context, candidate track.Track, existing []track.Track) filter.Result
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Backend   Backend
	Store     PlaylistStore
	Resolver  TrackResolver
	Admission Admission // optional; nil admits every track
	Notifier  Notifier
}

// Controller owns the selected playlist, the current track and the single
// live audio handle.
type Controller struct {
	mu sync.Mutex

	// Collaborators
	deps Deps

	// Selection
	playlist *playlist.Manager
	selected string
	current  track.Track

	// Playback
	handle Handle
	state  State
	volume float64
	hooks  Hooks

	// Configuration
	config Config

	// Events
	eventCh chan Event

	// Lifecycle
	ready  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a playback controller. Init must be called before
// any transition.
func NewController(config Config, deps Deps) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	return &Controller{
		deps:     deps,
		playlist: playlist.NewManager(),
		state:    StateStopped,
		volume:   config.DefaultVolume,
		config:   config,
		eventCh:  make(chan Event, config.EventBuffer),
	}
}

// SetHooks installs UI callbacks.
func (c *Controller) SetHooks(hooks Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = hooks
}

// Init starts the event loop and selects the initial playlist.
// Calling Init twice is a no-op.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.ready = true
	go c.run(loopCtx, c.done)

	zlog.Info().Msgf("playback: initialized, selecting playlist %q", c.config.InitialPlaylist)
	return c.selectPlaylistLocked(c.config.InitialPlaylist)
}

// Close stops the event loop and releases the live handle.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = false
	cancel, done := c.cancel, c.done
	c.releaseHandleLocked()
	c.mu.Unlock()

	cancel()
	<-done
}

// SelectPlaylist loads the named playlist and makes it the selection.
func (c *Controller) SelectPlaylist(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	return c.selectPlaylistLocked(name)
}

func (c *Controller) selectPlaylistLocked(name string) error {
	paths, err := c.deps.Store.Load(name)
	if err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to load playlist %q", name)
		c.deps.Notifier.Notify(config.MsgError)
		return errors.Wrapf(err, "failed to load playlist %q", name)
	}

	c.playlist.Set(c.deps.Resolver.ResolveAll(paths))
	c.selected = name
	metrics.PlaybackTransitionsTotal.WithLabelValues("select_playlist").Inc()
	c.deps.Notifier.Notify(config.MsgSelectedPlaylist, uppercaseFirst(name))

	if c.playlist.IsEmpty() {
		c.deps.Notifier.Notify(config.MsgPlaylistEmpty)
		c.releaseHandleLocked()
		return nil
	}

	if i := c.playlist.IndexOf(c.current); !c.current.IsZero() && i >= 0 {
		c.playlist.Select(i)
		return nil
	}

	t, _ := c.playlist.Select(0)
	c.selectTrackLocked(t)
	return nil
}

// SelectTrack makes t the current track. Selecting the current track is a
// no-op. The new handle starts stopped.
func (c *Controller) SelectTrack(t track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	c.selectTrackLocked(t)
	return nil
}

// SelectIndex selects the track at index i, normalized into the playlist.
// It is a no-op on an empty playlist. The index only moves once the track
// is selected.
func (c *Controller) SelectIndex(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	if t, ok := c.playlist.At(i); ok {
		c.selectTrackLocked(t)
	}
	return nil
}

// selectTrackLocked swaps the live handle to t. It reports whether t is the
// current track afterwards.
func (c *Controller) selectTrackLocked(t track.Track) bool {
	if t.IsZero() {
		return false
	}
	if t == c.current {
		return true
	}

	if _, err := os.Stat(t.FilePath); err != nil {
		zlog.Warn().Msgf("playback: %s is missing, keeping current selection", t.FilePath)
		c.deps.Notifier.Notify(config.MsgNonexistingFile, t.String())
		return false
	}

	c.releaseHandleLocked()

	h, err := c.deps.Backend.Open(t.FilePath, c.eventCh)
	if err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to open %s", t.FilePath)
		c.deps.Notifier.Notify(config.MsgNonexistingFile, t.String())
		return false
	}
	metrics.PlaybackHandlesOpen.Inc()
	metrics.PlaybackTransitionsTotal.WithLabelValues("select_track").Inc()

	h.SetVolume(c.volume)
	c.handle = h
	c.current = t
	c.state = StateStopped
	if i := c.playlist.IndexOf(t); i >= 0 {
		c.playlist.Select(i)
	}

	zlog.Debug().Msgf("playback: selected %s (index %d)", t, c.playlist.Index())
	return true
}

// releaseHandleLocked closes the live handle and clears the selection.
func (c *Controller) releaseHandleLocked() {
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to close handle")
		}
		metrics.PlaybackHandlesOpen.Dec()
	}
	c.handle = nil
	c.current = track.Track{}
	c.state = StateStopped
}

// Play starts or resumes output of the current track.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	c.playLocked()
	return nil
}

func (c *Controller) playLocked() {
	if c.handle == nil || c.state == StatePlaying {
		return
	}
	if err := c.handle.Play(); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to play %s", c.current)
		c.deps.Notifier.Notify(config.MsgError)
		return
	}
	c.state = StatePlaying
	metrics.PlaybackTransitionsTotal.WithLabelValues("play").Inc()
	c.deps.Notifier.Notify(config.MsgNowPlaying, c.current.String())
}

// Pause suspends output. It is a no-op unless playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	if c.handle == nil || c.state != StatePlaying {
		return nil
	}
	if err := c.handle.Pause(); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to pause %s", c.current)
		c.deps.Notifier.Notify(config.MsgError)
		return nil
	}
	c.state = StatePaused
	metrics.PlaybackTransitionsTotal.WithLabelValues("pause").Inc()
	c.deps.Notifier.Notify(config.MsgPaused)
	return nil
}

// Stop halts output and rewinds the current track.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	if c.handle == nil {
		return nil
	}
	c.stopLocked()
	c.deps.Notifier.Notify(config.MsgStopped)
	return nil
}

func (c *Controller) stopLocked() {
	if err := c.handle.Stop(); err != nil {
		zlog.Warn().Err(err).Msgf("playback: failed to stop %s", c.current)
	}
	c.state = StateStopped
	metrics.PlaybackTransitionsTotal.WithLabelValues("stop").Inc()
}

// NextTrack stops, selects the following track (wrapping around) and plays it.
func (c *Controller) NextTrack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	c.advanceLocked(1)
	return nil
}

// PreviousTrack stops, selects the preceding track (wrapping around) and
// plays it.
func (c *Controller) PreviousTrack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	c.advanceLocked(-1)
	return nil
}

// advanceLocked moves the selection by delta. If the target file is missing
// the current handle is replayed from the start.
func (c *Controller) advanceLocked(delta int) {
	if c.current.IsZero() || c.handle == nil || c.playlist.IsEmpty() {
		return
	}

	c.stopLocked()
	t, _ := c.playlist.At(c.playlist.Index() + delta)
	c.selectTrackLocked(t)
	c.playLocked()
}

// AddTrack runs t through the admission chain and, if accepted, appends it
// to the selected playlist and persists it.
func (c *Controller) AddTrack(ctx context.Context, t track.Track) (filter.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return filter.Result{}, ErrNotReady
	}
	return c.addTrackLocked(ctx, t)
}

// AddFile resolves path into a track and adds it.
func (c *Controller) AddFile(ctx context.Context, path string) (filter.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return filter.Result{}, ErrNotReady
	}

	t, ok := c.deps.Resolver.ResolveTrack(path)
	if !ok {
		// The resolver reports unsupported types itself.
		if !metadata.IsSupportedFileType(path) {
			return filter.Reject(config.MsgWrongFiletype), nil
		}
		c.deps.Notifier.Notify(config.MsgNonexistingFile, path)
		return filter.Reject(config.MsgNonexistingFile), nil
	}
	return c.addTrackLocked(ctx, t)
}

func (c *Controller) addTrackLocked(ctx context.Context, t track.Track) (filter.Result, error) {
	if t.IsZero() {
		return filter.Reject(config.MsgNonexistingFile), nil
	}

	if c.deps.Admission != nil {
		result := c.deps.Admission.Execute(ctx, t, c.playlist.Tracks())
		if !result.Accepted {
			c.deps.Notifier.Notify(result.Code, t.String())
			return result, nil
		}
	}

	c.playlist.Add(t)
	c.deps.Notifier.Notify(config.MsgAddedTrack, t.String())
	zlog.Info().Msgf("playback: added %s to %q", t.FilePath, c.selected)

	if err := c.deps.Store.Save([]string{t.FilePath}, c.selected, true); err != nil {
		c.deps.Notifier.Notify(config.MsgError)
		return filter.Accept(), errors.Wrapf(err, "failed to save playlist %q", c.selected)
	}
	return filter.Accept(), nil
}

// RemoveTrack removes the first occurrence of t from the selected playlist.
// Removing the current track stops it and reselects at the same index.
func (c *Controller) RemoveTrack(t track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}

	index := c.playlist.IndexOf(t)
	if index < 0 {
		return nil
	}

	removingCurrent := !c.current.IsZero() && index == c.playlist.IndexOf(c.current)
	if removingCurrent && c.handle != nil {
		c.stopLocked()
		c.deps.Notifier.Notify(config.MsgStopped)
	}

	c.playlist.Remove(t)
	c.deps.Notifier.Notify(config.MsgRemovedTrack, t.String())
	zlog.Info().Msgf("playback: removed %s from %q", t.FilePath, c.selected)

	var saveErr error
	if err := c.deps.Store.Save(c.snapshotLocked().FilePaths(), c.selected, false); err != nil {
		c.deps.Notifier.Notify(config.MsgError)
		saveErr = errors.Wrapf(err, "failed to save playlist %q", c.selected)
	}

	if removingCurrent {
		next, ok := c.playlist.Select(index)
		if !ok {
			c.releaseHandleLocked()
			return saveErr
		}
		if !c.selectTrackLocked(next) {
			// Missing replacement: the removed track must not stay current.
			c.releaseHandleLocked()
		}
	} else if i := c.playlist.IndexOf(c.current); !c.current.IsZero() && i >= 0 {
		c.playlist.Select(i)
	}
	return saveErr
}

func (c *Controller) snapshotLocked() domainplaylist.Playlist {
	return domainplaylist.Playlist{Name: c.selected, Tracks: c.playlist.Tracks()}
}

// SetVolume sets the output gain for the live handle and every future one.
func (c *Controller) SetVolume(volume float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return ErrInvalidVolume
	}
	c.volume = volume
	if c.handle != nil {
		c.handle.SetVolume(volume)
	}
	return nil
}

// SetTrackPosition seeks to fraction of the current track's duration.
// The fraction is clamped to [0, 1].
func (c *Controller) SetTrackPosition(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotReady
	}
	if c.handle == nil || math.IsNaN(fraction) {
		return nil
	}

	fraction = math.Max(0, math.Min(1, fraction))
	position := time.Duration(fraction * float64(c.handle.Duration()))
	if err := c.handle.Seek(position); err != nil {
		zlog.Warn().Err(err).Msgf("playback: failed to seek %s to %s", c.current, position)
	}
	return nil
}

// Volume returns the configured output gain.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Progress returns the position of the current track as a fraction of its
// duration, or 0 when nothing is loaded or the duration is unknown.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return 0
	}
	duration := c.handle.Duration()
	if duration <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, float64(c.handle.Position())/float64(duration)))
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether output is running.
func (c *Controller) IsPlaying() bool {
	return c.State() == StatePlaying
}

// CurrentTrack returns the current track, if any.
func (c *Controller) CurrentTrack() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, !c.current.IsZero()
}

// CurrentIndex returns the selection index. With duplicate tracks this is
// the first occurrence of the current track.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.Index()
}

// Tracks returns a copy of the selected playlist.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.Tracks()
}

// Playlist returns a snapshot of the selected playlist.
func (c *Controller) Playlist() domainplaylist.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SelectedPlaylist returns the name of the selected playlist.
func (c *Controller) SelectedPlaylist() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// run drains backend events until ctx is cancelled.
func (c *Controller) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.eventCh:
			c.handleEvent(e)
		}
	}
}

func (c *Controller) handleEvent(e Event) {
	c.mu.Lock()

	if c.handle == nil || e.Source != c.handle {
		c.mu.Unlock()
		metrics.PlaybackStaleEventsTotal.Inc()
		zlog.Debug().Msgf("playback: dropped stale %s event", e.Type)
		return
	}

	var callbacks []func()
	switch e.Type {
	case EventReady, EventTimeUpdate:
		callbacks = append(callbacks, c.hooks.OnProgress)
	case EventEndOfMedia:
		// Stop or Pause may land between the backend queueing the event and
		// this loop applying it.
		if c.state != StatePlaying {
			c.mu.Unlock()
			metrics.PlaybackStaleEventsTotal.Inc()
			zlog.Debug().Msgf("playback: dropped end of %s while %s", c.current, c.state)
			return
		}
		zlog.Debug().Msgf("playback: end of %s", c.current)
		c.advanceLocked(1)
		callbacks = append(callbacks, c.hooks.OnEndOfTrack, c.hooks.OnProgress)
	}
	c.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

func uppercaseFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
