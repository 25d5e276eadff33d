// Package main provides the cassette command-line player.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/app/filter"
	"github.com/osa030/cassette/internal/app/metadata"
	"github.com/osa030/cassette/internal/app/notification"
	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/infra/audio"
	"github.com/osa030/cassette/internal/infra/config"
	"github.com/osa030/cassette/internal/infra/logger"
	"github.com/osa030/cassette/internal/infra/metrics"
	"github.com/osa030/cassette/internal/infra/playliststore"
)

var (
	app        = kingpin.New("cassette", "Local music player with playlists")
	configPath = app.Flag("config", "Path to config file").Default("config/cassette.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	runCmd      = app.Command("run", "Play interactively from the console (default)").Default()
	runPlaylist = runCmd.Arg("playlist", "Playlist to select at start").String()

	tagsCmd   = app.Command("tags", "Print the resolved metadata of audio files")
	tagsFiles = tagsCmd.Arg("files", "Audio files").Required().Strings()

	playlistsCmd = app.Command("playlists", "List stored playlists")

	addCmd      = app.Command("add", "Append audio files to a playlist")
	addPlaylist = addCmd.Arg("playlist", "Playlist name").Required().String()
	addFiles    = addCmd.Arg("files", "Audio files").Required().Strings()

	listFiltersCmd = app.Command("list-filters", "List available admission filters")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case tagsCmd.FullCommand():
		err = printTags(cfg, *tagsFiles)
	case playlistsCmd.FullCommand():
		printPlaylists(playliststore.New(cfg.Library))
	case addCmd.FullCommand():
		err = addToPlaylist(ctx, cfg, *addPlaylist, *addFiles)
	default:
		err = run(ctx, cfg, *runPlaylist)
	}
	if err != nil {
		zlog.Error().Msgf("cassette: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zlog.Info().Msgf("Config %s not found, using defaults", path)
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// run wires the player and drives it from stdin until quit or a signal.
func run(ctx context.Context, cfg *config.Config, initial string) error {
	notifications := notification.NewManager()
	defer notifications.Close()
	notifications.Subscribe(notification.StreamFunc(func(message string) error {
		_, err := fmt.Fprintln(os.Stdout, message)
		return err
	}))
	notifier := notification.NewNotifier(cfg.Messages, notifications)

	chain, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	progressInterval := time.Duration(cfg.Playback.ProgressIntervalMs) * time.Millisecond
	backend, err := audio.New(cfg.Audio, progressInterval)
	if err != nil {
		return errors.Wrap(err, "failed to create audio backend")
	}

	if initial == "" {
		initial = cfg.Playback.InitialPlaylist
	}

	store := playliststore.New(cfg.Library)
	ctrl := playback.NewController(playback.Config{
		DefaultVolume:   cfg.Playback.DefaultVolume,
		InitialPlaylist: initial,
		EventBuffer:     cfg.Playback.EventBuffer,
	}, playback.Deps{
		Backend:   backend,
		Store:     store,
		Resolver:  metadata.NewResolver(notifier),
		Admission: chain,
		Notifier:  notifier,
	})
	ctrl.SetHooks(playback.Hooks{
		OnEndOfTrack: func() {
			if t, ok := ctrl.CurrentTrack(); ok {
				zlog.Debug().Msgf("cassette: advanced to %s", t)
			}
		},
	})

	if err := ctrl.Init(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize player")
	}
	defer ctrl.Close()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				zlog.Error().Err(err).Msg("cassette: metrics server stopped")
			}
		}()
	}

	if !cfg.Library.NoWatch {
		err := store.Watch(ctx, func(name string) {
			if name != ctrl.SelectedPlaylist() {
				return
			}
			zlog.Info().Msgf("cassette: playlist %q changed on disk, reloading", name)
			if err := ctrl.SelectPlaylist(name); err != nil {
				zlog.Warn().Err(err).Msg("cassette: reload failed")
			}
		})
		if err != nil {
			zlog.Warn().Err(err).Msg("cassette: not watching library")
		}
	}

	return NewConsole(ctrl, store, os.Stdout).Run(ctx, os.Stdin)
}

// printTags prints the resolved artist and title of each file.
func printTags(cfg *config.Config, files []string) error {
	notifier := notification.NewNotifier(cfg.Messages, notification.SinkFunc(func(message string) {
		fmt.Fprintln(os.Stderr, message)
	}))
	resolver := metadata.NewResolver(notifier)

	failed := 0
	for _, file := range files {
		t, ok := resolver.ResolveTrack(file)
		if !ok {
			failed++
			fmt.Printf("%s: not a playable file\n", file)
			continue
		}
		fmt.Printf("%s\n  artist: %s\n  title:  %s\n", t.FilePath, t.Artist, t.Name)
	}
	if failed > 0 {
		return errors.Newf("%d of %d files could not be resolved", failed, len(files))
	}
	return nil
}

// printPlaylists prints the stored playlists with their sizes.
func printPlaylists(store *playliststore.Store) {
	for _, name := range store.Names() {
		paths, err := store.Load(name)
		if err != nil {
			fmt.Printf("  %-20s (%v)\n", name, err)
			continue
		}
		fmt.Printf("  %-20s %d tracks\n", name, len(paths))
	}
}

// addToPlaylist resolves files, runs them through the admission chain and
// appends the accepted ones to the named playlist.
func addToPlaylist(ctx context.Context, cfg *config.Config, name string, files []string) error {
	notifier := notification.NewNotifier(cfg.Messages, notification.SinkFunc(func(message string) {
		fmt.Println(message)
	}))
	chain, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	store := playliststore.New(cfg.Library)
	paths, err := store.Load(name)
	if err != nil {
		return err
	}
	resolver := metadata.NewResolver(notifier)
	existing := resolver.ResolveAll(paths)

	var accepted []string
	for _, file := range files {
		t, ok := resolver.ResolveTrack(file)
		if !ok {
			continue
		}
		if result := chain.Execute(ctx, t, existing); !result.Accepted {
			notifier.Notify(result.Code, t.String())
			continue
		}
		existing = append(existing, t)
		accepted = append(accepted, t.FilePath)
		notifier.Notify(config.MsgAddedTrack, t.String())
	}

	if len(accepted) == 0 {
		return nil
	}
	return store.Save(accepted, name, true)
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for name, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-25s - %s [codes: %s]\n", name, f.Description(), codes)
	}
}
