package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/cassette/internal/app/filter"
	"github.com/osa030/cassette/internal/app/playback"
	"github.com/osa030/cassette/internal/domain/playlist"
	"github.com/osa030/cassette/internal/domain/track"
)

// Player is the part of the playback controller the console drives.
type Player interface {
	SelectPlaylist(name string) error
	SelectIndex(i int) error
	Play() error
	Pause() error
	Stop() error
	NextTrack() error
	PreviousTrack() error
	AddFile(ctx context.Context, path string) (filter.Result, error)
	RemoveTrack(t track.Track) error
	SetVolume(volume float64) error
	SetTrackPosition(fraction float64) error

	Volume() float64
	Progress() float64
	State() playback.State
	CurrentTrack() (track.Track, bool)
	CurrentIndex() int
	Tracks() []track.Track
	Playlist() playlist.Playlist
	SelectedPlaylist() string
}

// Catalog lists the playlists that can be selected.
type Catalog interface {
	Names() []string
}

var errQuit = errors.New("quit")

const consoleHelp = `Commands:
  play | pause | stop | next | prev
  list                 show the selected playlist
  select <n>           select track n (1-based)
  seek <percent>       jump to a position in the current track
  vol [percent]        show or set the volume
  playlist [name]      show playlists or select one
  add <file>           add a file to the selected playlist
  remove <n>           remove track n from the selected playlist
  status               show what is playing
  help | quit`

// Console maps text commands onto a Player.
type Console struct {
	player  Player
	catalog Catalog
	out     io.Writer
}

// NewConsole creates a console writing to out.
func NewConsole(player Player, catalog Catalog, out io.Writer) *Console {
	return &Console{player: player, catalog: catalog, out: out}
}

// Run executes commands read from in until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, `Type "help" for commands.`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.Execute(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "play":
		return c.player.Play()
	case "pause":
		return c.player.Pause()
	case "stop":
		return c.player.Stop()
	case "next":
		return c.player.NextTrack()
	case "prev", "previous":
		return c.player.PreviousTrack()
	case "list", "ls":
		c.printTracks()
		return nil
	case "select":
		n, err := trackNumber(args)
		if err != nil {
			return err
		}
		return c.player.SelectIndex(n - 1)
	case "seek":
		pct, err := percent(args)
		if err != nil {
			return err
		}
		return c.player.SetTrackPosition(pct)
	case "vol", "volume":
		if len(args) == 0 {
			fmt.Fprintf(c.out, "volume: %.0f%%\n", c.player.Volume()*100)
			return nil
		}
		pct, err := percent(args)
		if err != nil {
			return err
		}
		return c.player.SetVolume(pct)
	case "playlist", "playlists":
		if rest == "" {
			c.printPlaylists()
			return nil
		}
		return c.player.SelectPlaylist(rest)
	case "add":
		if rest == "" {
			return errors.New("usage: add <file>")
		}
		_, err := c.player.AddFile(ctx, rest)
		return err
	case "remove", "rm":
		n, err := trackNumber(args)
		if err != nil {
			return err
		}
		tracks := c.player.Tracks()
		if n > len(tracks) {
			return errors.Newf("no track %d (playlist has %d)", n, len(tracks))
		}
		return c.player.RemoveTrack(tracks[n-1])
	case "status":
		c.printStatus()
		return nil
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	default:
		return errors.Newf("unknown command %q (try help)", cmd)
	}
}

func (c *Console) printTracks() {
	tracks := c.player.Tracks()
	if len(tracks) == 0 {
		fmt.Fprintln(c.out, "(empty)")
		return
	}
	current, hasCurrent := c.player.CurrentTrack()
	for i, t := range tracks {
		marker := " "
		if hasCurrent && t == current && i == c.player.CurrentIndex() {
			marker = ">"
		}
		fmt.Fprintf(c.out, "%s %3d. %s\n", marker, i+1, t)
	}
}

func (c *Console) printPlaylists() {
	selected := c.player.SelectedPlaylist()
	for _, name := range c.catalog.Names() {
		marker := " "
		if name == selected {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %s\n", marker, name)
	}
}

func (c *Console) printStatus() {
	pl := c.player.Playlist()
	if pl.IsAggregate() {
		fmt.Fprintf(c.out, "playlist: %s (every playlist and the tracks directory)\n", pl.Name)
	} else {
		fmt.Fprintf(c.out, "playlist: %s\n", pl.Name)
	}
	if t, ok := c.player.CurrentTrack(); ok {
		fmt.Fprintf(c.out, "track:    %s (%d/%d)\n", t, c.player.CurrentIndex()+1, pl.Len())
	} else {
		fmt.Fprintln(c.out, "track:    -")
	}
	fmt.Fprintf(c.out, "state:    %s %s\n", c.player.State(), progressBar(c.player.Progress(), 20))
	fmt.Fprintf(c.out, "volume:   %.0f%%\n", c.player.Volume()*100)
}

func progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func trackNumber(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected a track number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, errors.Newf("invalid track number %q", args[0])
	}
	return n, nil
}

// percent parses "0".."100" into a fraction.
func percent(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected a percentage")
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil || v < 0 || v > 100 {
		return 0, errors.Newf("invalid percentage %q", args[0])
	}
	return v / 100, nil
}
