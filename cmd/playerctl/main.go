// Package main provides the playback control CLI.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tunedeck/internal/api/connect"
	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/localstore"
)

var (
	app       = kingpin.New("tunedeck-playerctl", "tunedeck playback control client")
	server    = app.Flag("server", "Server address (default: saved by login)").String()
	statePath = app.Flag("state", "Path to local state file").Default(localstore.DefaultPath()).String()

	// login command
	loginCmd      = app.Command("login", "Log in and save the token")
	loginEmail    = loginCmd.Arg("email", "Account email").Required().String()
	loginPassword = loginCmd.Arg("password", "Account password").Required().String()

	// logout command
	logoutCmd = app.Command("logout", "Forget the saved token")

	// play-playlist command
	playPlaylistCmd   = app.Command("play-playlist", "Play a stored playlist")
	playPlaylistID    = playPlaylistCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playPlaylistStart = playPlaylistCmd.Flag("start", "Index of the first track").Default("0").Int32()

	// play command
	playCmd     = app.Command("play", "Play a track, optionally with a surrounding queue")
	playTrackID = playCmd.Arg("track-id", "Track ID").Required().String()
	playContext = playCmd.Arg("context", "Track IDs queued after it").Strings()

	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	nextCmd    = app.Command("next", "Skip to the next track")
	prevCmd    = app.Command("prev", "Go to the previous track or restart the current one")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle")
	repeatCmd  = app.Command("repeat", "Cycle repeat mode (off, all, one)")

	// enqueue command
	enqueueCmd     = app.Command("enqueue", "Append a track to the queue")
	enqueueTrackID = enqueueCmd.Arg("track-id", "Track ID").Required().String()

	// seek command
	seekCmd      = app.Command("seek", "Seek within the current track")
	seekPosition = seekCmd.Arg("position", "Position (e.g. 1m30s)").Required().Duration()

	statusCmd    = app.Command("status", "Show the playback state")
	subscribeCmd = app.Command("subscribe", "Follow playback events")

	// recent command
	recentCmd   = app.Command("recent", "Show recently played tracks")
	recentLimit = recentCmd.Flag("limit", "Number of entries").Default("20").Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx := context.Background()

	state, err := localstore.Open(*statePath)
	if err != nil {
		fail(err)
	}
	defer state.Close()

	switch command {
	case loginCmd.FullCommand():
		login(ctx, state, *loginEmail, *loginPassword)
		return
	case logoutCmd.FullCommand():
		if err := state.ClearToken(ctx); err != nil {
			fail(err)
		}
		fmt.Println("Logged out")
		return
	case recentCmd.FullCommand():
		recent(ctx, state, *recentLimit)
		return
	}

	client := newClient(ctx, state)

	// Execute command
	switch command {
	case playPlaylistCmd.FullCommand():
		printState(client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{
			PlaylistId: *playPlaylistID,
			StartIndex: *playPlaylistStart,
		})))
	case playCmd.FullCommand():
		printState(client.PlayTrack(ctx, connect.NewRequest(&tunedeckv1.PlayTrackRequest{
			TrackId:         *playTrackID,
			ContextTrackIds: *playContext,
		})))
	case toggleCmd.FullCommand():
		printState(client.TogglePlayPause(ctx, connect.NewRequest(&tunedeckv1.TogglePlayPauseRequest{})))
	case nextCmd.FullCommand():
		printState(client.Next(ctx, connect.NewRequest(&tunedeckv1.NextRequest{})))
	case prevCmd.FullCommand():
		printState(client.Previous(ctx, connect.NewRequest(&tunedeckv1.PreviousRequest{})))
	case shuffleCmd.FullCommand():
		printState(client.ToggleShuffle(ctx, connect.NewRequest(&tunedeckv1.ToggleShuffleRequest{})))
	case repeatCmd.FullCommand():
		printState(client.ToggleRepeat(ctx, connect.NewRequest(&tunedeckv1.ToggleRepeatRequest{})))
	case enqueueCmd.FullCommand():
		printState(client.Enqueue(ctx, connect.NewRequest(&tunedeckv1.EnqueueRequest{TrackId: *enqueueTrackID})))
	case seekCmd.FullCommand():
		printState(client.Seek(ctx, connect.NewRequest(&tunedeckv1.SeekRequest{PositionMs: seekPosition.Milliseconds()})))
	case statusCmd.FullCommand():
		printState(client.GetState(ctx, connect.NewRequest(&tunedeckv1.GetStateRequest{})))
	case subscribeCmd.FullCommand():
		subscribe(ctx, client, state)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

// serverURL returns the --server flag, falling back to the saved address.
func serverURL(ctx context.Context, state *localstore.Store) string {
	if *server != "" {
		return strings.TrimRight(*server, "/")
	}
	saved, err := state.LoadServer(ctx)
	if err == nil {
		return saved
	}
	if !errors.Is(err, localstore.ErrNotSet) {
		fail(err)
	}
	return "http://localhost:8080"
}

func newClient(ctx context.Context, state *localstore.Store) *tunedeckv1.PlayerServiceClient {
	tok, err := state.LoadToken(ctx)
	if errors.Is(err, localstore.ErrNotSet) {
		fail(errors.New("not logged in, run: playerctl login <email> <password>"))
	}
	if err != nil {
		fail(err)
	}
	return tunedeckv1.NewPlayerServiceClient(
		http.DefaultClient,
		serverURL(ctx, state),
		connect.WithInterceptors(apiconnect.NewClientAuthInterceptor(tok.AccessToken)),
	)
}

func login(ctx context.Context, state *localstore.Store, email, password string) {
	base := serverURL(ctx, state)
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	var out struct {
		Tokens auth.Tokens `json:"tokens"`
		Error  string      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fail(errors.Wrapf(err, "unexpected login response: status=%d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		fail(errors.Newf("login failed: %s", out.Error))
	}

	if err := state.SaveToken(ctx, localstore.Token{
		AccessToken:  out.Tokens.AccessToken,
		RefreshToken: out.Tokens.RefreshToken,
	}); err != nil {
		fail(err)
	}
	if err := state.SaveServer(ctx, base); err != nil {
		fail(err)
	}
	fmt.Printf("Logged in to %s\n", base)
}

func recent(ctx context.Context, state *localstore.Store, limit int) {
	played, err := state.RecentlyPlayed(ctx, limit)
	if err != nil {
		fail(err)
	}
	if len(played) == 0 {
		fmt.Println("Nothing played yet")
		return
	}
	for _, p := range played {
		fmt.Printf("%s  %s - %s (%s)\n", p.PlayedAt.Local().Format("2006-01-02 15:04"), p.Artist, p.Title, p.TrackID)
	}
}

func printState(resp *connect.Response[tunedeckv1.StateResponse], err error) {
	if err != nil {
		fail(err)
	}
	printPlaybackState(resp.Msg.State)
}

func printPlaybackState(s *tunedeckv1.PlaybackState) {
	if s == nil {
		return
	}
	if s.CurrentTrack == nil {
		fmt.Printf("  State: %s (nothing loaded)\n", s.State)
		return
	}

	status := "⏸  Paused"
	switch {
	case s.IsLoading:
		status = "⏳ Loading"
	case s.IsPlaying:
		status = "▶️  Playing"
	}
	fmt.Printf("  %s: %s - %s\n", status, s.CurrentTrack.Artist, s.CurrentTrack.Title)
	fmt.Printf("  Position: %s / %s\n", formatMs(s.PositionMs), formatMs(s.DurationMs))
	fmt.Printf("  Queue: %d/%d  Shuffle: %v  Repeat: %s\n", s.CurrentIndex+1, len(s.Queue), s.IsShuffled, s.RepeatMode)
}

func formatMs(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func subscribe(ctx context.Context, client *tunedeckv1.PlayerServiceClient, state *localstore.Store) {
	stream, err := client.SubscribeEvents(ctx, connect.NewRequest(&tunedeckv1.SubscribeEventsRequest{}))
	if err != nil {
		fail(err)
	}

	fmt.Println("Subscribed to playback events. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	// Receive events
	for stream.Receive() {
		event := stream.Msg()
		printEvent(event)

		if event.Type == tunedeckv1.EventTypeTrackChanged && event.State != nil && event.State.CurrentTrack != nil {
			t := event.State.CurrentTrack
			if err := state.RecordPlayed(ctx, track.Track{ID: t.Id, Title: t.Title, Artist: t.Artist}); err != nil {
				fmt.Printf("Failed to record history: %v\n", err)
			}
		}
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printEvent(e *tunedeckv1.PlaybackEvent) {
	// Print sequence number
	fmt.Printf("\n[Sequence: %d] ", e.SequenceNo)

	switch e.Type {
	case tunedeckv1.EventTypeInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case tunedeckv1.EventTypeTrackChanged:
		fmt.Println("=== TRACK CHANGED ===")
	case tunedeckv1.EventTypeStateChanged:
		fmt.Println("=== STATE CHANGED ===")
	case tunedeckv1.EventTypeQueueChanged:
		fmt.Println("=== QUEUE CHANGED ===")
	case tunedeckv1.EventTypeQueueEnded:
		fmt.Println("=== QUEUE ENDED ===")
	case tunedeckv1.EventTypeError:
		fmt.Printf("=== ERROR: %s ===\n", e.Error)
	default:
		fmt.Printf("=== UNKNOWN EVENT (%v) ===\n", e.Type)
	}

	printPlaybackState(e.State)
}
