// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tunedeck/internal/api/connect"
	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/infra/cache"
	"github.com/osa030/tunedeck/internal/infra/config"
	"github.com/osa030/tunedeck/internal/infra/logger"
	"github.com/osa030/tunedeck/internal/infra/spotify"
	"github.com/osa030/tunedeck/internal/store"
)

var (
	app        = kingpin.New("tunedeck-admincli", "tunedeck moderation and maintenance client")
	server     = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token      = app.Flag("token", "Moderator access token (or set TUNEDECK_TOKEN env)").Envar("TUNEDECK_TOKEN").String()
	configPath = app.Flag("config", "Path to config file (import-spotify, migrate)").Default("config/server.yaml").String()

	// pending command
	pendingCmd   = app.Command("pending", "List playlists waiting for review")
	pendingClass = pendingCmd.Flag("class", "Only playlists of this class").String()

	// approve command
	approveCmd  = app.Command("approve", "Approve a pending playlist")
	approveID   = approveCmd.Arg("playlist-id", "Playlist ID").Required().String()
	approveNote = approveCmd.Flag("note", "Review note").String()

	// reject command
	rejectCmd  = app.Command("reject", "Reject a pending playlist")
	rejectID   = rejectCmd.Arg("playlist-id", "Playlist ID").Required().String()
	rejectNote = rejectCmd.Flag("note", "Reason for the rejection").Required().String()

	// import-spotify command
	importCmd   = app.Command("import-spotify", "Import a Spotify playlist (or a single track) into the catalog")
	importURL   = importCmd.Arg("url", "Spotify playlist or track URL, URI or ID").Required().String()
	importTrack = importCmd.Flag("track", "Import a single track instead of a playlist").Bool()
	importCheck = importCmd.Flag("check", "Only check that the playlist is accessible").Bool()

	// migrate command
	migrateCmd = app.Command("migrate", "Apply the database schema")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx := context.Background()

	switch command {
	case importCmd.FullCommand():
		importSpotify(ctx, *importURL, *importTrack, *importCheck)
		return
	case migrateCmd.FullCommand():
		migrate(ctx)
		return
	}

	// Check token
	if *token == "" {
		fmt.Println("Error: access token is required (use --token or TUNEDECK_TOKEN env)")
		os.Exit(1)
	}

	// Create client
	client := tunedeckv1.NewModerationServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewClientAuthInterceptor(*token)),
	)

	// Execute command
	switch command {
	case pendingCmd.FullCommand():
		listPending(ctx, client, *pendingClass)
	case approveCmd.FullCommand():
		approve(ctx, client, *approveID, *approveNote)
	case rejectCmd.FullCommand():
		reject(ctx, client, *rejectID, *rejectNote)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func listPending(ctx context.Context, client *tunedeckv1.ModerationServiceClient, classCode string) {
	resp, err := client.ListPending(ctx, connect.NewRequest(&tunedeckv1.ListPendingRequest{ClassCode: classCode}))
	if err != nil {
		fail(err)
	}

	fmt.Printf("Pending playlists (%d):\n", len(resp.Msg.Playlists))
	for _, p := range resp.Msg.Playlists {
		fmt.Printf("  %s: %s (owner: %s, class: %s, tracks: %d, submitted: %s)\n",
			p.Id, p.Name, p.OwnerId, p.ClassCode, len(p.TrackIds), p.SubmittedAt)
	}
}

func approve(ctx context.Context, client *tunedeckv1.ModerationServiceClient, id, note string) {
	resp, err := client.Approve(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: id, Note: note}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Playlist approved: %s (%s)\n", resp.Msg.Playlist.Name, resp.Msg.Playlist.Id)
}

func reject(ctx context.Context, client *tunedeckv1.ModerationServiceClient, id, note string) {
	resp, err := client.Reject(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: id, Note: note}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Playlist rejected: %s (%s)\n", resp.Msg.Playlist.Name, resp.Msg.Playlist.Id)
}

// loadConfig loads the server config for the commands that talk to the database directly.
func loadConfig() *config.Config {
	if err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		fail(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	return cfg
}

func migrate(ctx context.Context) {
	cfg := loadConfig()
	pool, err := store.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		fail(err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		fail(err)
	}
	fmt.Println("Schema is up to date")
}

func importSpotify(ctx context.Context, url string, single, checkOnly bool) {
	cfg := loadConfig()
	if !cfg.SpotifyEnabled() {
		fail(catalog.ErrSpotifyDisabled)
	}

	pool, err := store.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		fail(err)
	}
	defer pool.Close()

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		fail(err)
	}

	if checkOnly {
		if err := client.CheckPlaylistExists(ctx, url); err != nil {
			fail(err)
		}
		fmt.Println("Playlist is accessible")
		return
	}

	// The server's cache entries expire on their own TTL.
	svc := catalog.NewService(catalog.Config{
		CacheTTL:      cfg.CacheTTL(),
		UploadsDir:    cfg.Uploads.Dir,
		MaxUploadSize: cfg.Uploads.MaxBytes,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}, store.New(pool).Tracks, cache.Noop{}, catalog.WithSpotify(client))

	if single {
		t, err := svc.ImportSpotifyTrack(ctx, url)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Imported %s - %s (%s)\n", t.Artist, t.Title, t.ID)
		return
	}

	n, err := svc.ImportSpotifyPlaylist(ctx, url)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Imported %d tracks\n", n)
}
