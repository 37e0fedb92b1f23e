// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tunedeck/internal/api/connect"
	"github.com/osa030/tunedeck/internal/api/rest"
	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/app/settings"
	"github.com/osa030/tunedeck/internal/infra/audio"
	"github.com/osa030/tunedeck/internal/infra/cache"
	"github.com/osa030/tunedeck/internal/infra/config"
	"github.com/osa030/tunedeck/internal/infra/lastfm"
	"github.com/osa030/tunedeck/internal/infra/logger"
	"github.com/osa030/tunedeck/internal/infra/spotify"
	"github.com/osa030/tunedeck/internal/infra/upload"
	"github.com/osa030/tunedeck/internal/store"
)

var (
	app        = kingpin.New("tunedeck-server", "tunedeck audio streaming server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available moderation filters and exit")

	// migrate command
	migrateCmd = app.Command("migrate", "Apply the database schema and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Bootstrap logger until the config is loaded
	if err := logger.Init(logger.Config{Output: "stdout", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	if command == migrateCmd.FullCommand() {
		if err := migrate(cfg); err != nil {
			zlog.Fatal().Msgf("Migration failed: %v", err)
		}
		zlog.Info().Msg("Migration complete")
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// loggerConfig builds the logger configuration from cfg and the command-line flags.
func loggerConfig(cfg *config.Config) logger.Config {
	lc := logger.Config{
		Output:     cfg.Log.Output,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}

func migrate(cfg *config.Config) error {
	ctx := context.Background()
	pool, err := store.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return store.Migrate(ctx, pool)
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}
	repos := store.New(pool)

	var c cache.Cache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "tunedeck:",
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		c = rc
		zlog.Info().Msgf("Cache enabled: addr=%s ttl=%v", cfg.Redis.Addr, cfg.CacheTTL())
	} else {
		zlog.Info().Msg("Redis not configured, caching disabled")
	}

	catalogOpts, err := catalogOptions(ctx, cfg)
	if err != nil {
		return err
	}
	catalogSvc := catalog.NewService(catalog.Config{
		CacheTTL:      cfg.CacheTTL(),
		UploadsDir:    cfg.Uploads.Dir,
		MaxUploadSize: cfg.Uploads.MaxBytes,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}, repos.Tracks, c, catalogOpts...)

	authSvc := auth.NewService(repos.Users, auth.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		AdminToken: cfg.Auth.AdminToken,
	})

	chain, err := filter.NewChainFromConfig(cfg.Moderation.Filters, filter.Deps{Pending: repos.Playlists})
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}
	var enabled []string
	for _, name := range filter.RegisteredNames() {
		if cfg.IsFilterEnabled(name) {
			enabled = append(enabled, name)
		}
	}
	zlog.Info().Msgf("Moderation filters: enabled=%v", enabled)
	moderationSvc := moderation.NewService(repos.Playlists, chain, c)
	playlistSvc := playlists.NewService(repos.Playlists, catalogSvc, c, cfg.CacheTTL())
	settingsSvc := settings.NewService(repos.Preferences)

	sessionMgr := session.NewManager(session.Config{
		Playback: playback.Config{
			RestartThreshold: time.Duration(cfg.Playback.RestartThresholdMs) * time.Millisecond,
			EventBuffer:      cfg.Playback.EventBuffer,
		},
		Audio: audio.Config{
			Tick:        time.Duration(cfg.Playback.TickMs) * time.Millisecond,
			LoadLatency: time.Duration(cfg.Playback.LoadLatencyMs) * time.Millisecond,
		},
		IdleTimeout: time.Duration(cfg.Playback.IdleTimeoutMin) * time.Minute,
	}, notification.NewManager(), catalogSvc, settingsSvc)

	// Create HTTP mux
	mux := http.NewServeMux()

	interceptors := connect.WithInterceptors(apiconnect.NewAuthInterceptor(authSvc))
	mux.Handle(tunedeckv1.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(sessionMgr, playlistSvc),
		interceptors,
	))
	mux.Handle(tunedeckv1.NewModerationServiceHandler(
		apiconnect.NewModerationService(moderationSvc),
		interceptors,
	))

	restServer := rest.NewServer(rest.Deps{
		Auth:       authSvc,
		Catalog:    catalogSvc,
		Playlists:  playlistSvc,
		Moderation: moderationSvc,
		Settings:   settingsSvc,
		Messages:   cfg,
		DB:         pool,
		MediaDir:   cfg.Uploads.Dir,
	})
	mux.Handle("/", restServer.Router())

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sessionMgr.Run(ctx)

	if cfg.Uploads.Watch {
		watcher := upload.NewWatcher(upload.Config{
			InboxDir:   cfg.Uploads.InboxDir,
			UploadsDir: cfg.Uploads.Dir,
		}, catalogSvc.ImportFile)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				zlog.Error().Msgf("Upload watcher stopped: %v", err)
			}
		}()
		zlog.Info().Msgf("Watching upload inbox: dir=%s", cfg.Uploads.InboxDir)
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close sessions first so event streams end before the server drains
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// catalogOptions enables Spotify import and Last.fm tagging when configured.
func catalogOptions(ctx context.Context, cfg *config.Config) ([]catalog.Option, error) {
	var opts []catalog.Option

	if cfg.SpotifyEnabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		opts = append(opts, catalog.WithSpotify(client))
		zlog.Info().Msg("Spotify import enabled")
	}

	if cfg.LastFM.APIKey != "" {
		client, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Last.fm client")
		}
		opts = append(opts, catalog.WithTagger(catalog.NewTagger(client, cfg.LastFM.MaxTag)))
		zlog.Info().Msg("Emotion tagging enabled")
	}

	return opts, nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.RegisteredNames() {
		f := registry[name](filter.Deps{})
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
