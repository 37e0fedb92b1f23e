// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Moderation ModerationConfig `yaml:"moderation"`
	Messages   MessagesConfig   `yaml:"messages"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
	LastFM     LastFMConfig     `yaml:"lastfm"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr          string      `yaml:"addr" default:":8080"`
	PublicBaseURL string      `yaml:"public_base_url" default:"http://localhost:8080" validate:"url"`
	Hooks         HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// DatabaseConfig represents PostgreSQL configuration.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" validate:"required"`
	MaxConns int32  `yaml:"max_conns" default:"10" validate:"gte=1,lte=200"`
}

// RedisConfig represents cache configuration. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	TTLSec   int    `yaml:"ttl_sec" default:"300" validate:"gte=1"`
}

// AuthConfig represents token issuing configuration.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" validate:"required,min=16"`
	AccessTTLMin  int    `yaml:"access_ttl_min" default:"15" validate:"gte=1"`
	RefreshTTLHrs int    `yaml:"refresh_ttl_hrs" default:"720" validate:"gte=1"`
	AdminToken    string `yaml:"admin_token"`
}

// PlaybackConfig represents server-side playback session configuration.
type PlaybackConfig struct {
	RestartThresholdMs int `yaml:"restart_threshold_ms" default:"3000" validate:"gte=0,lte=60000"`
	TickMs             int `yaml:"tick_ms" default:"100" validate:"gte=10,lte=5000"`
	LoadLatencyMs      int `yaml:"load_latency_ms" default:"500" validate:"gte=0,lte=30000"`
	EventBuffer        int `yaml:"event_buffer" default:"32" validate:"gte=1"`
	IdleTimeoutMin     int `yaml:"idle_timeout_min" default:"120" validate:"gte=1"`
}

// UploadsConfig represents upload storage configuration.
type UploadsConfig struct {
	Dir      string `yaml:"dir" default:"data/uploads"`
	InboxDir string `yaml:"inbox_dir" default:"data/inbox"`
	Watch    bool   `yaml:"watch"`
	MaxBytes int64  `yaml:"max_bytes" default:"52428800" validate:"gte=1"`
}

// ModerationConfig represents playlist submission checks.
type ModerationConfig struct {
	Filters map[string]FilterConfig `yaml:"filters"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages for submission results.
type MessagesConfig struct {
	Submitted             string `yaml:"submitted" default:"Playlist submitted for review"`
	DefaultError          string `yaml:"default_error" default:"Playlist could not be submitted"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"A track is too short or too long"`
	DuplicateTrack        string `yaml:"duplicate_track" default:"The playlist contains the same track twice"`
	TrackCountOutOfRange  string `yaml:"track_count_out_of_range" default:"The playlist has too few or too many tracks"`
	PendingLimitReached   string `yaml:"pending_limit_reached" default:"You already have playlists waiting for review"`
	BlockedGenre          string `yaml:"blocked_genre" default:"The playlist contains a genre that is not allowed"`
}

// SpotifyConfig represents Spotify API configuration. Only needed for catalog import.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// LastFMConfig represents Last.fm API configuration. Only needed for emotion tagging.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
	MaxTag int    `yaml:"max_tags" default:"10" validate:"gte=1,lte=100"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output     string `yaml:"output" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"50"`
	MaxBackups int    `yaml:"max_backups" default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28"`
	Compress   bool   `yaml:"compress"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Auth.AdminToken = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
}

// GetMessage returns the message for the given submission result code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "submitted":
		return c.Messages.Submitted
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "track_count_out_of_range":
		return c.Messages.TrackCountOutOfRange
	case "pending_limit_reached":
		return c.Messages.PendingLimitReached
	case "blocked_genre":
		return c.Messages.BlockedGenre
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	hasSpotify := c.Spotify.ClientID != "" || c.Spotify.ClientSecret != "" || c.Spotify.RefreshToken != ""
	if hasSpotify && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "") {
		return errors.New("spotify: client_id, client_secret and refresh_token must be set together")
	}

	return nil
}

// IsFilterEnabled checks if a moderation filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Moderation.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// SpotifyEnabled reports whether catalog import credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != ""
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLMin) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTTLHrs) * time.Hour
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLSec) * time.Second
}
