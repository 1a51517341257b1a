package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"image-syncer/internal/gesture"
)

// Config is the client configuration. Zero values in a loaded file keep the
// defaults.
type Config struct {
	Server struct {
		URL       string `yaml:"url" toml:"url"`             // gallery server base URL
		Username  string `yaml:"username" toml:"username"`   // login user, empty to skip login
		Password  string `yaml:"password" toml:"password"`   // login password
		TimeoutMS int    `yaml:"timeout_ms" toml:"timeout_ms"` // per-request timeout
		PageSize  int    `yaml:"page_size" toml:"page_size"` // items per /files page
	} `yaml:"server" toml:"server"`
	Gesture struct {
		MoveThreshold float64 `yaml:"move_threshold" toml:"move_threshold"`
		DirectionLock float64 `yaml:"direction_lock" toml:"direction_lock"`
		MinSwipe      float64 `yaml:"min_swipe" toml:"min_swipe"`
		MaxTapMS      int     `yaml:"max_tap_ms" toml:"max_tap_ms"`
		CellWidth     float64 `yaml:"cell_width" toml:"cell_width"`   // gesture units per terminal column
		CellHeight    float64 `yaml:"cell_height" toml:"cell_height"` // gesture units per terminal row
	} `yaml:"gesture" toml:"gesture"`
	Viewer struct {
		CrossfadeMS int `yaml:"crossfade_ms" toml:"crossfade_ms"`
		ToastMS     int `yaml:"toast_ms" toml:"toast_ms"`
	} `yaml:"viewer" toml:"viewer"`
	Batch struct {
		Concurrency int    `yaml:"concurrency" toml:"concurrency"` // 0 = one request per item
		DownloadDir string `yaml:"download_dir" toml:"download_dir"`
	} `yaml:"batch" toml:"batch"`
	Offline struct {
		Enabled   bool   `yaml:"enabled" toml:"enabled"`
		CacheName string `yaml:"cache_name" toml:"cache_name"`
		DBPath    string `yaml:"db_path" toml:"db_path"`
	} `yaml:"offline" toml:"offline"`
	Upload struct {
		MaxDepth       int      `yaml:"max_depth" toml:"max_depth"`
		Excludes       []string `yaml:"excludes" toml:"excludes"`
		FollowSymlinks bool     `yaml:"follow_symlinks" toml:"follow_symlinks"`
	} `yaml:"upload" toml:"upload"`
	Watch struct {
		DebounceMS int `yaml:"debounce_ms" toml:"debounce_ms"`
	} `yaml:"watch" toml:"watch"`
	Log struct {
		Level string `yaml:"level" toml:"level"`
		File  string `yaml:"file" toml:"file"`
	} `yaml:"log" toml:"log"`
}

// New returns the default configuration.
func New() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:5000"
	cfg.Server.TimeoutMS = 30000
	cfg.Server.PageSize = 50

	th := gesture.DefaultThresholds()
	cfg.Gesture.MoveThreshold = th.Move
	cfg.Gesture.DirectionLock = th.DirectionLock
	cfg.Gesture.MinSwipe = th.MinSwipe
	cfg.Gesture.MaxTapMS = int(th.MaxTap / time.Millisecond)
	cfg.Gesture.CellWidth = 8
	cfg.Gesture.CellHeight = 16

	cfg.Viewer.CrossfadeMS = 150
	cfg.Viewer.ToastMS = 3000

	cfg.Batch.DownloadDir = "."

	cfg.Offline.CacheName = "image-syncer-v2"
	cfg.Offline.DBPath = filepath.Join(stateDir(), "offline.db")

	cfg.Upload.MaxDepth = -1
	cfg.Watch.DebounceMS = 1500

	cfg.Log.Level = "info"
	cfg.Log.File = filepath.Join(stateDir(), "image-syncer.log")
	return cfg
}

func stateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "image-syncer")
	}
	return "."
}

// DefaultPath is ~/.config/image-syncer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "image-syncer", "config.yaml"), nil
}

// LoadConfig loads configuration from the default location.
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads configuration from path. A missing file yields the
// defaults. Files ending in .toml are parsed as TOML, everything else as YAML.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid configuration: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var loaded Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &loaded); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.merge(&loaded)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	setString(&c.Server.URL, o.Server.URL)
	setString(&c.Server.Username, o.Server.Username)
	setString(&c.Server.Password, o.Server.Password)
	setInt(&c.Server.TimeoutMS, o.Server.TimeoutMS)
	setInt(&c.Server.PageSize, o.Server.PageSize)

	setFloat(&c.Gesture.MoveThreshold, o.Gesture.MoveThreshold)
	setFloat(&c.Gesture.DirectionLock, o.Gesture.DirectionLock)
	setFloat(&c.Gesture.MinSwipe, o.Gesture.MinSwipe)
	setInt(&c.Gesture.MaxTapMS, o.Gesture.MaxTapMS)
	setFloat(&c.Gesture.CellWidth, o.Gesture.CellWidth)
	setFloat(&c.Gesture.CellHeight, o.Gesture.CellHeight)

	setInt(&c.Viewer.CrossfadeMS, o.Viewer.CrossfadeMS)
	setInt(&c.Viewer.ToastMS, o.Viewer.ToastMS)

	setInt(&c.Batch.Concurrency, o.Batch.Concurrency)
	setString(&c.Batch.DownloadDir, o.Batch.DownloadDir)

	c.Offline.Enabled = o.Offline.Enabled
	setString(&c.Offline.CacheName, o.Offline.CacheName)
	setString(&c.Offline.DBPath, o.Offline.DBPath)

	if o.Upload.MaxDepth != 0 {
		c.Upload.MaxDepth = o.Upload.MaxDepth
	}
	if len(o.Upload.Excludes) > 0 {
		c.Upload.Excludes = o.Upload.Excludes
	}
	c.Upload.FollowSymlinks = o.Upload.FollowSymlinks

	setInt(&c.Watch.DebounceMS, o.Watch.DebounceMS)
	setString(&c.Log.Level, o.Log.Level)
	setString(&c.Log.File, o.Log.File)
}

func (c *Config) applyEnv() {
	setString(&c.Server.URL, os.Getenv("IMAGE_SYNCER_SERVER"))
	setString(&c.Server.Username, os.Getenv("IMAGE_SYNCER_USERNAME"))
	setString(&c.Server.Password, os.Getenv("IMAGE_SYNCER_PASSWORD"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.url %q is not an absolute URL", c.Server.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Server.PageSize < 1 {
		return fmt.Errorf("server.page_size must be positive")
	}
	if c.Server.TimeoutMS < 0 {
		return fmt.Errorf("server.timeout_ms must not be negative")
	}
	if c.Gesture.MoveThreshold < 0 || c.Gesture.DirectionLock < 0 || c.Gesture.MinSwipe < 0 || c.Gesture.MaxTapMS < 0 {
		return fmt.Errorf("gesture thresholds must not be negative")
	}
	if c.Gesture.CellWidth <= 0 || c.Gesture.CellHeight <= 0 {
		return fmt.Errorf("gesture cell size must be positive")
	}
	if c.Viewer.CrossfadeMS < 0 || c.Viewer.ToastMS < 0 {
		return fmt.Errorf("viewer durations must not be negative")
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency must not be negative")
	}
	if c.Offline.Enabled && c.Offline.CacheName == "" {
		return fmt.Errorf("offline.cache_name is required when offline caching is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}

// Thresholds converts the gesture section.
func (c *Config) Thresholds() gesture.Thresholds {
	return gesture.Thresholds{
		Move:          c.Gesture.MoveThreshold,
		DirectionLock: c.Gesture.DirectionLock,
		MinSwipe:      c.Gesture.MinSwipe,
		MaxTap:        time.Duration(c.Gesture.MaxTapMS) * time.Millisecond,
	}
}

// Timeout is the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutMS) * time.Millisecond
}

// Crossfade is the viewer crossfade interval.
func (c *Config) Crossfade() time.Duration {
	return time.Duration(c.Viewer.CrossfadeMS) * time.Millisecond
}

// ToastDuration is how long notifications stay up.
func (c *Config) ToastDuration() time.Duration {
	return time.Duration(c.Viewer.ToastMS) * time.Millisecond
}

// Debounce is the quiet period the folder watcher waits before uploading.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
