package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cadence/internal/catalog"
	"cadence/internal/coverart"
	"cadence/internal/db"
	"cadence/internal/scanner"
	"cadence/internal/storage"
	"cadence/internal/tags"
)

const (
	MaxBatchSize           = 16
	DefaultCleanupInterval = 24 * time.Hour
	DefaultLogLevel        = "info"
	defaultConfigFilePerm  = 0o644
	minArtworkNameLength   = 8
	maxArtworkNameLength   = 128
	minThumbnailSize       = 32
	maxThumbnailSize       = 512
)

type Config struct {
	DatabasePath string `yaml:"database_path"`
	ArtworkDir   string `yaml:"artwork_dir"`
	LogLevel     string `yaml:"log_level"`

	Scan    ScanConfig    `yaml:"scan"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Store   StoreConfig   `yaml:"store"`
	Artwork ArtworkConfig `yaml:"artwork"`
	Watch   WatchConfig   `yaml:"watch"`
}

type ScanConfig struct {
	BatchSize         int      `yaml:"batch_size"`
	MaxFileBytes      int64    `yaml:"max_file_bytes"`
	AudioExtensions   []string `yaml:"audio_extensions"`
	IgnoredExtensions []string `yaml:"ignored_extensions"`
}

type CleanupConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type StoreConfig struct {
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	Attempts  int           `yaml:"attempts"`
}

type ArtworkConfig struct {
	MaxNameLength int   `yaml:"max_name_length"`
	Thumbnails    *bool `yaml:"thumbnails"`
	ThumbnailSize int   `yaml:"thumbnail_size"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns a configuration with every field populated. Paths are left
// empty; callers fill them from ResolvePaths.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. A missing file yields Default().
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes cfg as YAML, creating or truncating path.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, defaultConfigFilePerm); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	return nil
}

// WithPaths fills empty path fields from resolved defaults.
func (c Config) WithPaths(paths Paths) Config {
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = paths.DBPath
	}
	if strings.TrimSpace(c.ArtworkDir) == "" {
		c.ArtworkDir = paths.ArtworkDir
	}
	return c
}

func (c Config) ThumbnailsEnabled() bool {
	return c.Artwork.Thumbnails == nil || *c.Artwork.Thumbnails
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = scanner.DefaultBatchSize
	}
	if c.Scan.BatchSize > MaxBatchSize {
		c.Scan.BatchSize = MaxBatchSize
	}
	if c.Scan.MaxFileBytes <= 0 {
		c.Scan.MaxFileBytes = tags.DefaultMaxFileBytes
	}
	if len(c.Scan.AudioExtensions) == 0 {
		c.Scan.AudioExtensions = append([]string(nil), storage.DefaultAudioExtensions...)
	}
	if c.Scan.IgnoredExtensions == nil {
		c.Scan.IgnoredExtensions = append([]string(nil), storage.DefaultIgnoredExtensions...)
	}
	c.Scan.AudioExtensions = normalizeExtensions(c.Scan.AudioExtensions)
	c.Scan.IgnoredExtensions = normalizeExtensions(c.Scan.IgnoredExtensions)

	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = DefaultCleanupInterval
	}

	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = db.DefaultBusyTimeout
	}
	retry := catalog.DefaultRetryPolicy()
	if c.Store.Retry.BaseDelay <= 0 {
		c.Store.Retry.BaseDelay = retry.BaseDelay
	}
	if c.Store.Retry.MaxDelay <= 0 {
		c.Store.Retry.MaxDelay = retry.MaxDelay
	}
	if c.Store.Retry.MaxDelay < c.Store.Retry.BaseDelay {
		c.Store.Retry.MaxDelay = c.Store.Retry.BaseDelay
	}
	if c.Store.Retry.Attempts <= 0 {
		c.Store.Retry.Attempts = retry.Attempts
	}

	if c.Artwork.MaxNameLength <= 0 {
		c.Artwork.MaxNameLength = coverart.DefaultMaxNameLength
	}
	c.Artwork.MaxNameLength = clampInt(c.Artwork.MaxNameLength, minArtworkNameLength, maxArtworkNameLength)
	if c.Artwork.ThumbnailSize <= 0 {
		c.Artwork.ThumbnailSize = coverart.DefaultPlayerThumbnailSize
	}
	c.Artwork.ThumbnailSize = clampInt(c.Artwork.ThumbnailSize, minThumbnailSize, maxThumbnailSize)

	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = scanner.DefaultWatchDebounce
	}
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		normalized = append(normalized, ext)
	}
	return normalized
}

func clampInt(value int, minimum int, maximum int) int {
	if value < minimum {
		return minimum
	}
	if value > maximum {
		return maximum
	}
	return value
}
