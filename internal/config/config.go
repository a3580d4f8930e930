// Package config loads subdeck settings from a TOML file, then applies
// .env and SUBDECK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Playback PlaybackConfig `toml:"playback"`
	Timeline TimelineConfig `toml:"timeline"`
	Player   PlayerConfig   `toml:"player"`
	Storage  StorageConfig  `toml:"storage"`
	Bridge   BridgeConfig   `toml:"bridge"`
}

type PlaybackConfig struct {
	AutoPause      bool    `toml:"auto_pause"`
	SingleRepeat   bool    `toml:"single_repeat"`
	OverdueMs      int     `toml:"overdue_ms"`
	InertialSeekMs int     `toml:"inertial_seek_ms"`
	PreviewSeconds float64 `toml:"preview_seconds"`
	MinPreview     float64 `toml:"min_preview_seconds"`
	AdjustStep     float64 `toml:"adjust_step"`
}

type TimelineConfig struct {
	BucketSeconds   float64 `toml:"bucket_seconds"`
	AdjustThreshold float64 `toml:"adjust_threshold"`
}

type PlayerConfig struct {
	HWDec  string `toml:"hwdec"`
	Volume int    `toml:"volume"`
	OSD    bool   `toml:"osd"`
}

type StorageConfig struct {
	// Path of the sqlite database; empty means <config dir>/adjustments.db.
	Path string `toml:"path"`
}

type BridgeConfig struct {
	// Listen is the bridge address; empty disables the HTTP bridge.
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors_origins"`
}

func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			OverdueMs:      600,
			InertialSeekMs: 200,
			PreviewSeconds: 1,
			MinPreview:     0.2,
			AdjustStep:     0.2,
		},
		Timeline: TimelineConfig{
			BucketSeconds:   10,
			AdjustThreshold: 0.05,
		},
		Player: PlayerConfig{
			HWDec:  "auto-safe",
			Volume: 100,
			OSD:    true,
		},
		Bridge: BridgeConfig{
			CORSOrigins: []string{"*"},
		},
	}
}

// Overdue is the overdue window as a duration.
func (p PlaybackConfig) Overdue() time.Duration {
	return time.Duration(p.OverdueMs) * time.Millisecond
}

// InertialSeek is the seek debounce window as a duration.
func (p PlaybackConfig) InertialSeek() time.Duration {
	return time.Duration(p.InertialSeekMs) * time.Millisecond
}

func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "subdeck"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath returns the storage path, defaulting into the config dir.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "adjustments.db"), nil
}

// Load reads the config file at path (the default location when empty). A
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, cfg.applyEnv()
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored. With no paths, ".env" is used.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	c.Playback.AutoPause, err = envBool("SUBDECK_AUTO_PAUSE", c.Playback.AutoPause)
	if err != nil {
		return err
	}
	c.Playback.SingleRepeat, err = envBool("SUBDECK_SINGLE_REPEAT", c.Playback.SingleRepeat)
	if err != nil {
		return err
	}
	c.Playback.OverdueMs = GetEnvInt("SUBDECK_OVERDUE_MS", c.Playback.OverdueMs)
	c.Playback.InertialSeekMs = GetEnvInt("SUBDECK_INERTIAL_SEEK_MS", c.Playback.InertialSeekMs)
	c.Timeline.BucketSeconds = getEnvFloat("SUBDECK_BUCKET_SECONDS", c.Timeline.BucketSeconds)
	c.Storage.Path = GetEnv("SUBDECK_DB", c.Storage.Path)
	c.Bridge.Listen = GetEnv("SUBDECK_LISTEN", c.Bridge.Listen)
	c.Player.HWDec = GetEnv("SUBDECK_HWDEC", c.Player.HWDec)
	return nil
}

// GetEnv returns the value of key, or fallback if it is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if it is unset,
// empty or not an integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
