package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Local"
	defaultTimestampLayout = "1/2/2006, 3:04:05 PM"
	defaultLogLevel        = "info"
	defaultDataDir         = "./var"
)

// CalendarConfig describes one calendar moodcal can see. A calendar backed
// by Path is a local .ics file and accepts new events; a calendar backed by
// URL is a read-only subscription used only for history.
type CalendarConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to render entry timestamps and
	// history. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// TimestampLayout is the Go time layout for entry timestamps.
	TimestampLayout string `yaml:"timestamp_layout" json:"timestamp_layout"`

	// ShareMode is "text_summary" (default) or "last_image".
	ShareMode model.ShareMode `yaml:"share_mode" json:"share_mode"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Reminder is a cron expression for "log your mood" notices. Empty
	// disables reminders.
	Reminder string `yaml:"reminder" json:"reminder"`

	// CalendarAccess is the answer the calendar permission request gets.
	CalendarAccess bool `yaml:"calendar_access" json:"calendar_access"`

	// Calendars lists the calendars in enumeration order. The first one
	// with a path receives mood events; url calendars feed history only.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// DataDir holds the subscription cache, the image inbox and the share
	// outbox unless those are set explicitly.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// ImageDir is where the image picker looks for photos.
	ImageDir string `yaml:"image_dir" json:"image_dir"`

	// ShareDir is where shared payloads are written.
	ShareDir string `yaml:"share_dir" json:"share_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		TimestampLayout: defaultTimestampLayout,
		ShareMode:       model.ShareTextSummary,
		LogLevel:        defaultLogLevel,
		CalendarAccess:  true,
		Calendars: []CalendarConfig{
			{ID: "moods", Name: "Moods", Path: filepath.Join(defaultDataDir, "moods.ics")},
		},
		DataDir: defaultDataDir,
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.TimestampLayout == "" {
		c.TimestampLayout = defaultTimestampLayout
	}
	if !c.ShareMode.Valid() {
		c.ShareMode = model.ShareTextSummary
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.ImageDir == "" {
		c.ImageDir = filepath.Join(c.DataDir, "images")
	}
	if c.ShareDir == "" {
		c.ShareDir = filepath.Join(c.DataDir, "outbox")
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		if cal.ID == "" {
			switch {
			case cal.Name != "":
				cal.ID = cal.Name
			case cal.Path != "":
				cal.ID = filepath.Base(cal.Path)
			default:
				cal.ID = cal.URL
			}
		}
		if cal.Name == "" {
			cal.Name = cal.ID
		}
	}
}

// Location resolves Timezone, falling back to time.Local when the zone is
// unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// CacheDir is the disk cache for subscribed calendars.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "ics-cache")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".moodcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
