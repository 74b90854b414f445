package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CategoryConfig is a seed category written on every start.
type CategoryConfig struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which form input is interpreted and
	// events are bucketed and displayed (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// TagSelection is "single" (default) or "multi".
	TagSelection string `yaml:"tag_selection" json:"tag_selection"`

	// Database is the SQLite file holding categories and events.
	Database string `yaml:"database" json:"database"`

	// MediaDir is the object bucket root for uploaded images, published
	// under MediaURLPrefix.
	MediaDir       string `yaml:"media_dir" json:"media_dir"`
	MediaURLPrefix string `yaml:"media_url_prefix" json:"media_url_prefix"`

	// HolidayDir holds per-year resources named <year>.json or <year>.ics.
	HolidayDir string `yaml:"holiday_dir" json:"holiday_dir"`

	// HolidayURL, when set, replaces HolidayDir with an HTTP source. The
	// literal "{year}" is substituted. Responses are cached in
	// HolidayCacheDir.
	HolidayURL      string `yaml:"holiday_url,omitempty" json:"holiday_url,omitempty"`
	HolidayCacheDir string `yaml:"holiday_cache_dir" json:"holiday_cache_dir"`

	// RecurringHolidays are RRULE strings expanded into every year,
	// e.g. "FREQ=YEARLY;BYMONTH=1;BYMONTHDAY=1".
	RecurringHolidays []string `yaml:"recurring_holidays" json:"recurring_holidays"`

	// SeedCategories are upserted on every start.
	SeedCategories []CategoryConfig `yaml:"seed_categories" json:"seed_categories"`

	// MirrorPath is the best-effort day-keyed event mirror file.
	MirrorPath string `yaml:"mirror_path" json:"mirror_path"`

	// MirrorRefresh is a cron spec for refreshing the mirror.
	MirrorRefresh string `yaml:"mirror_refresh" json:"mirror_refresh"`

	// ClientWait bounds the readiness poll of the database handle;
	// ClientPoll is the step between checks.
	ClientWait time.Duration `yaml:"client_wait" json:"client_wait"`
	ClientPoll time.Duration `yaml:"client_poll" json:"client_poll"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	WeekStartMonday = "monday"
	WeekStartSunday = "sunday"

	TagSelectionSingle = "single"
	TagSelectionMulti  = "multi"
)

func defaultSeedCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "勉強会", Color: "#4fc3f7"},
		{Name: "ほっと一息", Color: "#81c784"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "Asia/Tokyo",
		WeekStart:         WeekStartMonday,
		TagSelection:      TagSelectionSingle,
		Database:          "./var/eventcal.db",
		MediaDir:          "./var/event-images",
		MediaURLPrefix:    "/media/",
		HolidayDir:        "./holidays",
		HolidayCacheDir:   "./var/holiday-cache",
		RecurringHolidays: []string{},
		SeedCategories:    defaultSeedCategories(),
		MirrorPath:        "./var/events-mirror.json",
		MirrorRefresh:     "*/15 * * * *",
		ClientWait:        3 * time.Second,
		ClientPoll:        100 * time.Millisecond,
		LogLevel:          "info",
		BasicAuth:         nil,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case WeekStartMonday, WeekStartSunday:
	default:
		c.WeekStart = WeekStartMonday
	}
	switch c.TagSelection {
	case TagSelectionSingle, TagSelectionMulti:
	default:
		c.TagSelection = TagSelectionSingle
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.MediaDir == "" {
		c.MediaDir = def.MediaDir
	}
	if c.MediaURLPrefix == "" {
		c.MediaURLPrefix = def.MediaURLPrefix
	}
	if c.HolidayDir == "" {
		c.HolidayDir = def.HolidayDir
	}
	if c.HolidayCacheDir == "" {
		c.HolidayCacheDir = def.HolidayCacheDir
	}
	if c.RecurringHolidays == nil {
		c.RecurringHolidays = []string{}
	}
	if c.SeedCategories == nil {
		c.SeedCategories = defaultSeedCategories()
	}
	if c.MirrorPath == "" {
		c.MirrorPath = def.MirrorPath
	}
	if c.MirrorRefresh == "" {
		c.MirrorRefresh = def.MirrorRefresh
	}
	if c.ClientWait <= 0 {
		c.ClientWait = def.ClientWait
	}
	if c.ClientPoll <= 0 {
		c.ClientPoll = def.ClientPoll
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Location resolves Timezone, falling back to time.Local when the name is
// unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SundayStart reports whether calendar weeks start on Sunday.
func (c *Config) SundayStart() bool {
	return c.WeekStart == WeekStartSunday
}

// MultiSelect reports whether events may carry several tags.
func (c *Config) MultiSelect() bool {
	return c.TagSelection == TagSelectionMulti
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with the defaults (0600) and the defaults are
// returned. An existing file is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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
// permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
