package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SheetsSettings configuration for the spreadsheet mirror
type SheetsSettings struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
	RetryMax   time.Duration `mapstructure:"retry_max"`
}

// NotifySettings configuration for the run summary webhook
type NotifySettings struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxWait    time.Duration `mapstructure:"max_wait"`
}

// SearchSettings configuration for the search index
type SearchSettings struct {
	MaxResults int `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	BaseDir       string         `mapstructure:"base_dir"`
	SourcesDir    string         `mapstructure:"sources_dir"`
	CategoryRules string         `mapstructure:"category_rules"`
	MaxFileSize   int64          `mapstructure:"max_file_size"`
	LockTimeout   time.Duration  `mapstructure:"lock_timeout"`
	Org           string         `mapstructure:"org"`
	Search        SearchSettings `mapstructure:"search"`
	Sheets        SheetsSettings `mapstructure:"sheets"`
	Notify        NotifySettings `mapstructure:"notify"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("base_dir", defaultBaseDir())
	v.SetDefault("sources_dir", "sources")
	v.SetDefault("category_rules", "")
	v.SetDefault("max_file_size", int64(32*1024*1024)) // 32MB
	v.SetDefault("lock_timeout", 5*time.Minute)
	v.SetDefault("org", "")
	v.SetDefault("search.max_results", 20)
	v.SetDefault("sheets.enabled", false)
	v.SetDefault("sheets.timeout", 30*time.Second)
	v.SetDefault("sheets.retry_count", 5)
	v.SetDefault("sheets.retry_wait", time.Second)
	v.SetDefault("sheets.retry_max", 30*time.Second)
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.max_wait", time.Minute)

	// Environment variables
	v.SetEnvPrefix("DIRSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("search.max_results", "DIRSYNC_SEARCH_MAX_RESULTS")
	_ = v.BindEnv("sheets.enabled", "DIRSYNC_SHEETS_ENABLED")
	_ = v.BindEnv("sheets.base_url", "DIRSYNC_SHEETS_BASE_URL")
	_ = v.BindEnv("sheets.token", "DIRSYNC_SHEETS_TOKEN")
	_ = v.BindEnv("sheets.timeout", "DIRSYNC_SHEETS_TIMEOUT")
	_ = v.BindEnv("sheets.retry_count", "DIRSYNC_SHEETS_RETRY_COUNT")
	_ = v.BindEnv("sheets.retry_wait", "DIRSYNC_SHEETS_RETRY_WAIT")
	_ = v.BindEnv("sheets.retry_max", "DIRSYNC_SHEETS_RETRY_MAX")
	_ = v.BindEnv("notify.webhook_url", "DIRSYNC_NOTIFY_WEBHOOK_URL")
	_ = v.BindEnv("notify.timeout", "DIRSYNC_NOTIFY_TIMEOUT")
	_ = v.BindEnv("notify.max_wait", "DIRSYNC_NOTIFY_MAX_WAIT")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("base_dir", flags.Lookup("base-dir"))
		_ = v.BindPFlag("sources_dir", flags.Lookup("sources-dir"))
		_ = v.BindPFlag("category_rules", flags.Lookup("category-rules"))
		_ = v.BindPFlag("max_file_size", flags.Lookup("max-file-size"))
		_ = v.BindPFlag("lock_timeout", flags.Lookup("lock-timeout"))
		_ = v.BindPFlag("org", flags.Lookup("org"))
		_ = v.BindPFlag("search.max_results", flags.Lookup("max-results"))
		_ = v.BindPFlag("sheets.enabled", flags.Lookup("sheets-enabled"))
		_ = v.BindPFlag("sheets.base_url", flags.Lookup("sheets-base-url"))
		_ = v.BindPFlag("sheets.token", flags.Lookup("sheets-token"))
		_ = v.BindPFlag("notify.webhook_url", flags.Lookup("webhook-url"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Expand home directory in base_dir
	settings.BaseDir = expandHomeDir(settings.BaseDir)

	return &settings, nil
}

// defaultBaseDir returns the default state directory
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dirsync"
	}
	return filepath.Join(home, ".dirsync")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for incomplete or contradictory configuration.
func ValidateSettings(s *Settings) error {
	if s.BaseDir == "" {
		return errors.New("base-dir cannot be empty")
	}
	if s.MaxFileSize <= 0 {
		return errors.New("max-file-size must be positive")
	}
	if s.LockTimeout <= 0 {
		return errors.New("lock-timeout must be positive")
	}
	if s.Search.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}
	if err := validateSheetsSettings(&s.Sheets); err != nil {
		return err
	}
	if s.Notify.WebhookURL != "" {
		if s.Notify.Timeout <= 0 {
			return errors.New("notify timeout must be positive")
		}
		if s.Notify.MaxWait <= 0 {
			return errors.New("notify max_wait must be positive")
		}
	}
	return nil
}

func validateSheetsSettings(s *SheetsSettings) error {
	if !s.Enabled {
		return nil // No validation needed when disabled
	}
	if s.BaseURL == "" {
		return errors.New("sheets-enabled requires sheets-base-url")
	}
	if s.Timeout <= 0 {
		return errors.New("sheets timeout must be positive")
	}
	if s.RetryCount <= 0 {
		return errors.New("sheets retry_count must be positive")
	}
	if s.RetryWait <= 0 || s.RetryMax <= 0 {
		return errors.New("sheets retry waits must be positive")
	}
	return nil
}
