package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// TMDB
	TMDBAPIKey  string
	TMDBBaseURL string
	TMDBAuthURL string // Where users approve request tokens
	TMDBTimeout time.Duration

	// Sync
	ResyncCron     string
	ResyncDebounce time.Duration // Minimum gap between two unforced resyncs (default: 30s)
	SweepCron      string
	SweepDelay     time.Duration // Delay before the first sweep after start (default: 2m)

	// Backup
	BackupEnabled    bool
	BackupCron       string
	BackupBaseURL    string
	BackupDocumentID string
	BackupToken      string
	BackupFilename   string

	// Server
	ServerPort string

	// Paths
	DatabaseFile   string // $CONFIG_DIR/seenarr.db
	LegacyStateDir string // $CONFIG_DIR/legacy unless LEGACY_STATE_DIR is set

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Missing .env is fine
	_ = v.ReadInConfig()

	setDefaults(v)

	configDir, err := resolveConfigDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	legacyDir := v.GetString("LEGACY_STATE_DIR")
	if legacyDir == "" {
		legacyDir = filepath.Join(configDir, "legacy")
	}

	cfg := &Config{
		TMDBAPIKey:  v.GetString("TMDB_API_KEY"),
		TMDBBaseURL: v.GetString("TMDB_BASE_URL"),
		TMDBAuthURL: v.GetString("TMDB_AUTH_URL"),
		TMDBTimeout: time.Duration(v.GetInt("TMDB_TIMEOUT_SECONDS")) * time.Second,

		ResyncCron:     v.GetString("RESYNC_CRON"),
		ResyncDebounce: time.Duration(v.GetInt("RESYNC_DEBOUNCE_SECONDS")) * time.Second,
		SweepCron:      v.GetString("SWEEP_CRON"),
		SweepDelay:     time.Duration(v.GetInt("SWEEP_DELAY_SECONDS")) * time.Second,

		BackupEnabled:    v.GetBool("BACKUP_ENABLED"),
		BackupCron:       v.GetString("BACKUP_CRON"),
		BackupBaseURL:    v.GetString("BACKUP_BASE_URL"),
		BackupDocumentID: v.GetString("BACKUP_DOCUMENT_ID"),
		BackupToken:      v.GetString("BACKUP_TOKEN"),
		BackupFilename:   v.GetString("BACKUP_FILENAME"),

		ServerPort: v.GetString("SERVER_PORT"),

		DatabaseFile:   filepath.Join(configDir, "seenarr.db"),
		LegacyStateDir: legacyDir,

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	v.SetDefault("TMDB_AUTH_URL", "https://www.themoviedb.org/authenticate")
	v.SetDefault("TMDB_TIMEOUT_SECONDS", 30)
	v.SetDefault("RESYNC_CRON", "0 */6 * * *")
	v.SetDefault("RESYNC_DEBOUNCE_SECONDS", 30)
	v.SetDefault("SWEEP_CRON", "15 * * * *")
	v.SetDefault("SWEEP_DELAY_SECONDS", 120)
	v.SetDefault("BACKUP_ENABLED", false)
	v.SetDefault("BACKUP_CRON", "30 3 * * *")
	v.SetDefault("BACKUP_BASE_URL", "https://api.github.com")
	v.SetDefault("BACKUP_FILENAME", "seenarr-backup.txt")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func resolveConfigDir(dir string) (string, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "seenarr"), nil
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}

// Validate checks field combinations that cannot work at runtime.
// The TMDB API key is optional here: it may come from persisted state.
func (c *Config) Validate() error {
	if c.ResyncDebounce < 0 {
		return fmt.Errorf("RESYNC_DEBOUNCE_SECONDS must not be negative")
	}
	if c.BackupEnabled {
		if c.BackupDocumentID == "" {
			return fmt.Errorf("BACKUP_DOCUMENT_ID is required when BACKUP_ENABLED is set")
		}
		if c.BackupToken == "" {
			return fmt.Errorf("BACKUP_TOKEN is required when BACKUP_ENABLED is set")
		}
	}
	return nil
}

// BackupConfigured reports whether the remote document store can be reached.
func (c *Config) BackupConfigured() bool {
	return c.BackupDocumentID != "" && c.BackupToken != ""
}
