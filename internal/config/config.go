package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Refresh
	RefreshWindowMinutes   int // Throttle window for automatic refresh (default: 10)
	RefreshIntervalMinutes int // How often the scheduler attempts a refresh (default: 5)

	// Home lists
	ResumeLimit int
	NextUpLimit int

	// Server
	ServerPort string

	// Paths
	SessionFile  string // $CONFIG_DIR/session.json
	DatabaseFile string // $CONFIG_DIR/jellysync.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("REFRESH_WINDOW_MINUTES", 10)
	viper.SetDefault("REFRESH_INTERVAL_MINUTES", 5)
	viper.SetDefault("RESUME_LIMIT", 12)
	viper.SetDefault("NEXTUP_LIMIT", 24)
	viper.SetDefault("SERVER_PORT", "8096")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "jellysync")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		RefreshWindowMinutes:   viper.GetInt("REFRESH_WINDOW_MINUTES"),
		RefreshIntervalMinutes: viper.GetInt("REFRESH_INTERVAL_MINUTES"),

		ResumeLimit: viper.GetInt("RESUME_LIMIT"),
		NextUpLimit: viper.GetInt("NEXTUP_LIMIT"),

		ServerPort: viper.GetString("SERVER_PORT"),

		SessionFile:  filepath.Join(configDir, "session.json"),
		DatabaseFile: filepath.Join(configDir, "jellysync.db"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if config.RefreshWindowMinutes <= 0 {
		return nil, fmt.Errorf("REFRESH_WINDOW_MINUTES must be positive")
	}
	if config.RefreshIntervalMinutes <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL_MINUTES must be positive")
	}

	return config, nil
}
