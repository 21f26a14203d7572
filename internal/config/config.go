package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
	YouTubeAPIKey       string `yaml:"youtube_api_key"`

	CacheDir      string `yaml:"cache_dir"`
	MaxFileSizeMB int64  `yaml:"max_file_size_mb"`
	AudioBitrate  string `yaml:"audio_bitrate"`

	RateLimitRequests int `yaml:"rate_limit_requests"`
	RateLimitWindowS  int `yaml:"rate_limit_window_seconds"`

	HTTPTimeoutS    int     `yaml:"http_timeout_seconds"`
	HTTPMaxRedirect int     `yaml:"http_max_redirects"`
	RetryAttempts   int     `yaml:"retry_attempts"`
	BackoffBase     float64 `yaml:"backoff_base"`

	ListenAddr string `yaml:"listen_addr"`
	Verbose    bool   `yaml:"verbose"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		CacheDir:          filepath.Join(homeDir(), ".cache", "audiobot"),
		MaxFileSizeMB:     50,
		AudioBitrate:      "320k",
		RateLimitRequests: 3,
		RateLimitWindowS:  60,
		HTTPTimeoutS:      30,
		HTTPMaxRedirect:   3,
		RetryAttempts:     3,
		BackoffBase:       1.5,
		ListenAddr:        ":8080",
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file
// found. Secrets from the environment win over the file.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.CacheDir = ExpandHome(cfg.CacheDir)
	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.SpotifyClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.SpotifyClientSecret = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTubeAPIKey = v
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./audiobot.yaml",
		"./audiobot.yml",
		filepath.Join(home, ".config", "audiobot", "config.yaml"),
		filepath.Join(home, ".config", "audiobot", "config.yml"),
		filepath.Join(home, ".audiobot.yaml"),
		filepath.Join(home, ".audiobot.yml"),
	}

	for _, path := range locations {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "audiobot", "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// MaxFileSizeBytes returns the artifact size limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return fmt.Errorf("spotify credentials are required: set spotify_client_id and spotify_client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)")
	}
	if c.YouTubeAPIKey == "" {
		return fmt.Errorf("youtube API key is required: set youtube_api_key (or YOUTUBE_API_KEY)")
	}

	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	if c.MaxFileSizeMB < 1 {
		return fmt.Errorf("max_file_size_mb must be at least 1, got %d", c.MaxFileSizeMB)
	}

	if c.RateLimitRequests < 1 {
		return fmt.Errorf("rate_limit_requests must be at least 1, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindowS < 1 {
		return fmt.Errorf("rate_limit_window_seconds must be at least 1, got %d", c.RateLimitWindowS)
	}

	if c.HTTPTimeoutS < 1 {
		return fmt.Errorf("http_timeout_seconds must be at least 1, got %d", c.HTTPTimeoutS)
	}
	if c.HTTPMaxRedirect < 0 {
		return fmt.Errorf("http_max_redirects cannot be negative, got %d", c.HTTPMaxRedirect)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.BackoffBase < 1 {
		return fmt.Errorf("backoff_base must be at least 1.0, got %.2f", c.BackoffBase)
	}

	if !strings.HasSuffix(c.AudioBitrate, "k") {
		return fmt.Errorf("audio_bitrate must be an ffmpeg bitrate like '320k', got %q", c.AudioBitrate)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}

	return nil
}
