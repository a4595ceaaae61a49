package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the process needs, resolved once at startup and
// immutable afterwards. Handlers receive it explicitly; nothing reads the
// environment after Load returns.
type Config struct {
	// APIKey authenticates manifest and folder requests.
	APIKey string
	// ArchiveRoot is the base directory every served folder lives under.
	ArchiveRoot string
	// AllowedFolders is the whitelist of web-relative folder prefixes.
	AllowedFolders []string
	// RateLimit is the per-client request ceiling within RateWindow.
	RateLimit int
	// RateWindow is the rate-limit accounting window.
	RateWindow time.Duration
	// ProbeAudio enables external probe metadata for audio files.
	ProbeAudio bool
	// ExtractTags enables embedded tag extraction for audio files.
	ExtractTags bool
	// Environment is reported by the health endpoint.
	Environment string
}

// fileConfig is the optional JSON config file shape. Set ARKIVE_CONFIG to
// its path; present fields override the environment.
type fileConfig struct {
	APIKey         *string  `json:"apiKey"`
	ArchiveRoot    *string  `json:"archiveRoot"`
	AllowedFolders []string `json:"allowedFolders"`
	RateLimit      *int     `json:"rateLimit"`
	RateWindow     *string  `json:"rateWindow"`
	ProbeAudio     *bool    `json:"probeAudio"`
	ExtractTags    *bool    `json:"extractTags"`
	Environment    *string  `json:"environment"`
}

// Load builds the process configuration from the environment and the
// optional config file.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:      os.Getenv("ARKIVE_API_KEY"),
		ArchiveRoot: getEnvDefault("ARKIVE_ROOT", "./archive"),
		RateLimit:   60,
		RateWindow:  time.Minute,
		ProbeAudio:  getEnvBool("ARKIVE_PROBE_AUDIO", true),
		ExtractTags: getEnvBool("ARKIVE_EXTRACT_TAGS", true),
		Environment: getEnvDefault("ARKIVE_ENV", "production"),
	}

	if folders := os.Getenv("ARKIVE_ALLOWED_FOLDERS"); folders != "" {
		cfg.AllowedFolders = splitList(folders)
	}
	if limit := os.Getenv("ARKIVE_RATE_LIMIT"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid ARKIVE_RATE_LIMIT %q", limit)
		}
		cfg.RateLimit = n
	}
	if window := os.Getenv("ARKIVE_RATE_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ARKIVE_RATE_WINDOW %q", window)
		}
		cfg.RateWindow = d
	}

	if path := os.Getenv("ARKIVE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays values from the JSON config file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.APIKey != nil {
		c.APIKey = *fc.APIKey
	}
	if fc.ArchiveRoot != nil {
		c.ArchiveRoot = *fc.ArchiveRoot
	}
	if fc.AllowedFolders != nil {
		c.AllowedFolders = fc.AllowedFolders
	}
	if fc.RateLimit != nil {
		if *fc.RateLimit < 1 {
			return fmt.Errorf("invalid rateLimit %d in config file", *fc.RateLimit)
		}
		c.RateLimit = *fc.RateLimit
	}
	if fc.RateWindow != nil {
		d, err := time.ParseDuration(*fc.RateWindow)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid rateWindow %q in config file", *fc.RateWindow)
		}
		c.RateWindow = d
	}
	if fc.ProbeAudio != nil {
		c.ProbeAudio = *fc.ProbeAudio
	}
	if fc.ExtractTags != nil {
		c.ExtractTags = *fc.ExtractTags
	}
	if fc.Environment != nil {
		c.Environment = *fc.Environment
	}

	return nil
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
