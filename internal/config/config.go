package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/vilfredos/logviewer/internal/parser"
)

// Config holds all application configuration
type Config struct {
	DBPath         string `yaml:"db_path"`         // Path to SQLite database file
	Listen         string `yaml:"listen"`          // HTTP listen address
	UploadDir      string `yaml:"upload_dir"`      // Where uploads are spooled while ingested
	MaxUploadMB    int    `yaml:"max_upload_mb"`   // Request body limit for uploads
	PageSize       int    `yaml:"page_size"`       // Default records per API page
	LogType        string `yaml:"log_type"`        // "auto" or a forced dialect
	RetentionDays  int    `yaml:"retention_days"`  // Days to keep ingested records
	SkipDuplicates bool   `yaml:"skip_duplicates"` // Skip files whose fingerprint is stored

	// Inbox settings (optional)
	InboxDir      string   `yaml:"inbox_dir"`      // Watched drop directory; empty disables
	InboxPatterns []string `yaml:"inbox_patterns"` // Globs relative to InboxDir

	// GeoIP settings (optional)
	GeoIPPath string `yaml:"geoip_path"` // Path to MaxMind/DB-IP mmdb file for country lookup
}

const envPrefix = "LOGVIEWER_"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:         "/data/logviewer.db",
		Listen:         ":8080",
		UploadDir:      "/data/uploads",
		MaxUploadMB:    16,
		PageSize:       50,
		LogType:        "auto",
		RetentionDays:  90,
		SkipDuplicates: true,
		InboxPatterns:  []string{"*.log", "*.log.*", "*.txt", "*.gz", "*.bz2", "*xferlog*"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// LOGVIEWER_CONFIG if set, then LOGVIEWER_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB * 1024 * 1024
}

// ParsedLogType returns LogType as a parser dialect.
func (c *Config) ParsedLogType() parser.LogType {
	t, _ := parser.ParseLogType(c.LogType)
	return t
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	c.DBPath = getEnvOrDefault(envPrefix+"DB_PATH", c.DBPath)
	c.Listen = getEnvOrDefault(envPrefix+"LISTEN", c.Listen)
	c.UploadDir = getEnvOrDefault(envPrefix+"UPLOAD_DIR", c.UploadDir)
	c.LogType = getEnvOrDefault(envPrefix+"LOG_TYPE", c.LogType)
	c.InboxDir = getEnvOrDefault(envPrefix+"INBOX_DIR", c.InboxDir)
	c.GeoIPPath = getEnvOrDefault(envPrefix+"GEOIP_PATH", c.GeoIPPath)

	if v := os.Getenv(envPrefix + "INBOX_PATTERNS"); v != "" {
		c.InboxPatterns = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_UPLOAD_MB", &c.MaxUploadMB},
		{"PAGE_SIZE", &c.PageSize},
		{"RETENTION_DAYS", &c.RetentionDays},
	}
	for _, f := range ints {
		v := os.Getenv(envPrefix + f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, f.key, err)
		}
		*f.dst = n
	}

	if v := os.Getenv(envPrefix + "SKIP_DUPLICATES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSKIP_DUPLICATES: %w", envPrefix, err)
		}
		c.SkipDuplicates = b
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%sDB_PATH must not be empty", envPrefix)
	}
	if _, ok := parser.ParseLogType(c.LogType); !ok {
		return fmt.Errorf("%sLOG_TYPE %q is not a known log type", envPrefix, c.LogType)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("%sRETENTION_DAYS must be positive, got %d", envPrefix, c.RetentionDays)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%sMAX_UPLOAD_MB must be positive, got %d", envPrefix, c.MaxUploadMB)
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("%sPAGE_SIZE must be between 1 and 1000, got %d", envPrefix, c.PageSize)
	}
	if c.InboxDir != "" && len(c.InboxPatterns) == 0 {
		return fmt.Errorf("%sINBOX_PATTERNS must not be empty when an inbox is set", envPrefix)
	}
	for _, p := range c.InboxPatterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid inbox pattern %q", p)
		}
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or the default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
