// Package config loads intelliparse settings from a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/intelliparse/archive"
)

// AI providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Extract struct {
		Concurrency      int           `yaml:"concurrency"`
		FileTimeout      time.Duration `yaml:"file_timeout"`
		MaxArchiveDepth  int           `yaml:"max_archive_depth"`
		MaxSectionChars  int           `yaml:"max_section_chars"`
		IncludeImageData bool          `yaml:"include_image_data"`
		IncludeNotes     bool          `yaml:"include_notes"`
	} `yaml:"extract"`

	Archive archive.Limits `yaml:"archive"`

	OCR struct {
		Enabled   bool   `yaml:"enabled"`
		Languages string `yaml:"languages"`
		MinSide   int    `yaml:"min_side"`
	} `yaml:"ocr"`

	AI struct {
		Provider    string        `yaml:"provider"`
		Model       string        `yaml:"model"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		RateLimit   float64       `yaml:"rate_limit"`
		Burst       int           `yaml:"burst"`
		MaxAttempts int           `yaml:"max_attempts"`
		Assist      bool          `yaml:"assist"`
	} `yaml:"ai"`

	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`

	Server struct {
		Addr           string `yaml:"addr"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
}

// DefaultLocations are searched, in order, when Load gets no path.
func DefaultLocations() []string {
	locs := []string{"intelliparse.yaml", "intelliparse.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locs = append(locs, filepath.Join(home, ".config", "intelliparse", "config.yaml"))
	}
	return append(locs, "/etc/intelliparse/config.yaml")
}

// Load reads the configuration. An empty path searches DefaultLocations
// and falls back to defaults when none exists. A .env file in the working
// directory is loaded first; variables already set are not overridden.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		for _, loc := range DefaultLocations() {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	mergeWithEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no file
// or environment input. Speaker notes are included unless a file turns
// them off.
func Default() *Config {
	cfg := &Config{}
	cfg.Extract.IncludeNotes = true
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Extract.Concurrency <= 0 {
		cfg.Extract.Concurrency = runtime.NumCPU()
	}
	if cfg.Extract.FileTimeout == 0 {
		cfg.Extract.FileTimeout = 5 * time.Minute
	}
	if cfg.Extract.MaxArchiveDepth == 0 {
		cfg.Extract.MaxArchiveDepth = 3
	}
	if cfg.Archive.MaxEntries == 0 {
		cfg.Archive.MaxEntries = archive.DefaultMaxEntries
	}
	if cfg.Archive.MaxTotalSize == 0 {
		cfg.Archive.MaxTotalSize = archive.DefaultMaxTotalSize
	}
	if cfg.Archive.MaxEntrySize == 0 {
		cfg.Archive.MaxEntrySize = archive.DefaultMaxEntrySize
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = "eng"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderNone
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.2
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.RateLimit == 0 {
		cfg.AI.RateLimit = 2
	}
	if cfg.AI.Burst == 0 {
		cfg.AI.Burst = 1
	}
	if cfg.AI.MaxAttempts == 0 {
		cfg.AI.MaxAttempts = 3
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 256
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
}

// mergeWithEnv applies INTELLIPARSE_* overrides and the provider
// credentials. API keys from the environment fill only empty fields.
func mergeWithEnv(cfg *Config) {
	setString(&cfg.LogLevel, "INTELLIPARSE_LOG_LEVEL")
	setInt(&cfg.Extract.Concurrency, "INTELLIPARSE_CONCURRENCY")
	setDuration(&cfg.Extract.FileTimeout, "INTELLIPARSE_FILE_TIMEOUT")
	setInt(&cfg.Extract.MaxArchiveDepth, "INTELLIPARSE_MAX_ARCHIVE_DEPTH")
	setBool(&cfg.OCR.Enabled, "INTELLIPARSE_OCR")
	setString(&cfg.OCR.Languages, "INTELLIPARSE_OCR_LANGUAGES")
	setString(&cfg.AI.Provider, "INTELLIPARSE_AI_PROVIDER")
	setString(&cfg.AI.Model, "INTELLIPARSE_AI_MODEL")
	setDuration(&cfg.AI.Timeout, "INTELLIPARSE_AI_TIMEOUT")
	setBool(&cfg.AI.Assist, "INTELLIPARSE_AI_ASSIST")
	setInt(&cfg.Cache.Size, "INTELLIPARSE_CACHE_SIZE")
	setString(&cfg.Server.Addr, "INTELLIPARSE_ADDR")

	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case ProviderGemini:
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderOpenAI:
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.AI.Provider == ProviderOllama {
		setString(&cfg.AI.BaseURL, "OLLAMA_HOST")
	}

	setString(&cfg.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinIO.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinIO.Region, "MINIO_REGION")
	setBool(&cfg.MinIO.UseSSL, "MINIO_USE_SSL")
}

// Validate checks ranges and the provider name.
func (c *Config) Validate() error {
	var errs []error
	if c.Extract.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("extract.concurrency must be at least 1"))
	}
	if c.Extract.FileTimeout < 0 {
		errs = append(errs, fmt.Errorf("extract.file_timeout cannot be negative"))
	}
	if c.Extract.MaxArchiveDepth < 0 {
		errs = append(errs, fmt.Errorf("extract.max_archive_depth cannot be negative"))
	}
	switch c.AI.Provider {
	case ProviderNone, ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not one of none, gemini, ollama, openai", c.AI.Provider))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai.temperature must be between 0 and 2"))
	}
	if c.AI.Timeout < 0 {
		errs = append(errs, fmt.Errorf("ai.timeout cannot be negative"))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size cannot be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
