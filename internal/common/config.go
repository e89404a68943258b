package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Jobs        JobsConfig      `toml:"jobs"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	SEC         SECConfig       `toml:"sec"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Claude      ClaudeConfig    `toml:"claude"`
	DeadLetter  DLQConfig       `toml:"dead_letter"`
	Companies   CompaniesConfig `toml:"companies"`
}

type ServerConfig struct {
	Port   int    `toml:"port" validate:"gte=0,lte=65535"`
	Host   string `toml:"host"`
	APIKey string `toml:"api_key"` // Optional shared secret for DLQ management endpoints
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// JobsConfig controls queue and processor behavior
type JobsConfig struct {
	BatchSize        int    `toml:"batch_size" validate:"gt=0"`          // Max jobs pulled per processing pass
	MaxAttempts      int    `toml:"max_attempts" validate:"gt=0"`        // Failures before dead-lettering
	RetryBackoffBase string `toml:"retry_backoff_base"`                  // e.g. "30s" - doubled per attempt
	RetryBackoffMax  string `toml:"retry_backoff_max"`                   // Cap for the push-back interval
	LockTTL          string `toml:"lock_ttl"`                            // Lease duration, e.g. "5m"
}

// SchedulerConfig contains cron schedules for background work
type SchedulerConfig struct {
	Enabled              bool   `toml:"enabled"`
	CheckFilingsSchedule string `toml:"check_filings_schedule"` // Cron expression for feed polling
	ProcessSchedule      string `toml:"process_schedule"`       // Cron expression for the job processing loop
	ArchiveSchedule      string `toml:"archive_schedule"`       // Cron expression for archiving old filings
	CleanupSchedule      string `toml:"cleanup_schedule"`       // Cron expression for DLQ cleanup
}

// SECConfig contains settings for fetching EDGAR feeds and filing documents
type SECConfig struct {
	FeedURL        string `toml:"feed_url" validate:"required,url"`
	UserAgent      string `toml:"user_agent"` // SEC fair-access policy requires a descriptive UA
	RequestTimeout string `toml:"request_timeout"`
	RateLimit      int    `toml:"rate_limit" validate:"gt=0"` // Requests per second
	MaxBodySize    int    `toml:"max_body_size" validate:"gt=0"`
}

// ChunkingConfig controls document segmentation
type ChunkingConfig struct {
	MaxChunkSize              int    `toml:"max_chunk_size" validate:"gt=0"`
	ChunkOverlap              int    `toml:"chunk_overlap" validate:"gte=0"`
	RespectSemanticBoundaries bool   `toml:"respect_semantic_boundaries"`
	Separator                 string `toml:"separator"`
	Threshold                 int    `toml:"threshold" validate:"gt=0"` // Extracted text longer than this gets chunked
}

// ClaudeConfig contains Anthropic Claude API configuration for summarization
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// DLQConfig controls dead letter queue retention
type DLQConfig struct {
	RetentionDays int `toml:"retention_days" validate:"gt=0"` // Reprocessed entries older than this are purged
}

// CompaniesConfig points at the tracked-company seed file
type CompaniesConfig struct {
	SeedFile string `toml:"seed_file"`
}

// DefaultConfig returns a config with sensible defaults applied
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/tldrsec",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Jobs: JobsConfig{
			BatchSize:        10,
			MaxAttempts:      3,
			RetryBackoffBase: "30s",
			RetryBackoffMax:  "30m",
			LockTTL:          "5m",
		},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			CheckFilingsSchedule: "*/15 * * * *",
			ProcessSchedule:      "*/1 * * * *",
			ArchiveSchedule:      "0 3 * * *",
			CleanupSchedule:      "0 4 * * 0",
		},
		SEC: SECConfig{
			FeedURL:        "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&type=&dateb=&owner=include&count=40&output=atom",
			UserAgent:      "tldrsec-ai admin@tldrsec.example",
			RequestTimeout: "30s",
			RateLimit:      5,
			MaxBodySize:    10 * 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:              4000,
			ChunkOverlap:              200,
			RespectSemanticBoundaries: true,
			Separator:                 "\n\n",
			Threshold:                 8000,
		},
		Claude: ClaudeConfig{
			Model:     "claude-haiku-3-5-20241022",
			MaxTokens: 4096,
			Timeout:   "2m",
		},
		DeadLetter: DLQConfig{
			RetentionDays: 30,
		},
		Companies: CompaniesConfig{
			SeedFile: "./companies.toml",
		},
	}
}

// LoadConfig loads configuration from a TOML file with env overrides applied.
// A missing path returns defaults rather than an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				GetLogger().Warn().Str("path", path).Msg("Config file not found, using defaults")
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TLDRSEC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("TLDRSEC_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("TLDRSEC_API_KEY"); v != "" {
		config.Server.APIKey = v
	}
	if v := os.Getenv("TLDRSEC_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("TLDRSEC_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("TLDRSEC_SEC_FEED_URL"); v != "" {
		config.SEC.FeedURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("TLDRSEC_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
}

func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Chunking.ChunkOverlap >= config.Chunking.MaxChunkSize {
		return fmt.Errorf("invalid configuration: chunk_overlap (%d) must be less than max_chunk_size (%d)",
			config.Chunking.ChunkOverlap, config.Chunking.MaxChunkSize)
	}

	for name, value := range map[string]string{
		"jobs.retry_backoff_base": config.Jobs.RetryBackoffBase,
		"jobs.retry_backoff_max":  config.Jobs.RetryBackoffMax,
		"jobs.lock_ttl":           config.Jobs.LockTTL,
		"sec.request_timeout":     config.SEC.RequestTimeout,
		"claude.timeout":          config.Claude.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
	}

	return nil
}

// RetryBackoffBaseDuration returns the parsed base retry interval
func (c *JobsConfig) RetryBackoffBaseDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBackoffBase)
	return d
}

// RetryBackoffMaxDuration returns the parsed retry interval cap
func (c *JobsConfig) RetryBackoffMaxDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBackoffMax)
	return d
}

// LockTTLDuration returns the parsed lock lease duration
func (c *JobsConfig) LockTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockTTL)
	return d
}

// RequestTimeoutDuration returns the parsed SEC request timeout
func (c *SECConfig) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}

// TimeoutDuration returns the parsed Claude call timeout
func (c *ClaudeConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}
