package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Usdgflow  UsdgflowConfig  `yaml:"usdgflow"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Depth     DepthConfig     `yaml:"depth"`
	Source    SourceConfig    `yaml:"source"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type UsdgflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// RunAtUTC is the daily trigger time in "HH:MM" 24h form, UTC.
	RunAtUTC       string        `yaml:"run_at_utc"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type HistoryConfig struct {
	Path   string         `yaml:"path"`
	Mirror S3MirrorConfig `yaml:"s3_mirror"`
}

type S3MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Key             string `yaml:"key"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DepthConfig struct {
	// PairDelayMs is the pause between successive pair requests on the
	// same exchange.
	PairDelayMs int `yaml:"pair_delay_ms"`
	Limit       int `yaml:"limit"`
}

type SourceConfig struct {
	Kraken    ExchangeSourceConfig `yaml:"kraken"`
	Gate      ExchangeSourceConfig `yaml:"gate"`
	Bitmart   ExchangeSourceConfig `yaml:"bitmart"`
	Bullish   ExchangeSourceConfig `yaml:"bullish"`
	Cryptocom ExchangeSourceConfig `yaml:"cryptocom"`
	Bitget    ExchangeSourceConfig `yaml:"bitget"`
}

type ExchangeSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	// Days is how many daily candles to request per pair.
	Days              int `yaml:"days"`
	TimeoutSec        int `yaml:"timeout_sec"`
	RequestsPerSecond int `yaml:"requests_per_second"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

// ByExchange returns the source config for a known exchange identifier.
func (s SourceConfig) ByExchange(exchange string) (ExchangeSourceConfig, bool) {
	switch strings.ToLower(exchange) {
	case "kraken":
		return s.Kraken, true
	case "gate":
		return s.Gate, true
	case "bitmart":
		return s.Bitmart, true
	case "bullish":
		return s.Bullish, true
	case "cryptocom":
		return s.Cryptocom, true
	case "bitget":
		return s.Bitget, true
	default:
		return ExchangeSourceConfig{}, false
	}
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, "config/config.yml", map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Scheduler: SchedulerConfig{
			RunAtUTC: "00:10",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Depth: DepthConfig{
			PairDelayMs: 350,
			Limit:       100,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 mirror settings from environment variables if available
	if config.History.Mirror.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.History.Mirror.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.History.Mirror.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.History.Mirror.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.History.Mirror.Bucket = strings.TrimSpace(v)
		}
	}

	config.History.Mirror.Bucket = strings.TrimSpace(config.History.Mirror.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

var runAtRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func validateConfig(cfg *Config) error {
	if cfg.Usdgflow.Name == "" {
		return fmt.Errorf("usdgflow.name is required")
	}

	if cfg.Usdgflow.Version == "" {
		return fmt.Errorf("usdgflow.version is required")
	}

	if cfg.History.Path == "" {
		// Development runs can fall back to a local default; deployed
		// environments must be explicit about where the log lives.
		if IsProductionLike(AppEnvironment()) {
			return fmt.Errorf("history.path is required")
		}
		cfg.History.Path = "data/history.jsonl"
	}

	if cfg.Scheduler.Enabled && !runAtRegexp.MatchString(cfg.Scheduler.RunAtUTC) {
		return fmt.Errorf("scheduler.run_at_utc '%s' must be HH:MM", cfg.Scheduler.RunAtUTC)
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than 0")
	}

	if cfg.Depth.PairDelayMs < 0 {
		return fmt.Errorf("depth.pair_delay_ms must not be negative")
	}

	if cfg.HTTP.Enabled && cfg.HTTP.Address == "" {
		return fmt.Errorf("http.address is required when the HTTP server is enabled")
	}

	if cfg.History.Mirror.Enabled {
		if cfg.History.Mirror.Bucket == "" {
			return fmt.Errorf("history.s3_mirror.bucket is required when the mirror is enabled")
		}
		if cfg.History.Mirror.Region == "" {
			return fmt.Errorf("history.s3_mirror.region is required when the mirror is enabled")
		}
		if !isValidS3Bucket(cfg.History.Mirror.Bucket) {
			return fmt.Errorf("history.s3_mirror.bucket '%s' is invalid", cfg.History.Mirror.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
