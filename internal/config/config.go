// Package config loads cvparse settings from flags, environment, .env and an
// optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for cvparse environment variables (CVPARSE_DATA_DIR, ...).
const EnvPrefix = "CVPARSE"

// Config holds all configuration for a cvparse run.
type Config struct {
	DataDir       string                    `mapstructure:"data_dir" validate:"required"`
	Provider      string                    `mapstructure:"provider"`
	Model         string                    `mapstructure:"model"`
	APIKey        string                    `mapstructure:"api_key"`
	BaseURL       string                    `mapstructure:"base_url" validate:"omitempty,url"`
	FallbackOrder []string                  `mapstructure:"fallback_order"`
	Providers     map[string]ProviderConfig `mapstructure:"providers" validate:"dive"`

	Extraction ExtractionConfig `mapstructure:"extraction"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Vertex     VertexConfig     `mapstructure:"vertex"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProviderConfig holds provider-specific settings from the config file.
type ProviderConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
}

// ExtractionConfig controls the LLM parsing stage.
type ExtractionConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	MaxContentSize string        `mapstructure:"max_content_size"`
	Temperature    float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int           `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	SchemaFile     string        `mapstructure:"schema_file"`
}

// PipelineConfig controls document fan-out and re-run behavior.
type PipelineConfig struct {
	Concurrency int  `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	Resume      bool `mapstructure:"resume"`
	FailOnError bool `mapstructure:"fail_on_error"`

	// SkipHandling sends stage-one text to the parser without secondary
	// normalization.
	SkipHandling bool `mapstructure:"skip_handling"`
}

// OCRConfig points at an Apache Tika server used when PDF text extraction fails.
type OCRConfig struct {
	TikaURL string        `mapstructure:"tika_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// DedupConfig selects the duplicate-hash registry.
type DedupConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=memory redis"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	Password  string        `mapstructure:"redis_password"`
	DB        int           `mapstructure:"redis_db" validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// StorageConfig configures artifact mirroring.
type StorageConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig configures the S3-compatible artifact mirror.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// VertexConfig holds Google Cloud settings for the vertex provider.
type VertexConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// ScoringConfig points at optional overrides for the scoring rubric.
type ScoringConfig struct {
	ConfigFile   string `mapstructure:"config_file"`
	MappingsDir  string `mapstructure:"mappings_dir"`
	TargetDomain string `mapstructure:"target_domain"`
	TopN         int    `mapstructure:"top_n" validate:"gte=0"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	Quiet bool `mapstructure:"quiet"`
	JSON  bool `mapstructure:"json"`
}

// providerEnv maps config keys to conventional Google Cloud environment variables.
// Provider API keys (GOOGLE_API_KEY, OPENAI_API_KEY, ...) are resolved per provider
// by the llm registry; api_key here is an explicit override for the preferred one.
var providerEnv = map[string][]string{
	"vertex.project":  {"GOOGLE_CLOUD_PROJECT"},
	"vertex.location": {"GOOGLE_CLOUD_LOCATION"},
}

// SetDefaults registers default values. Every key must have a default so that
// environment overrides are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("provider", "")
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("fallback_order", []string{"gemini", "vertex", "openai", "anthropic"})

	v.SetDefault("extraction.max_retries", 2)
	v.SetDefault("extraction.max_content_size", "100KB")
	v.SetDefault("extraction.temperature", 0.1)
	v.SetDefault("extraction.max_tokens", 16384)
	v.SetDefault("extraction.timeout", 120*time.Second)
	v.SetDefault("extraction.schema_file", "")

	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.resume", false)
	v.SetDefault("pipeline.fail_on_error", false)
	v.SetDefault("pipeline.skip_handling", false)

	v.SetDefault("ocr.tika_url", "")
	v.SetDefault("ocr.timeout", 60*time.Second)

	v.SetDefault("dedup.backend", "memory")
	v.SetDefault("dedup.redis_addr", "")
	v.SetDefault("dedup.redis_password", "")
	v.SetDefault("dedup.redis_db", 0)
	v.SetDefault("dedup.key_prefix", "cvparse:hash:")
	v.SetDefault("dedup.ttl", 30*24*time.Hour)

	v.SetDefault("storage.minio.enabled", false)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "cvparse")
	v.SetDefault("storage.minio.prefix", "")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("vertex.project", "")
	v.SetDefault("vertex.location", "us-central1")

	v.SetDefault("scoring.config_file", "")
	v.SetDefault("scoring.mappings_dir", "")
	v.SetDefault("scoring.target_domain", "")
	v.SetDefault("scoring.top_n", 10)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.quiet", false)
	v.SetDefault("log.json", false)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored and existing variables are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Init prepares v for reading: defaults, config file search path, environment
// binding. cfgFile overrides the search when non-empty. A missing config file is
// not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".cvparse")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range providerEnv {
		_ = v.BindEnv(append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...)...)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and derived values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.MaxContentBytes(); err != nil {
		return err
	}
	return nil
}

// MaxContentBytes parses extraction.max_content_size. Empty or "0" means unlimited.
func (c *Config) MaxContentBytes() (int, error) {
	s := strings.TrimSpace(c.Extraction.MaxContentSize)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max_content_size %q: %w", s, err)
	}
	return int(n), nil
}

// ProviderSettings returns the merged settings for a provider: global extraction
// settings overlaid with the providers.<name> block.
func (c *Config) ProviderSettings(name string) ProviderConfig {
	pc := ProviderConfig{
		Temperature: c.Extraction.Temperature,
		MaxTokens:   c.Extraction.MaxTokens,
	}
	if p, ok := c.Providers[name]; ok {
		if p.Model != "" {
			pc.Model = p.Model
		}
		if p.Temperature > 0 {
			pc.Temperature = p.Temperature
		}
		if p.MaxTokens > 0 {
			pc.MaxTokens = p.MaxTokens
		}
		if p.BaseURL != "" {
			pc.BaseURL = p.BaseURL
		}
	}
	return pc
}
