package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MimeLyc/nottranslate-api/pkg/icron"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

// Config holds all application configuration.
// Values come from (lowest to highest priority) built-in defaults, an optional YAML
// file at CONFIG_PATH, a .env file and the process environment.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8000)
// - HTTP_MODE: gin mode, debug|release|test (default: release)
// - HTTP_MAX_UPLOAD_MB: maximum subtitle upload size (default: 20)
//
// Storage:
// - STORAGE_TYPE: local|s3 (default: local)
// - STORAGE_DIR: root directory of local storage (default: $DATA_DIR/files)
// - S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_USE_SSL
//
// Translation:
// - TRANSLATOR_BACKEND: opusmt|llm (default: opusmt)
// - OPUSMT_URL: opus-mt inference server (default: http://localhost:8080)
// - LLM_API_KEY, LLM_API_URL, LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
// - TRANSLATE_LINE_DELAY: pause after every translated line (default: 100ms)
// - TRANSLATE_POLL_INTERVAL: bounded dequeue wait (default: 60s)
// - TRANSLATE_SECONDS_PER_LINE: ETA prior before timing data exists (default: 1.0)
// - TRANSLATE_PRODUCT_NAME: product name in the notice line (default: NotTranslate)
//
// Auth:
// - API_KEYS: comma separated static keys
// - POCKETBASE_URL, POCKETBASE_KEY: remote key store
// - API_KEY_CACHE_TTL: positive lookup cache (default: 5m)
//
// System:
// - DATA_DIR: data directory (default: /app/data)
// - LOG_LEVEL, LOG_FORMAT, LOG_FILE
// - CLEANUP_CRON: cleanup schedule (default: @every 10m)
// - FILE_RETENTION: age after which files and finished statuses are removed (default: 1h)
// - SHUTDOWN_TIMEOUT: maximum queue drain time on shutdown (default: 10m)
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Translate TranslateConfig `mapstructure:"translate"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Auth      AuthConfig      `mapstructure:"auth"`
	System    SystemConfig    `mapstructure:"system"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	Mode        string `mapstructure:"mode"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"`
	Dir  string   `mapstructure:"dir"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type TranslateConfig struct {
	Backend        string        `mapstructure:"backend"`
	OpusMTURL      string        `mapstructure:"opusmt_url"`
	LineDelay      time.Duration `mapstructure:"line_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SecondsPerLine float64       `mapstructure:"seconds_per_line"`
	ProductName    string        `mapstructure:"product_name"`
}

// LLMConfig holds the configuration for the OpenAI-compatible backend
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	APIURL      string  `mapstructure:"api_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"`
}

type AuthConfig struct {
	APIKeys       []string      `mapstructure:"api_keys"`
	PocketBaseURL string        `mapstructure:"pocketbase_url"`
	PocketBaseKey string        `mapstructure:"pocketbase_key"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type SystemConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	LogFile         string        `mapstructure:"log_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CleanupConfig struct {
	CronExpr  string        `mapstructure:"cron_expr"`
	Retention time.Duration `mapstructure:"retention"`
}

// DBPath is the sqlite database location inside the data directory
func (c Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "nottranslate.db")
}

// StorageDir is the local storage root, defaulting to a directory under DATA_DIR
func (c Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(c.System.DataDir, "files")
}

// MaxUploadBytes is the upload limit in bytes
func (c Config) MaxUploadBytes() int64 {
	return int64(c.HTTP.MaxUploadMB) << 20
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithDataDir overrides DATA_DIR
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.System.DataDir = dir
		}
	}
}

// NewFromEnv creates a new Config instance from the environment and options
func NewFromEnv(opts ...Option) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	config, err := load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: addr=%s storage=%s backend=%s data_dir=%s",
		config.HTTP.Addr, config.Storage.Type, config.Translate.Backend, config.System.DataDir)
	return config, nil
}

func load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Auth.APIKeys = splitKeys(cfg.Auth.APIKeys)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.max_upload_mb", 20)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("translate.backend", "opusmt")
	v.SetDefault("translate.opusmt_url", "http://localhost:8080")
	v.SetDefault("translate.line_delay", 100*time.Millisecond)
	v.SetDefault("translate.poll_interval", 60*time.Second)
	v.SetDefault("translate.seconds_per_line", 1.0)
	v.SetDefault("translate.product_name", "NotTranslate")
	v.SetDefault("llm.api_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 30)
	v.SetDefault("auth.cache_ttl", 5*time.Minute)
	v.SetDefault("system.data_dir", "/app/data")
	v.SetDefault("system.log_level", "info")
	v.SetDefault("system.log_format", "text")
	v.SetDefault("system.shutdown_timeout", 10*time.Minute)
	v.SetDefault("cleanup.cron_expr", "@every 10m")
	v.SetDefault("cleanup.retention", time.Hour)
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string]string{
		"http.addr":                  "HTTP_ADDR",
		"http.mode":                  "HTTP_MODE",
		"http.max_upload_mb":         "HTTP_MAX_UPLOAD_MB",
		"storage.type":               "STORAGE_TYPE",
		"storage.dir":                "STORAGE_DIR",
		"storage.s3.endpoint":        "S3_ENDPOINT",
		"storage.s3.access_key":      "S3_ACCESS_KEY",
		"storage.s3.secret_key":      "S3_SECRET_KEY",
		"storage.s3.bucket":          "S3_BUCKET",
		"storage.s3.region":          "S3_REGION",
		"storage.s3.use_ssl":         "S3_USE_SSL",
		"translate.backend":          "TRANSLATOR_BACKEND",
		"translate.opusmt_url":       "OPUSMT_URL",
		"translate.line_delay":       "TRANSLATE_LINE_DELAY",
		"translate.poll_interval":    "TRANSLATE_POLL_INTERVAL",
		"translate.seconds_per_line": "TRANSLATE_SECONDS_PER_LINE",
		"translate.product_name":     "TRANSLATE_PRODUCT_NAME",
		"llm.api_key":                "LLM_API_KEY",
		"llm.api_url":                "LLM_API_URL",
		"llm.model":                  "LLM_MODEL",
		"llm.max_tokens":             "LLM_MAX_TOKENS",
		"llm.temperature":            "LLM_TEMPERATURE",
		"llm.timeout":                "LLM_TIMEOUT",
		"auth.api_keys":              "API_KEYS",
		"auth.pocketbase_url":        "POCKETBASE_URL",
		"auth.pocketbase_key":        "POCKETBASE_KEY",
		"auth.cache_ttl":             "API_KEY_CACHE_TTL",
		"system.data_dir":            "DATA_DIR",
		"system.log_level":           "LOG_LEVEL",
		"system.log_format":          "LOG_FORMAT",
		"system.log_file":            "LOG_FILE",
		"system.shutdown_timeout":    "SHUTDOWN_TIMEOUT",
		"cleanup.cron_expr":          "CLEANUP_CRON",
		"cleanup.retention":          "FILE_RETENTION",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// splitKeys accepts both a YAML list and a comma separated env value
func splitKeys(raw []string) []string {
	ret := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, key := range strings.Split(item, ",") {
			if key = strings.TrimSpace(key); key != "" {
				ret = append(ret, key)
			}
		}
	}
	return ret
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.Translate.Backend {
	case "opusmt":
		if c.Translate.OpusMTURL == "" {
			return fmt.Errorf("OPUSMT_URL is required for the opusmt backend")
		}
	case "llm":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for the llm backend")
		}
	default:
		return fmt.Errorf("unknown TRANSLATOR_BACKEND %q", c.Translate.Backend)
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}

	if err := icron.Validate(c.Cleanup.CronExpr); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON: %w", err)
	}
	if c.Cleanup.Retention <= 0 {
		return fmt.Errorf("FILE_RETENTION must be positive")
	}
	if c.Translate.SecondsPerLine < 0 {
		return fmt.Errorf("TRANSLATE_SECONDS_PER_LINE must not be negative")
	}
	return nil
}
