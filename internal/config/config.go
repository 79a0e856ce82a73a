package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	LingQ     LingQConfig     `mapstructure:"lingq"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Outputs   OutputsConfig   `mapstructure:"outputs"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LingQConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	APIKey   string        `mapstructure:"api_key"`
	PageSize int           `mapstructure:"page_size" validate:"min=1,max=200"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// RateLimitConfig controls waits after HTTP 429, server errors, and between pages.
// PageDelay doubles from page 10 and triples from page 50.
type RateLimitConfig struct {
	BaseWait   time.Duration `mapstructure:"base_wait" validate:"min=0"`
	WaitStep   time.Duration `mapstructure:"wait_step" validate:"min=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0"`
	Backoff    time.Duration `mapstructure:"backoff" validate:"min=0"`
	PageDelay  time.Duration `mapstructure:"page_delay" validate:"min=0"`
}

type OutputsConfig struct {
	Directory string   `mapstructure:"directory" validate:"required"`
	Formats   []string `mapstructure:"formats" validate:"dive,exportformat"`
	PlainText bool     `mapstructure:"plain_text"`
	// PDFTemplate is a text/template file for the Markdown rendered to PDF. The embedded one is used when empty.
	PDFTemplate string `mapstructure:"pdf_template"`
}

type CacheConfig struct {
	Directory string `mapstructure:"directory"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" validate:"omitempty,parentdir"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
	envFile    string
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lingq-export")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
		envFile:    ".env",
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	// Values already exported in the environment win over the .env file
	if err := godotenv.Load(loader.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", loader.envFile, err)
	}

	v.SetDefault("lingq.base_url", "https://www.lingq.com/api/v2")
	v.SetDefault("lingq.page_size", 50)
	v.SetDefault("lingq.timeout", 30*time.Second)
	v.SetDefault("rate_limit.base_wait", 60*time.Second)
	v.SetDefault("rate_limit.wait_step", 30*time.Second)
	v.SetDefault("rate_limit.max_retries", 5)
	v.SetDefault("rate_limit.backoff", 2*time.Second)
	v.SetDefault("rate_limit.page_delay", time.Second)
	v.SetDefault("outputs.directory", ".")
	v.SetDefault("outputs.formats", []string{"csv", "json"})
	v.SetDefault("outputs.plain_text", false)
	v.SetDefault("cache.directory", filepath.Join(".cache", "lingq-export"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "lingq")
	v.SetDefault("database.username", "user")

	// Bind secrets to environment variables only (not from config file)
	if err := v.BindEnv("lingq.api_key", "LINGQ_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind LINGQ_API_KEY environment variable: %w", err)
	}
	if err := v.BindEnv("database.password", "DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind DB_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg, e.g. after command line flags were applied on top of the loaded values.
func (loader *ConfigLoader) Validate(cfg *Config) error {
	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("validator.Struct > %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}
	return nil
}
