package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration, loadable from a YAML file and
// overridable through FORMATKEEP_* environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Debug    bool           `mapstructure:"debug"`
}

// APIConfig describes the OpenAI-compatible endpoint.
type APIConfig struct {
	Key         string        `mapstructure:"key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes batching and retries.
type PipelineConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
	BlockRetryAttempts int           `mapstructure:"block_retry_attempts"`
	LookaheadWindow    int           `mapstructure:"lookahead_window"`
	MaxBlocksPerBatch  int           `mapstructure:"max_blocks_per_batch"`
	MinBlocksPerBatch  int           `mapstructure:"min_blocks_per_batch"`
}

// Load reads the configuration. With an empty path the usual locations are
// searched and a missing file just means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".formatkeep")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMATKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaultConfig()
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Environment fallback for the credential, the one value that should
	// never sit in a config file.
	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("FORMATKEEP_API_KEY")
	}
	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("OPENAI_API_KEY")
	}

	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			Timeout:     5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Concurrency:        3,
			MaxRetries:         3,
			RetryDelay:         2 * time.Second,
			CallTimeout:        10 * time.Minute,
			BlockRetryAttempts: 2,
		},
	}
}

func setDefaults(cfg *Config) {
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 5 * time.Minute
	}
	if cfg.Pipeline.Concurrency <= 0 {
		cfg.Pipeline.Concurrency = 3
	}
	if cfg.Pipeline.MaxRetries <= 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Pipeline.RetryDelay <= 0 {
		cfg.Pipeline.RetryDelay = 2 * time.Second
	}
	if cfg.Pipeline.CallTimeout <= 0 {
		cfg.Pipeline.CallTimeout = 10 * time.Minute
	}
	if cfg.Pipeline.BlockRetryAttempts <= 0 {
		cfg.Pipeline.BlockRetryAttempts = 2
	}
}

func validate(cfg *Config) error {
	if cfg.API.Model == "" {
		return fmt.Errorf("api.model must not be empty")
	}
	if cfg.API.Temperature < 0 || cfg.API.Temperature > 2 {
		return fmt.Errorf("api.temperature must be between 0 and 2")
	}
	if cfg.Pipeline.Concurrency > 64 {
		return fmt.Errorf("pipeline.concurrency must not exceed 64")
	}
	return nil
}
