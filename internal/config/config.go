package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/zep-us/callbridge/pkg/logger"
)

// Config holds all configuration values for the application
type Config struct {
	UpstreamBaseURL        string   `mapstructure:"upstream_base_url"`
	UpstreamAPIKey         string   `mapstructure:"upstream_api_key"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds"`
	MaxConcurrentCalls     int      `mapstructure:"max_concurrent_calls"`
	ExecutorMode           string   `mapstructure:"executor_mode"` // "loop" or "pool"
	WorkerPoolSize         int      `mapstructure:"worker_pool_size"`
	JobQueueSize           int      `mapstructure:"job_queue_size"`
	ShutdownDrainSeconds   int      `mapstructure:"shutdown_drain_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	ServerPort             int      `mapstructure:"server_port"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	MaxRequestSizeMB       int      `mapstructure:"max_request_size_mb"`
	LogLevel               string   `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("request_timeout_seconds", 10)
	v.SetDefault("max_concurrent_calls", 1000)
	v.SetDefault("executor_mode", "loop")
	v.SetDefault("worker_pool_size", 0) // 0 = NumCPU in executor.NewPool()
	v.SetDefault("job_queue_size", 10000)
	v.SetDefault("shutdown_drain_seconds", 2)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("server_port", 8080)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_request_size_mb", 1)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from config.toml in . or ./config
// Returns error if configuration file is missing or required fields are not set
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	logger.Info("Configuration loaded successfully from %s", v.ConfigFileUsed())
	cfg.log()
	return cfg, nil
}

// LoadFile reads configuration from an explicit path; the format follows the extension
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	logger.Info("Configuration loaded successfully from %s", path)
	cfg.log()
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.UpstreamBaseURL == "" {
		return nil, fmt.Errorf("upstream_base_url is required in config file")
	}

	if config.UpstreamAPIKey == "" {
		logger.Warn("upstream_api_key is empty - upstream calls will not include authentication")
	}

	switch config.ExecutorMode {
	case "loop", "pool":
	case "":
		config.ExecutorMode = "loop"
	default:
		logger.Warn("unknown executor_mode=%q, defaulting to 'loop'", config.ExecutorMode)
		config.ExecutorMode = "loop"
	}

	if config.MaxConcurrentCalls <= 0 {
		logger.Warn("max_concurrent_calls <= 0 (%d), defaulting to 1000", config.MaxConcurrentCalls)
		config.MaxConcurrentCalls = 1000
	}

	return &config, nil
}

func (c *Config) log() {
	logger.Info("  upstream_base_url: %s", c.UpstreamBaseURL)
	logger.Info("  request_timeout_seconds: %d", c.RequestTimeoutSeconds)
	logger.Info("  max_concurrent_calls: %d", c.MaxConcurrentCalls)
	logger.Info("  executor_mode: %s", c.ExecutorMode)
	if c.ExecutorMode == "pool" {
		logger.Info("  worker_pool_size: %d (0 = auto-detect)", c.WorkerPoolSize)
		logger.Info("  job_queue_size: %d", c.JobQueueSize)
	}
	logger.Info("  shutdown_drain_seconds: %d", c.ShutdownDrainSeconds)
	logger.Info("  shutdown_timeout_seconds: %d", c.ShutdownTimeoutSeconds)
	logger.Info("  server_port: %d", c.ServerPort)
	logger.Info("  allowed_origins: %v", c.AllowedOrigins)
	logger.Info("  max_request_size_mb: %d", c.MaxRequestSizeMB)
	logger.Info("  log_level: %s", c.LogLevel)
}
