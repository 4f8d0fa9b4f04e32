package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Geocoding API credentials and bias.
type GoogleConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Region string `yaml:"region" mapstructure:"region"`
}

// GeocodeConfig configures the batch pipeline.
type GeocodeConfig struct {
	RatePerMinute     int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
	CachePath         string `yaml:"cache_path" mapstructure:"cache_path"`
	DefaultPais       string `yaml:"default_pais" mapstructure:"default_pais"`
	FallbackLocalidad string `yaml:"fallback_localidad" mapstructure:"fallback_localidad"`
	RatesFile         string `yaml:"rates_file" mapstructure:"rates_file"`
}

// ServerConfig configures the streaming endpoint.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	MaxRetries     int `yaml:"max_retries" mapstructure:"max_retries"`
	RunTimeoutSecs int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARADAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.rate_per_minute", 50)
	v.SetDefault("geocode.max_retries", 5)
	v.SetDefault("geocode.cache_path", "geocode-cache.json")
	v.SetDefault("geocode.default_pais", "Argentina")
	v.SetDefault("google.region", "ar")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_retries", 3)
	v.SetDefault("server.run_timeout_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
