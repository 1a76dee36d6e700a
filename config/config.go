package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Tags use mapstructure
// for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// IdPProvider selects the identity provider gateway: "gotrue" for the
	// HTTP client, "memory" for the in-process provider (development only).
	IdPProvider   string `mapstructure:"IDP_PROVIDER"`
	IdPBaseURL    string `mapstructure:"IDP_BASE_URL"`
	IdPServiceKey string `mapstructure:"IDP_SERVICE_KEY"`

	// RedisAddr enables the Redis-backed token verification cache when set;
	// empty means the in-memory cache is used.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// Zero or negative disables the verification cache.
	VerifyCacheTTLSec int `mapstructure:"VERIFY_CACHE_TTL_SEC"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authbridge/")
	v.AddConfigPath("$HOME/.authbridge")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authbridge_dev")
	v.SetDefault("MONGO_DB_NAME", "authbridge_dev")
	v.SetDefault("IDP_PROVIDER", "gotrue")
	v.SetDefault("IDP_BASE_URL", "http://localhost:9999/auth/v1")
	v.SetDefault("VERIFY_CACHE_TTL_SEC", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable: defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.IdPProvider == "gotrue" && cfg.IdPServiceKey == "" {
		return nil, fmt.Errorf("IDP_SERVICE_KEY is required when IDP_PROVIDER is gotrue")
	}

	return &cfg, nil
}
