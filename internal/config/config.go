package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Google     GoogleConfig     `mapstructure:"google"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Tiers      TierConfig       `mapstructure:"tiers"`
	Features   FeatureConfig    `mapstructure:"features"`
	Tracking   TrackingConfig   `mapstructure:"tracking"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EncryptionConfig struct {
	// Key must be exactly 32 bytes; it protects the per-user OAuth token blobs.
	Key string `mapstructure:"key"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type SchedulerConfig struct {
	// GracePeriod bounds how late a fire instant may be picked up; instants
	// missed by more than this are skipped, never retro-fired.
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	WorkerCount  int           `mapstructure:"worker_count"`
	// MetricsPort is the worker's side listener for /metrics and liveness;
	// the worker has no other HTTP surface.
	MetricsPort int `mapstructure:"metrics_port"`
}

type TierConfig struct {
	FreeSendsPerDay    int `mapstructure:"free_sends_per_day"`
	PremiumSendsPerDay int `mapstructure:"premium_sends_per_day"`
}

// FeatureConfig replaces the process-global feature flag singleton: it is
// injected into the gate at construction and re-read per call.
type FeatureConfig struct {
	PremiumMultipleSends        bool `mapstructure:"premium_multiple_sends"`
	PremiumPersonalizedMessages bool `mapstructure:"premium_personalized_messages"`
	PremiumAdvancedScheduling   bool `mapstructure:"premium_advanced_scheduling"`
	ForcePremiumForAll          bool `mapstructure:"force_premium_for_all"`
}

type TrackingConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Defaults plus environment variables are a valid configuration.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Encryption.Key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(config.Encryption.Key))
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.rate_limit_rps", 50.0)
	viper.SetDefault("server.rate_limit_burst", 100)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("jwt.token_expiry", 24*time.Hour)
	viper.SetDefault("scheduler.grace_period", 5*time.Minute)
	viper.SetDefault("scheduler.tick_interval", 30*time.Second)
	viper.SetDefault("scheduler.worker_count", 4)
	viper.SetDefault("scheduler.metrics_port", 9090)
	viper.SetDefault("tiers.free_sends_per_day", 1)
	viper.SetDefault("tiers.premium_sends_per_day", 3)
	viper.SetDefault("features.premium_multiple_sends", true)
	viper.SetDefault("features.premium_personalized_messages", true)
	viper.SetDefault("features.premium_advanced_scheduling", true)
	viper.SetDefault("features.force_premium_for_all", false)
	viper.SetDefault("tracking.base_url", "http://localhost:8080")
}
