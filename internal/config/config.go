/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the policy-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	LedgerAPIBaseURL          string `mapstructure:"LEDGER_API_BASE_URL"`
	LedgerAPIKey              string `mapstructure:"LEDGER_API_KEY"`
	EscrowAccountID           string `mapstructure:"ESCROW_ACCOUNT_ID"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	TriggerSources            string `mapstructure:"TRIGGER_SOURCES"` // comma-separated ledger account ids
	EscrowReconcileSchedule   string `mapstructure:"ESCROW_RECONCILE_SCHEDULE"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TriggerRateLimitPerMinute int    `mapstructure:"TRIGGER_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ESCROW_RECONCILE_SCHEDULE", "@every 10m")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "insuralink:rate_limit")
	viper.SetDefault("TRIGGER_RATE_LIMIT_PER_MINUTE", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_API_BASE_URL")
	_ = viper.BindEnv("LEDGER_API_KEY")
	_ = viper.BindEnv("ESCROW_ACCOUNT_ID")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TRIGGER_SOURCES")
	_ = viper.BindEnv("ESCROW_RECONCILE_SCHEDULE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRIGGER_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.LedgerAPIBaseURL = strings.TrimSpace(config.LedgerAPIBaseURL)
	config.EscrowAccountID = strings.TrimSpace(config.EscrowAccountID)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "insuralink:rate_limit"
	}
	if strings.TrimSpace(config.EscrowReconcileSchedule) == "" {
		config.EscrowReconcileSchedule = "@every 10m"
	}
	if config.TriggerRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative trigger rate limit configured; disabling\" limit=%d", config.TriggerRateLimitPerMinute)
		config.TriggerRateLimitPerMinute = 0
	}

	return
}

// TriggerSourceList splits the comma-separated TRIGGER_SOURCES value into
// individual account ids, dropping blanks.
func (c Config) TriggerSourceList() []string {
	parts := strings.Split(c.TriggerSources, ",")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sources = append(sources, part)
	}
	return sources
}
