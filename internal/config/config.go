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

// Config holds all the configuration variables for the financing-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                   string `mapstructure:"JWKS_URL"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	CustodyAPIBaseURL         string `mapstructure:"CUSTODY_API_BASE_URL"`
	CustodyAPIKey             string `mapstructure:"CUSTODY_API_KEY"`
	AuthServiceBaseURL        string `mapstructure:"AUTH_SERVICE_BASE_URL"`
	AuthServiceAPIKey         string `mapstructure:"AUTH_SERVICE_API_KEY"`
	PlatformTreasuryAccountID string `mapstructure:"PLATFORM_TREASURY_ACCOUNT_ID"`
	ExternalAgentID           string `mapstructure:"EXTERNAL_AGENT_ID"`
	DefaultMinimumDeposit     int64  `mapstructure:"DEFAULT_MINIMUM_DEPOSIT"`
	DefaultMaximumDeposit     int64  `mapstructure:"DEFAULT_MAXIMUM_DEPOSIT"`
	DefaultReservedFunds      int64  `mapstructure:"DEFAULT_RESERVED_FUNDS"`
	DefaultMaxDeploymentBps   int64  `mapstructure:"DEFAULT_MAX_DEPLOYMENT_BPS"`
	DefaultFundingWindowDays  int    `mapstructure:"DEFAULT_FUNDING_WINDOW_DAYS"`
	VaultExpirySchedule       string `mapstructure:"VAULT_EXPIRY_SCHEDULE"`
	MetricsRefreshSchedule    string `mapstructure:"METRICS_REFRESH_SCHEDULE"`
	ReadRateLimitPerMinute    int    `mapstructure:"READ_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "fundra:rate_limit")
	viper.SetDefault("DEFAULT_MINIMUM_DEPOSIT", 100)
	viper.SetDefault("DEFAULT_MAXIMUM_DEPOSIT", 100_000_000_000)
	viper.SetDefault("DEFAULT_RESERVED_FUNDS", 0)
	viper.SetDefault("DEFAULT_MAX_DEPLOYMENT_BPS", 8000)
	viper.SetDefault("DEFAULT_FUNDING_WINDOW_DAYS", 30)
	viper.SetDefault("VAULT_EXPIRY_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("METRICS_REFRESH_SCHEDULE", "* * * * *")
	viper.SetDefault("READ_RATE_LIMIT_PER_MINUTE", 120)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "FINANCING_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CUSTODY_API_BASE_URL")
	_ = viper.BindEnv("CUSTODY_API_KEY")
	_ = viper.BindEnv("AUTH_SERVICE_BASE_URL")
	_ = viper.BindEnv("AUTH_SERVICE_API_KEY")
	_ = viper.BindEnv("PLATFORM_TREASURY_ACCOUNT_ID")
	_ = viper.BindEnv("EXTERNAL_AGENT_ID")
	_ = viper.BindEnv("DEFAULT_MINIMUM_DEPOSIT")
	_ = viper.BindEnv("DEFAULT_MAXIMUM_DEPOSIT")
	_ = viper.BindEnv("DEFAULT_RESERVED_FUNDS")
	_ = viper.BindEnv("DEFAULT_MAX_DEPLOYMENT_BPS")
	_ = viper.BindEnv("DEFAULT_FUNDING_WINDOW_DAYS")
	_ = viper.BindEnv("VAULT_EXPIRY_SCHEDULE")
	_ = viper.BindEnv("METRICS_REFRESH_SCHEDULE")
	_ = viper.BindEnv("READ_RATE_LIMIT_PER_MINUTE")

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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("FINANCING_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "fundra:rate_limit"
	}

	if config.DefaultMinimumDeposit <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive minimum deposit configured; using 100\" value=%d", config.DefaultMinimumDeposit)
		config.DefaultMinimumDeposit = 100
	}
	if config.DefaultMaximumDeposit < config.DefaultMinimumDeposit {
		log.Printf("level=warn component=config msg=\"maximum deposit below minimum; raising to minimum\" max=%d min=%d", config.DefaultMaximumDeposit, config.DefaultMinimumDeposit)
		config.DefaultMaximumDeposit = config.DefaultMinimumDeposit
	}
	if config.DefaultMaxDeploymentBps < 0 || config.DefaultMaxDeploymentBps > 10000 {
		log.Printf("level=warn component=config msg=\"deployment cap out of range; using 8000 bps\" value=%d", config.DefaultMaxDeploymentBps)
		config.DefaultMaxDeploymentBps = 8000
	}
	if config.DefaultFundingWindowDays <= 0 {
		config.DefaultFundingWindowDays = 30
	}
	if config.ReadRateLimitPerMinute <= 0 {
		config.ReadRateLimitPerMinute = 120
	}

	return
}
