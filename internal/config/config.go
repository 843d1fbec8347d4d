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
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the remittance-service.
// These values are loaded from environment variables. Velocity limits and
// thresholds are configured in whole currency units of the base currency and
// normalized to minor units after loading.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisHealthPrefix    string `mapstructure:"REDIS_HEALTH_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	AuthJWKSURL          string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience         string `mapstructure:"AUTH_AUDIENCE"`
	AuthIssuer           string `mapstructure:"AUTH_ISSUER"`
	AdminUserIDs         string `mapstructure:"ADMIN_USER_IDS"` // comma-separated
	AccountServiceURL    string `mapstructure:"ACCOUNT_SERVICE_URL"`
	AccountServiceAPIKey string `mapstructure:"ACCOUNT_SERVICE_INTERNAL_API_KEY"`

	BaseCurrency string `mapstructure:"BASE_CURRENCY"`

	// Provider credentials. A provider with an empty secret key is replaced
	// by the deterministic mock gateway at startup.
	PaystackBaseURL          string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackSecretKey        string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackWebhookSecret    string `mapstructure:"PAYSTACK_WEBHOOK_SECRET"`
	MomoBaseURL              string `mapstructure:"MOMO_BASE_URL"`
	MomoSubscriptionKey      string `mapstructure:"MOMO_SUBSCRIPTION_KEY"`
	MomoWebhookSecret        string `mapstructure:"MOMO_WEBHOOK_SECRET"`
	AggregatorBaseURL        string `mapstructure:"AGGREGATOR_BASE_URL"`
	AggregatorSecretKey      string `mapstructure:"AGGREGATOR_SECRET_KEY"`
	AggregatorWebhookSecret  string `mapstructure:"AGGREGATOR_WEBHOOK_SECRET"`
	BankSwitchBaseURL        string `mapstructure:"BANK_SWITCH_BASE_URL"`
	BankSwitchAPIKey         string `mapstructure:"BANK_SWITCH_API_KEY"`
	BankSwitchWebhookSecret  string `mapstructure:"BANK_SWITCH_WEBHOOK_SECRET"`

	// Velocity limits and thresholds, loaded in whole currency units.
	DailyLimitMinor         int64 `mapstructure:"-"`
	MonthlyLimitMinor       int64 `mapstructure:"-"`
	KYCThresholdMinor       int64 `mapstructure:"-"`
	HighValueThresholdMinor int64 `mapstructure:"-"`

	PickupCodeTTLHours int `mapstructure:"PICKUP_CODE_TTL_HOURS"`
}

// limit env vars are read in major units and converted after unmarshal.
const (
	defaultDailyLimit         = 10000.0
	defaultMonthlyLimit       = 50000.0
	defaultKYCThreshold       = 1000.0
	defaultHighValueThreshold = 5000.0
)

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
	viper.SetDefault("BASE_CURRENCY", "GHS")
	viper.SetDefault("REDIS_HEALTH_PREFIX", "sikaremit:gateway_health")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("MOMO_BASE_URL", "https://proxy.momoapi.mtn.com")
	viper.SetDefault("AGGREGATOR_BASE_URL", "https://api.flutterwave.com/v3")
	viper.SetDefault("DAILY_LIMIT", defaultDailyLimit)
	viper.SetDefault("MONTHLY_LIMIT", defaultMonthlyLimit)
	viper.SetDefault("KYC_AMOUNT_THRESHOLD", defaultKYCThreshold)
	viper.SetDefault("HIGH_VALUE_THRESHOLD", defaultHighValueThreshold)
	viper.SetDefault("PICKUP_CODE_TTL_HOURS", 168)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "REMITTANCE_REDIS_URL")
	_ = viper.BindEnv("REDIS_HEALTH_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("AUTH_AUDIENCE")
	_ = viper.BindEnv("AUTH_ISSUER")
	_ = viper.BindEnv("ADMIN_USER_IDS")
	_ = viper.BindEnv("ACCOUNT_SERVICE_URL")
	_ = viper.BindEnv("ACCOUNT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("BASE_CURRENCY")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("PAYSTACK_WEBHOOK_SECRET")
	_ = viper.BindEnv("MOMO_BASE_URL")
	_ = viper.BindEnv("MOMO_SUBSCRIPTION_KEY")
	_ = viper.BindEnv("MOMO_WEBHOOK_SECRET")
	_ = viper.BindEnv("AGGREGATOR_BASE_URL")
	_ = viper.BindEnv("AGGREGATOR_SECRET_KEY")
	_ = viper.BindEnv("AGGREGATOR_WEBHOOK_SECRET")
	_ = viper.BindEnv("BANK_SWITCH_BASE_URL")
	_ = viper.BindEnv("BANK_SWITCH_API_KEY")
	_ = viper.BindEnv("BANK_SWITCH_WEBHOOK_SECRET")
	_ = viper.BindEnv("DAILY_LIMIT")
	_ = viper.BindEnv("MONTHLY_LIMIT")
	_ = viper.BindEnv("KYC_AMOUNT_THRESHOLD")
	_ = viper.BindEnv("HIGH_VALUE_THRESHOLD")
	_ = viper.BindEnv("PICKUP_CODE_TTL_HOURS")

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
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisHealthPrefix = strings.TrimSpace(config.RedisHealthPrefix)
	if config.RedisHealthPrefix == "" {
		config.RedisHealthPrefix = "sikaremit:gateway_health"
	}
	config.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.BaseCurrency))
	if config.BaseCurrency == "" {
		config.BaseCurrency = "GHS"
	}

	config.DailyLimitMinor = limitMinor("DAILY_LIMIT", defaultDailyLimit)
	config.MonthlyLimitMinor = limitMinor("MONTHLY_LIMIT", defaultMonthlyLimit)
	config.KYCThresholdMinor = limitMinor("KYC_AMOUNT_THRESHOLD", defaultKYCThreshold)
	config.HighValueThresholdMinor = limitMinor("HIGH_VALUE_THRESHOLD", defaultHighValueThreshold)

	if config.PickupCodeTTLHours <= 0 {
		config.PickupCodeTTLHours = 168
	}

	return
}

// limitMinor reads a limit configured in whole currency units and converts it
// to minor units, falling back to the default on a bad value.
func limitMinor(key string, fallback float64) int64 {
	raw := strings.TrimSpace(viper.GetString(key))
	value := fallback
	if raw != "" {
		parsed, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			log.Printf("level=warn component=config msg=\"invalid limit value\" key=%s value=%q err=%v", key, raw, parseErr)
		} else if parsed <= 0 {
			log.Printf("level=warn component=config msg=\"non-positive limit value; using default\" key=%s value=%q", key, raw)
		} else {
			value = parsed
		}
	}
	return int64(math.Round(value * 100))
}

// AdminIDSet parses the comma-separated admin list into a set.
func (c *Config) AdminIDSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, id := range strings.Split(c.AdminUserIDs, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
