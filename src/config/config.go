package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, environment overrides and defaults
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from raw YAML
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 2. Secrets and deployment overrides come from the environment
	loadDotEnv()
	config.ApplyEnv(os.Getenv)

	// 3. Fill unset values
	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// loadDotEnv loads the first .env file found. Missing files are fine.
func loadDotEnv() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv copies environment values over the YAML ones
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Broker.APIKey, "ANGEL_API_KEY")
	setString(&c.Broker.ClientCode, "ANGEL_CLIENT_CODE")
	setString(&c.Broker.Password, "ANGEL_PASSWORD")
	setString(&c.Broker.TOTPSecret, "TOTP_SECRET")
	setString(&c.TokenStore.RedisURL, "REDIS_URL")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.Storage.DBConnectionString, "DB_CONNECTION_STRING")
	setString(&c.Mode, "APP_MODE")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every value the service can run without configuring
func (c *Config) ApplyDefaults() {
	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	setString(&c.Name, "options-observer")
	setString(&c.Host, "0.0.0.0")
	setInt(&c.Port, 3000)
	setString(&c.LogLevel, "INFO")
	setString(&c.Mode, "production")
	setInt(&c.GrpcPort, 50051)

	setString(&c.Broker.BaseURL, "https://apiconnect.angelone.in")
	setInt(&c.Broker.RequestTimeout, 15)
	setInt(&c.Broker.MaxRefreshRetries, 3)
	setInt(&c.Broker.TokenTTLHours, 28)
	setInt(&c.Broker.MaxTokensPerQuote, utils.MaxQuoteTokens)

	setString(&c.ScripMaster.URL, "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json")
	setInt(&c.ScripMaster.Timeout, 20)
	setInt(&c.ScripMaster.TTLHours, 24)
	setInt(&c.ScripMaster.Retries, 2)

	setString(&c.Chain.Underlying, utils.NiftyUnderlying)
	setString(&c.Chain.SpotExchange, utils.ExchangeNSE)
	setString(&c.Chain.SpotToken, utils.NiftySpotToken)
	setString(&c.Chain.VIXToken, utils.IndiaVIXToken)
	setString(&c.Chain.OptionExchange, utils.ExchangeNFO)
	setInt(&c.Chain.StrikeInterval, utils.NiftyStrikeStep)
	setInt(&c.Chain.Window, utils.DefaultWindow)
	setString(&c.Chain.ExpiryWeekday, "thursday")
	setInt(&c.Chain.ExpiryCount, 4)

	setInt(&c.Broadcast.MarketIntervalSeconds, 5)
	setInt(&c.Broadcast.ChainIntervalSeconds, 30)
	setInt(&c.Broadcast.MetricsHistory, 120)

	setInt(&c.Cache.DefaultTTLSeconds, 3600)
	setInt(&c.Cache.CheckPeriodSeconds, 600)

	setString(&c.Storage.DBType, "sqlite")
	if c.Storage.DBType == "sqlite" {
		setString(&c.Storage.DBPath, "data/options.db")
	}

	setString(&c.TokenStore.Type, "memory")
	setString(&c.TokenStore.Key, "authTokens")

	setString(&c.NATS.ClientID, c.Name)
	setString(&c.NATS.SubjectPrefix, "options")
	setInt(&c.NATS.MaxReconnects, 60)
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Broker configuration
	if !strings.HasPrefix(c.Broker.BaseURL, "http") {
		return fmt.Errorf("broker base url must be http(s): %q", c.Broker.BaseURL)
	}
	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("broker timeout must be greater than 0")
	}
	if c.Broker.MaxRefreshRetries <= 0 {
		return fmt.Errorf("max refresh retries must be greater than 0")
	}
	if c.Broker.MaxTokensPerQuote <= 0 {
		return fmt.Errorf("max tokens per quote must be greater than 0")
	}
	if c.Broker.AutoLogin && (c.Broker.ClientCode == "" || c.Broker.Password == "") {
		return fmt.Errorf("auto login requires ANGEL_CLIENT_CODE and ANGEL_PASSWORD")
	}

	// Validate Chain configuration
	if c.Chain.StrikeInterval <= 0 {
		return fmt.Errorf("strike interval must be greater than 0")
	}
	if c.Chain.Window < 0 {
		return fmt.Errorf("strike window cannot be negative")
	}
	if _, err := ParseWeekday(c.Chain.ExpiryWeekday); err != nil {
		return err
	}

	// Validate Broadcast configuration
	if c.Broadcast.MarketIntervalSeconds <= 0 || c.Broadcast.ChainIntervalSeconds <= 0 {
		return fmt.Errorf("broadcast intervals must be greater than 0")
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	// Validate Token store configuration
	switch c.TokenStore.Type {
	case "memory":
	case "redis":
		if c.TokenStore.RedisURL == "" {
			return fmt.Errorf("redis url cannot be empty for redis token store")
		}
	default:
		return fmt.Errorf("unsupported token store type: %q", c.TokenStore.Type)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url cannot be empty when nats is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// Secrets are tagged out of the YAML and never written.
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// ParseWeekday accepts full or three letter English weekday names
func ParseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if key == full || key == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid expiry weekday: %q", name)
}
