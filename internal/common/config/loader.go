// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like TELEGRAM_BOT_TOKEN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries a few locations so the service starts the same way from
// the repo root, a cmd directory or a test package.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills credentials from well-known env vars if the
// config file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Channels.Telegram.BotToken == "" {
		if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
			cfg.Channels.Telegram.BotToken = val
		}
	}
	if cfg.Channels.WhatsApp.AccessToken == "" {
		if val := os.Getenv("WHATSAPP_ACCESS_TOKEN"); val != "" {
			cfg.Channels.WhatsApp.AccessToken = val
		}
	}
	if cfg.Channels.WhatsApp.PhoneNumberID == "" {
		if val := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); val != "" {
			cfg.Channels.WhatsApp.PhoneNumberID = val
		}
	}
	if cfg.Inbound.VerifyToken == "" {
		if val := os.Getenv("WEBHOOK_VERIFY_TOKEN"); val != "" {
			cfg.Inbound.VerifyToken = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.MetricsPort == 0 {
		cfg.App.MetricsPort = 9102
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "notifications"
	}

	// Source defaults
	if cfg.Source.PageSize == 0 {
		cfg.Source.PageSize = 100
	}
	if cfg.Source.CacheTTLMinutes == 0 {
		cfg.Source.CacheTTLMinutes = 10
	}
	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = 30
	}

	// Dispatch defaults
	if cfg.Dispatch.MinDelayMinutes == 0 {
		cfg.Dispatch.MinDelayMinutes = 20
	}
	if cfg.Dispatch.MaxDelayMinutes == 0 {
		cfg.Dispatch.MaxDelayMinutes = 40
	}
	if cfg.Dispatch.MaxParallelSubs == 0 {
		cfg.Dispatch.MaxParallelSubs = 8
	}
	if cfg.Dispatch.SendTimeoutSeconds == 0 {
		cfg.Dispatch.SendTimeoutSeconds = 15
	}

	// Channel defaults
	if cfg.Channels.Telegram.APIBase == "" {
		cfg.Channels.Telegram.APIBase = "https://api.telegram.org"
	}
	if cfg.Channels.WhatsApp.APIBase == "" {
		cfg.Channels.WhatsApp.APIBase = "https://graph.facebook.com/v19.0"
	}
	if cfg.Channels.ContextTTLMinutes == 0 {
		cfg.Channels.ContextTTLMinutes = 60
	}

	// Inbound defaults
	if cfg.Inbound.Port == 0 {
		cfg.Inbound.Port = 8080
	}
	if cfg.Inbound.ExpectedObject == "" {
		cfg.Inbound.ExpectedObject = "whatsapp_business_account"
	}
	if cfg.Inbound.QueueCap == 0 {
		cfg.Inbound.QueueCap = 500
	}
	if cfg.Inbound.QueueTTLHours == 0 {
		cfg.Inbound.QueueTTLHours = 24
	}
	if cfg.Inbound.InlineTimeoutSeconds == 0 {
		cfg.Inbound.InlineTimeoutSeconds = 5
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Dispatch.MinDelayMinutes > cfg.Dispatch.MaxDelayMinutes {
		return fmt.Errorf("dispatch min_delay_minutes (%d) exceeds max_delay_minutes (%d)",
			cfg.Dispatch.MinDelayMinutes, cfg.Dispatch.MaxDelayMinutes)
	}
	if cfg.Inbound.QueueCap < 1 {
		return fmt.Errorf("inbound queue_cap must be positive, got %d", cfg.Inbound.QueueCap)
	}
	if cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp channel enabled without phone_number_id")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.BotToken == "" {
		return fmt.Errorf("telegram channel enabled without bot_token")
	}
	if cfg.Channels.Email.Enabled && cfg.Channels.Email.FromEmail == "" {
		return fmt.Errorf("email channel enabled without from_email")
	}
	return nil
}
