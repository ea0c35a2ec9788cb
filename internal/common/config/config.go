// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Inbound  InboundConfig  `mapstructure:"inbound"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// SourceConfig holds settings for the upstream procurement source client.
type SourceConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	PageSize        int    `mapstructure:"page_size"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// DispatchConfig holds the poll cycle scheduling settings. The delay between
// cycles is drawn uniformly from [MinDelayMinutes, MaxDelayMinutes].
type DispatchConfig struct {
	MinDelayMinutes    int `mapstructure:"min_delay_minutes"`
	MaxDelayMinutes    int `mapstructure:"max_delay_minutes"`
	MaxParallelSubs    int `mapstructure:"max_parallel_subs"`
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds"`
}

// ChannelsConfig holds per-channel enable flags and credentials.
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Email    EmailConfig    `mapstructure:"email"`
	SMS      SMSConfig      `mapstructure:"sms"`

	ContextTTLMinutes int `mapstructure:"context_ttl_minutes"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

type WhatsAppConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AccessToken   string `mapstructure:"access_token"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	APIBase       string `mapstructure:"api_base"`
}

type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
	AWSRegion string `mapstructure:"aws_region"`
}

type SMSConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SenderID  string `mapstructure:"sender_id"`
	AWSRegion string `mapstructure:"aws_region"`
}

// InboundConfig holds the webhook gateway and queue settings.
type InboundConfig struct {
	Port                 int    `mapstructure:"port"`
	VerifyToken          string `mapstructure:"verify_token"`
	ExpectedObject       string `mapstructure:"expected_object"`
	QueueCap             int    `mapstructure:"queue_cap"`
	QueueTTLHours        int    `mapstructure:"queue_ttl_hours"`
	InlineTimeoutSeconds int    `mapstructure:"inline_timeout_seconds"`
}

// AuditConfig controls the best-effort notification audit index.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
