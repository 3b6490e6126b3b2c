// Package config loads Glassdome's configuration from file and
// environment variables using viper, following the same typed
// Config-struct-with-mapstructure-tags convention used throughout the
// rest of the control plane's ambient stack.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Overseer process.
type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	Admin       AdminConfig       `mapstructure:"admin"`
	SystemState SystemStateConfig `mapstructure:"system_state"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	ClickHouse  ClickHouseConfig  `mapstructure:"clickhouse"`
	Overseer    OverseerConfig    `mapstructure:"overseer"`
	Reaper      ReaperConfig      `mapstructure:"reaper"`
	Platforms   PlatformsConfig   `mapstructure:"platforms"`
}

// AdminConfig holds the minimal CLI-facing introspection HTTP surface.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// SystemStateConfig controls where the Overseer's durable ledger lives.
type SystemStateConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig holds the Postgres connection used by the Reaper mission
// store (per-mission MissionState persisted as a JSONB document).
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig backs the Reaper task queue / event bus.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Backend  string `mapstructure:"backend"` // "redis" or "memory"
}

// ClickHouseConfig backs the Registry's StateChange audit sink.
type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// OverseerConfig holds the cadences of the monitor, state-sync and health
// loops, the execution queue size, and the request-gate deploy limit.
type OverseerConfig struct {
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	StateSyncInterval time.Duration `mapstructure:"state_sync_interval"`
	HealthInterval    time.Duration `mapstructure:"health_interval"`
	RequestQueueSize  int           `mapstructure:"request_queue_size"`
	MaxDeployCount    int           `mapstructure:"max_deploy_count"`
}

// ReaperConfig holds Reaper-wide defaults.
type ReaperConfig struct {
	MaxFailures     int    `mapstructure:"max_failures"`
	PlaybookCatalog string `mapstructure:"playbook_catalog"`
}

// PlatformsConfig lists which platform adapters the Overseer instantiates
// (all of them once, at startup) and their connection settings. Building
// an adapter makes no network call; OAuth2 tokens are fetched on first
// use.
type PlatformsConfig struct {
	Enabled []string           `mapstructure:"enabled"`
	Proxmox ProxmoxPlatform    `mapstructure:"proxmox"`
	ESXi    ESXiPlatform       `mapstructure:"esxi"`
	AWS     AWSPlatform        `mapstructure:"aws"`
	Azure   AzurePlatform      `mapstructure:"azure"`
}

// ProxmoxPlatform holds connection settings for the Proxmox VE adapter.
type ProxmoxPlatform struct {
	BaseURL     string `mapstructure:"base_url"`
	Username    string `mapstructure:"username"`
	TokenID     string `mapstructure:"token_id"`
	TokenSecret string `mapstructure:"token_secret"`
	DefaultNode string `mapstructure:"default_node"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
}

// ESXiPlatform holds connection settings for the vCenter/ESXi adapter.
type ESXiPlatform struct {
	BaseURL     string `mapstructure:"base_url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
}

// AWSPlatform holds connection settings for the EC2-gateway adapter.
type AWSPlatform struct {
	Region       string `mapstructure:"region"`
	GatewayURL   string `mapstructure:"gateway_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// AzurePlatform holds connection settings for the ARM adapter.
type AzurePlatform struct {
	TenantID       string `mapstructure:"tenant_id"`
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	SubscriptionID string `mapstructure:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group"`
}

// Load reads configuration from an optional file, environment variables,
// and built-in defaults. Env vars override file values, per viper's
// AutomaticEnv semantics.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/glassdome")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")

	viper.SetDefault("admin.host", "127.0.0.1")
	viper.SetDefault("admin.port", "8090")

	viper.SetDefault("system_state.path", "./data/system_state.json")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "glassdome")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.backend", "memory")

	viper.SetDefault("clickhouse.enabled", false)
	viper.SetDefault("clickhouse.address", "localhost:9000")
	viper.SetDefault("clickhouse.user", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.database", "glassdome_audit")

	viper.SetDefault("overseer.monitor_interval", "30s")
	viper.SetDefault("overseer.state_sync_interval", "60s")
	viper.SetDefault("overseer.health_interval", "300s")
	viper.SetDefault("overseer.request_queue_size", 256)
	viper.SetDefault("overseer.max_deploy_count", 20)

	viper.SetDefault("reaper.max_failures", 3)
	viper.SetDefault("reaper.playbook_catalog", "./config/playbooks.yaml")

	viper.SetDefault("platforms.enabled", []string{"proxmox"})
}

// Validate checks invariants the rest of the system relies on at startup.
func (c *Config) Validate() error {
	if c.Admin.Port == "" {
		return fmt.Errorf("admin port is required")
	}
	if c.SystemState.Path == "" {
		return fmt.Errorf("system_state path is required")
	}
	if c.Reaper.MaxFailures <= 0 {
		return fmt.Errorf("reaper max_failures must be positive")
	}
	if c.Overseer.MaxDeployCount <= 0 {
		return fmt.Errorf("overseer max_deploy_count must be positive")
	}
	return nil
}
