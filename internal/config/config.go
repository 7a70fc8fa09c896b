package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"OpenMCP-Stellar/pkg/logger"
)

// Environment variables.
const (
	EnvConfigPath = "STELLARMCP_CONFIG"
	EnvHorizonURL = "HORIZON_URL"
	EnvNetwork    = "STELLAR_NETWORK"
	EnvTransport  = "STELLARMCP_TRANSPORT"
	EnvAddress    = "STELLARMCP_ADDRESS"
	EnvVaultKey   = "STELLARMCP_VAULT_KEY"
	EnvAPITokens  = "STELLARMCP_API_TOKENS"
	EnvMySQLDSN   = "MYSQL_DSN"
	EnvRedisURL   = "REDIS_URL"
	EnvRabbitURL  = "RABBITMQ_URL"
	EnvBaseFee    = "STELLARMCP_BASE_FEE"
	EnvMetrics    = "STELLARMCP_METRICS_ADDRESS"

	DefaultConfigPath = "configs/stellarmcp.yaml"
)

// Config is everything the service reads at startup.
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Trading  TradingConfig  `yaml:"trading"`
	Vault    VaultConfig    `yaml:"vault"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Alerting AlertingConfig `yaml:"alerting"`
	Logging  logger.Config  `yaml:"logging"`
}

// NetworkConfig selects the Stellar network.
type NetworkConfig struct {
	// Name is testnet, public or a name from the definitions file.
	Name         string `yaml:"name"`
	HorizonURL   string `yaml:"horizon_url"`
	FriendbotURL string `yaml:"friendbot_url"`
	Passphrase   string `yaml:"passphrase"`
	// DefinitionsFile points at a YAML file with extra networks.
	DefinitionsFile string `yaml:"definitions_file"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Timeout is the HTTP request timeout.
func (n NetworkConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// TradingConfig holds transaction building parameters.
type TradingConfig struct {
	BaseFee           int64 `yaml:"base_fee"`
	TimeBoundsSeconds int64 `yaml:"time_bounds_seconds"`
	OrderBookDepth    int   `yaml:"order_book_depth"`
	TransactionsLimit int   `yaml:"transactions_limit"`
}

// VaultConfig selects how custodied keys are persisted.
type VaultConfig struct {
	// Driver is memory or badger.
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"`
}

// ServerConfig selects the exposed transports.
type ServerConfig struct {
	// Transport is stdio, http or both.
	Transport      string   `yaml:"transport"`
	Address        string   `yaml:"address"`
	APITokens      []string `yaml:"api_tokens"`
	IdempotencyTTL int      `yaml:"idempotency_ttl_seconds"`
	// MetricsAddress serves /metrics on its own listener when set.
	MetricsAddress string   `yaml:"metrics_address"`
}

// StorageConfig holds backend connection settings.
type StorageConfig struct {
	Journal     JournalConfig     `yaml:"journal"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Events      EventsConfig      `yaml:"events"`
}

// JournalConfig configures the submission journal.
type JournalConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// IdempotencyConfig configures the HTTP idempotency key store.
type IdempotencyConfig struct {
	Driver   string `yaml:"driver"`
	RedisURL string `yaml:"redis_url"`
}

// EventsConfig configures where submission events are published.
type EventsConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	Topic  string `yaml:"topic"`
}

// AlertingConfig configures alert channels.
type AlertingConfig struct {
	WebhookURL      string `yaml:"webhook_url"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel"`
}

// Load reads .env, the YAML file and the environment. An empty path means
// STELLARMCP_CONFIG or the default path; a missing default file yields defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	var cfg Config
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	set(EnvHorizonURL, &c.Network.HorizonURL)
	set(EnvNetwork, &c.Network.Name)
	set(EnvTransport, &c.Server.Transport)
	set(EnvAddress, &c.Server.Address)
	set(EnvMetrics, &c.Server.MetricsAddress)
	set(EnvVaultKey, &c.Vault.EncryptionKey)
	set(EnvMySQLDSN, &c.Storage.Journal.DSN)
	set(EnvRedisURL, &c.Storage.Idempotency.RedisURL)
	switch c.Storage.Events.Driver {
	case "rabbitmq":
		set(EnvRabbitURL, &c.Storage.Events.URL)
	case "redis":
		if c.Storage.Events.URL == "" {
			set(EnvRedisURL, &c.Storage.Events.URL)
		}
	}
	if v, ok := lookup(EnvAPITokens); ok && v != "" {
		c.Server.APITokens = c.Server.APITokens[:0]
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				c.Server.APITokens = append(c.Server.APITokens, token)
			}
		}
	}
	if v, ok := lookup(EnvBaseFee); ok {
		if fee, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Trading.BaseFee = fee
		}
	}
}

// applyDefaults fills in unset fields.
func (c *Config) applyDefaults(baseDir string) {
	if c.Network.Name == "" {
		c.Network.Name = "testnet"
	}
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = 30
	}
	if c.Network.DefinitionsFile != "" && !filepath.IsAbs(c.Network.DefinitionsFile) {
		c.Network.DefinitionsFile = filepath.Join(baseDir, c.Network.DefinitionsFile)
	}

	if c.Trading.BaseFee <= 0 {
		c.Trading.BaseFee = 100
	}
	if c.Trading.TimeBoundsSeconds <= 0 {
		c.Trading.TimeBoundsSeconds = 300
	}
	if c.Trading.OrderBookDepth <= 0 {
		c.Trading.OrderBookDepth = 20
	}
	if c.Trading.TransactionsLimit <= 0 {
		c.Trading.TransactionsLimit = 10
	}

	if c.Vault.Driver == "" {
		c.Vault.Driver = "memory"
	}
	if c.Vault.Driver == "badger" {
		if c.Vault.Path == "" {
			c.Vault.Path = filepath.Join(baseDir, "data", "vault")
		} else if !filepath.IsAbs(c.Vault.Path) {
			c.Vault.Path = filepath.Join(baseDir, c.Vault.Path)
		}
	}

	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.IdempotencyTTL <= 0 {
		c.Server.IdempotencyTTL = 86400
	}

	if c.Storage.Journal.Driver == "" {
		c.Storage.Journal.Driver = "memory"
	}
	if c.Storage.Idempotency.Driver == "" {
		c.Storage.Idempotency.Driver = "memory"
	}
	if c.Storage.Events.Driver == "" {
		c.Storage.Events.Driver = "memory"
	}
	if c.Storage.Events.Topic == "" {
		c.Storage.Events.Topic = "stellarmcp.submissions"
	}
}

// Validate checks drivers and the settings they require.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http", "both":
	default:
		return fmt.Errorf("unsupported transport: %s", c.Server.Transport)
	}
	switch c.Vault.Driver {
	case "memory":
	case "badger":
		if c.Vault.EncryptionKey == "" {
			return errors.New("badger vault requires an encryption key")
		}
	default:
		return fmt.Errorf("unsupported vault driver: %s", c.Vault.Driver)
	}
	switch c.Storage.Journal.Driver {
	case "memory":
	case "mysql":
		if c.Storage.Journal.DSN == "" {
			return errors.New("mysql journal requires a DSN")
		}
	default:
		return fmt.Errorf("unsupported journal driver: %s", c.Storage.Journal.Driver)
	}
	switch c.Storage.Idempotency.Driver {
	case "memory":
	case "redis":
		if c.Storage.Idempotency.RedisURL == "" {
			return errors.New("redis idempotency store requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported idempotency driver: %s", c.Storage.Idempotency.Driver)
	}
	switch c.Storage.Events.Driver {
	case "memory", "none":
	case "redis", "rabbitmq":
		if c.Storage.Events.URL == "" {
			return fmt.Errorf("%s events driver requires a URL", c.Storage.Events.Driver)
		}
	default:
		return fmt.Errorf("unsupported events driver: %s", c.Storage.Events.Driver)
	}
	return nil
}
