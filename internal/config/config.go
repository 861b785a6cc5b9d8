package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tradetools/gdax-cli/pkg/secrets"
)

type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GCP      GCPConfig      `mapstructure:"gcp"`
}

type ExchangeConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	WebSocketURL   string `mapstructure:"websocket_url"`
	ProductID      string `mapstructure:"product_id"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec"`
}

type AuthConfig struct {
	// File is the local credential file: {"API_KEY", "API_SECRET", "API_PASS"}.
	File string `mapstructure:"file"`
	// Type selects the authentication scheme: "legacy" or "jwt".
	Type string `mapstructure:"type"`

	// JWT authentication (newer method)
	APIKeyName    string `mapstructure:"api_key_name"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`
}

type WatchConfig struct {
	// OrderPollIntervalMs paces the order watch loop. Defaults to 1000.
	OrderPollIntervalMs int `mapstructure:"order_poll_interval_ms"`
	// TickerPollIntervalMs paces the live ticker loop. Zero keeps the
	// historical fetch-as-fast-as-possible behavior.
	TickerPollIntervalMs int `mapstructure:"ticker_poll_interval_ms"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	// A .env alongside the binary may carry credential overrides; it is
	// fine for it to be absent.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/gdax")
	}

	v.SetEnvPrefix("GDAX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.base_url", "https://api.exchange.coinbase.com")
	v.SetDefault("exchange.websocket_url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("exchange.product_id", "BTC-USD")
	v.SetDefault("exchange.http_timeout_sec", 30)

	v.SetDefault("auth.file", "auth.json")
	v.SetDefault("auth.type", "legacy")
	v.SetDefault("auth.api_key_name", "")
	v.SetDefault("auth.private_key_pem", "")

	v.SetDefault("watch.order_poll_interval_ms", 1000)
	v.SetDefault("watch.ticker_poll_interval_ms", 0)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	names := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.api_key", names.APIKey)
	v.SetDefault("gcp.secret_names.api_secret", names.APISecret)
	v.SetDefault("gcp.secret_names.passphrase", names.Passphrase)
}

// Credentials is the content of the local auth file. Field names match
// the file's historical keys.
type Credentials struct {
	APIKey     string `json:"API_KEY"`
	APISecret  string `json:"API_SECRET"`
	Passphrase string `json:"API_PASS"`
}

// LoadCredentials resolves the API credential in order: auth file, then
// environment overrides, then GCP Secret Manager for anything still
// unset (when enabled). An unusable result is a fatal startup error for
// the caller.
func LoadCredentials(ctx context.Context, cfg *Config, logger *logrus.Logger) (*Credentials, error) {
	creds := &Credentials{}

	data, err := os.ReadFile(cfg.Auth.File)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("malformed auth file %s: %w", cfg.Auth.File, err)
		}
	case os.IsNotExist(err) && cfg.GCP.UseSecrets:
		// No local file; secrets will come from GCP below.
	default:
		return nil, fmt.Errorf("read auth file %s: %w", cfg.Auth.File, err)
	}

	overrideFromEnv(creds)

	if cfg.GCP.UseSecrets && cfg.GCP.ProjectID != "" {
		if err := loadSecretsFromGCP(ctx, cfg, creds, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if creds.APIKey == "" || creds.APISecret == "" || creds.Passphrase == "" {
		return nil, fmt.Errorf("incomplete credentials: API_KEY, API_SECRET and API_PASS are all required")
	}
	return creds, nil
}

func overrideFromEnv(creds *Credentials) {
	if apiKey := os.Getenv("GDAX_API_KEY"); apiKey != "" {
		creds.APIKey = apiKey
	}
	if apiSecret := os.Getenv("GDAX_API_SECRET"); apiSecret != "" {
		creds.APISecret = apiSecret
	}
	if passphrase := os.Getenv("GDAX_API_PASS"); passphrase != "" {
		creds.Passphrase = passphrase
	}
}

func loadSecretsFromGCP(ctx context.Context, cfg *Config, creds *Credentials, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, cfg.GCP.ProjectID, cfg.GCP.CredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that are not already set locally.
	if creds.APIKey == "" {
		creds.APIKey = secretManager.GetSecretWithDefault(ctx, cfg.GCP.SecretNames.APIKey, "")
	}
	if creds.APISecret == "" {
		creds.APISecret = secretManager.GetSecretWithDefault(ctx, cfg.GCP.SecretNames.APISecret, "")
	}
	if creds.Passphrase == "" {
		creds.Passphrase = secretManager.GetSecretWithDefault(ctx, cfg.GCP.SecretNames.Passphrase, "")
	}

	logger.Info("Loaded secrets from GCP Secret Manager")
	return nil
}
