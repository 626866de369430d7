// Package config loads the switchlink configuration file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/switchlink/pkg/models"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SWITCHLINK_DFSP_ID.
const EnvPrefix = "SWITCHLINK"

// Config is the full process configuration.
type Config struct {
	DFSPID              string   `mapstructure:"dfsp_id"`
	SupportedCurrencies []string `mapstructure:"supported_currencies"`

	AutoAcceptParty      bool `mapstructure:"auto_accept_party"`
	AutoAcceptQuotes     bool `mapstructure:"auto_accept_quotes"`
	AutoAcceptConversion bool `mapstructure:"auto_accept_conversion"`

	UseQuoteSourceAsTransferDestination bool `mapstructure:"use_quote_source_as_transfer_destination"`
	RejectExpiredQuoteResponses         bool `mapstructure:"reject_expired_quote_responses"`
	RejectExpiredFxQuoteResponses       bool `mapstructure:"reject_expired_fx_quote_responses"`
	ValidateFulfilment                  bool `mapstructure:"validate_fulfilment"`
	SendFinalNotificationIfRequested    bool `mapstructure:"send_final_notification_if_requested"`

	MultiplePartiesResponse        bool `mapstructure:"multiple_parties_response"`
	MultiplePartiesResponseSeconds int  `mapstructure:"multiple_parties_response_seconds"`
	ExpirySeconds                  int  `mapstructure:"expiry_seconds"`
	RequestTimeoutSeconds          int  `mapstructure:"request_timeout_seconds"`

	Redis      RedisConfig      `mapstructure:"redis"`
	Switch     SwitchConfig     `mapstructure:"switch"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

// RedisConfig selects the shared cache. An empty Addr uses the in-memory cache.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type SwitchConfig struct {
	Endpoint       string            `mapstructure:"endpoint"`
	Endpoints      map[string]string `mapstructure:"endpoints"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Retries        int               `mapstructure:"retries"`
}

type ServerConfig struct {
	APIAddr      string `mapstructure:"api_addr"`
	CallbackAddr string `mapstructure:"callback_addr"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EncryptionConfig enables at-rest encryption of persisted records.
// Key is a hex encoded 32 byte AES-256 key.
type EncryptionConfig struct {
	Key string `mapstructure:"key"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SupportedCurrencies:            []string{},
		MultiplePartiesResponseSeconds: 5,
		ExpirySeconds:                  60,
		RequestTimeoutSeconds:          30,
		Switch: SwitchConfig{
			Endpoint:       "http://localhost:4000",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			APIAddr:      ":4001",
			CallbackAddr: ":4000",
			MetricsAddr:  ":9090",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (YAML) over the defaults and applies SWITCHLINK_* overrides.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("dfsp_id", cfg.DFSPID)
	v.SetDefault("supported_currencies", cfg.SupportedCurrencies)
	v.SetDefault("auto_accept_party", cfg.AutoAcceptParty)
	v.SetDefault("auto_accept_quotes", cfg.AutoAcceptQuotes)
	v.SetDefault("auto_accept_conversion", cfg.AutoAcceptConversion)
	v.SetDefault("use_quote_source_as_transfer_destination", cfg.UseQuoteSourceAsTransferDestination)
	v.SetDefault("reject_expired_quote_responses", cfg.RejectExpiredQuoteResponses)
	v.SetDefault("reject_expired_fx_quote_responses", cfg.RejectExpiredFxQuoteResponses)
	v.SetDefault("validate_fulfilment", cfg.ValidateFulfilment)
	v.SetDefault("send_final_notification_if_requested", cfg.SendFinalNotificationIfRequested)
	v.SetDefault("multiple_parties_response", cfg.MultiplePartiesResponse)
	v.SetDefault("multiple_parties_response_seconds", cfg.MultiplePartiesResponseSeconds)
	v.SetDefault("expiry_seconds", cfg.ExpirySeconds)
	v.SetDefault("request_timeout_seconds", cfg.RequestTimeoutSeconds)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.ttl_seconds", cfg.Redis.TTLSeconds)

	v.SetDefault("switch.endpoint", cfg.Switch.Endpoint)
	v.SetDefault("switch.timeout_seconds", cfg.Switch.TimeoutSeconds)
	v.SetDefault("switch.retries", cfg.Switch.Retries)

	v.SetDefault("server.api_addr", cfg.Server.APIAddr)
	v.SetDefault("server.callback_addr", cfg.Server.CallbackAddr)
	v.SetDefault("server.metrics_addr", cfg.Server.MetricsAddr)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("encryption.key", cfg.Encryption.Key)
}

// Validate rejects configurations the models cannot run with.
func (c Config) Validate() error {
	if c.DFSPID == "" {
		return fmt.Errorf("dfsp_id is required")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.MultiplePartiesResponse && c.MultiplePartiesResponseSeconds <= 0 {
		return fmt.Errorf("multiple_parties_response_seconds must be positive when multiple_parties_response is set")
	}
	return nil
}

// Models projects the settings the transaction models use.
func (c Config) Models() models.Config {
	return models.Config{
		DFSPID:                              c.DFSPID,
		SupportedCurrencies:                 c.SupportedCurrencies,
		AutoAcceptParty:                     c.AutoAcceptParty,
		AutoAcceptQuotes:                    c.AutoAcceptQuotes,
		AutoAcceptConversion:                c.AutoAcceptConversion,
		UseQuoteSourceAsTransferDestination: c.UseQuoteSourceAsTransferDestination,
		RejectExpiredQuoteResponses:         c.RejectExpiredQuoteResponses,
		RejectExpiredFxQuoteResponses:       c.RejectExpiredFxQuoteResponses,
		ValidateFulfilment:                  c.ValidateFulfilment,
		SendFinalNotificationIfRequested:    c.SendFinalNotificationIfRequested,
		MultiplePartiesResponse:             c.MultiplePartiesResponse,
		MultiplePartiesResponseWindow:       seconds(c.MultiplePartiesResponseSeconds),
		ExpiryDuration:                      seconds(c.ExpirySeconds),
		RequestTimeout:                      seconds(c.RequestTimeoutSeconds),
		RecordTTL:                           seconds(c.Redis.TTLSeconds),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
