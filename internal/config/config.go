// Package config loads customs/route process configuration from a file
// (YAML/TOML/JSON, whatever extension is given), environment variables
// (BRIDGE_ prefix), and defaults, using spf13/viper — the same
// configuration library present in the pack's cosmos-sdk-based repos
// (pushchain-push-chain-node) for exactly this layered
// file+env+default pattern.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of knobs one customs or route process needs.
type Config struct {
	ChainID   string `mapstructure:"chain_id"`
	ChainType string `mapstructure:"chain_type"`

	HubURL        string        `mapstructure:"hub_url"`
	HubMaxRetries int           `mapstructure:"hub_max_retries"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`

	EventLogDir string `mapstructure:"event_log_dir"`
	AuditLogPath string `mapstructure:"audit_log_path"`

	RPCEndpoints []string `mapstructure:"rpc_endpoints"`

	SignerMode    string `mapstructure:"signer_mode"` // "local" or "remote"
	SignerURL     string `mapstructure:"signer_url"`
	SignerMnemonicEnv string `mapstructure:"signer_mnemonic_env"`

	MinConfirmations        int           `mapstructure:"min_confirmations"`
	FinalizationTimeEstimate time.Duration `mapstructure:"finalization_time_estimate"`

	MinimumResponseCount int `mapstructure:"minimum_response_count"`
	TotalRequiredCount   int `mapstructure:"total_required_count"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("hub_max_retries", 5)
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("event_log_dir", "./data/eventlog")
	v.SetDefault("audit_log_path", "./data/audit.ndjson")
	v.SetDefault("signer_mode", "local")
	v.SetDefault("min_confirmations", 6)
	v.SetDefault("finalization_time_estimate", 60*time.Minute)
	v.SetDefault("minimum_response_count", 2)
	v.SetDefault("total_required_count", 3)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the defaults above, path (if
// non-empty), and environment variables prefixed BRIDGE_ (nested keys
// use underscores, e.g. BRIDGE_HUB_URL), in increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("bridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("config: chain_id is required")
	}
	if c.HubURL == "" {
		return fmt.Errorf("config: hub_url is required")
	}
	if c.SignerMode != "local" && c.SignerMode != "remote" {
		return fmt.Errorf("config: signer_mode must be \"local\" or \"remote\", got %q", c.SignerMode)
	}
	if c.SignerMode == "remote" && c.SignerURL == "" {
		return fmt.Errorf("config: signer_url is required when signer_mode is \"remote\"")
	}
	if c.MinimumResponseCount > c.TotalRequiredCount {
		return fmt.Errorf("config: minimum_response_count (%d) cannot exceed total_required_count (%d)", c.MinimumResponseCount, c.TotalRequiredCount)
	}
	return nil
}
