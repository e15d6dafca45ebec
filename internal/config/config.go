package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models bountyline.yml. The protocol section holds the fixed
// parameters of the escrow: they are written to the database once at init
// and are immutable afterwards.
type Config struct {
	Protocol ProtocolConfig  `yaml:"protocol" json:"protocol"`
	Server   ServerConfig    `yaml:"server" json:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
	Oracle   OracleConfig    `yaml:"oracle" json:"oracle"`
}

// ProtocolConfig are the fixed escrow parameters.
type ProtocolConfig struct {
	// FeeAmount is skimmed from every issue deposit and forwarded to the
	// operator account. A deposit must strictly exceed it.
	FeeAmount    int64  `yaml:"fee_amount" json:"fee_amount"`
	FeeRecipient string `yaml:"fee_recipient" json:"fee_recipient"`
	// OracleAccount is the only identity allowed to write confidence scores.
	OracleAccount string `yaml:"oracle_account" json:"oracle_account"`
	// Stake bounds as whole percentages of the bounty at take time.
	StakeMinPct int64 `yaml:"stake_min_pct" json:"stake_min_pct"`
	StakeMaxPct int64 `yaml:"stake_max_pct" json:"stake_max_pct"`
	// Default assignment durations in days per difficulty. An issue may
	// override them at creation; they are frozen per issue afterwards.
	Durations DurationDays `yaml:"durations" json:"durations"`
}

// DurationDays is the per-difficulty assignment duration table.
type DurationDays struct {
	Easy   int64 `yaml:"easy" json:"easy"`
	Medium int64 `yaml:"medium" json:"medium"`
	Hard   int64 `yaml:"hard" json:"hard"`
}

type ServerConfig struct {
	JWTSecret     string `yaml:"jwt_secret,omitempty" json:"jwt_secret,omitempty"`
	AllowDevLogin bool   `yaml:"allow_dev_login,omitempty" json:"allow_dev_login,omitempty"`
}

// OracleConfig points at the external analyzer service that produces
// confidence scores. The core never computes a score itself.
type OracleConfig struct {
	AnalyzerURL    string `yaml:"analyzer_url,omitempty" json:"analyzer_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	p := c.Protocol
	if p.FeeAmount <= 0 {
		return fmt.Errorf("config.protocol.fee_amount must be positive")
	}
	if p.FeeRecipient == "" {
		return fmt.Errorf("config.protocol.fee_recipient is required")
	}
	if p.OracleAccount == "" {
		return fmt.Errorf("config.protocol.oracle_account is required")
	}
	if p.StakeMinPct <= 0 || p.StakeMaxPct > 100 || p.StakeMinPct > p.StakeMaxPct {
		return fmt.Errorf("config.protocol stake bounds invalid: min=%d max=%d", p.StakeMinPct, p.StakeMaxPct)
	}
	if p.Durations.Easy <= 0 || p.Durations.Medium <= 0 || p.Durations.Hard <= 0 {
		return fmt.Errorf("config.protocol.durations must all be positive")
	}
	if p.Durations.Easy > p.Durations.Medium || p.Durations.Medium > p.Durations.Hard {
		return fmt.Errorf("config.protocol.durations must be non-decreasing easy<=medium<=hard")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// SameProtocol reports whether two configs agree on every immutable
// protocol parameter.
func (c *Config) SameProtocol(other *Config) bool {
	if other == nil {
		return false
	}
	return c.Protocol == other.Protocol
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "bountyline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run bl init or import with bl protocol import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for a deployment. The fee recipient
// and oracle account must normally be set explicitly at init.
func Default(oracleAccount, feeRecipient string) *Config {
	if oracleAccount == "" {
		oracleAccount = "oracle"
	}
	if feeRecipient == "" {
		feeRecipient = "operator"
	}
	var cfg Config
	cfg.Protocol = ProtocolConfig{
		FeeAmount:     10,
		FeeRecipient:  feeRecipient,
		OracleAccount: oracleAccount,
		StakeMinPct:   5,
		StakeMaxPct:   20,
		Durations:     DurationDays{Easy: 7, Medium: 30, Hard: 150},
	}
	return &cfg
}

// GenerateDefault returns default config YAML for bl init --print.
func GenerateDefault(oracleAccount, feeRecipient string) string {
	out, _ := yaml.Marshal(Default(oracleAccount, feeRecipient))
	return string(out)
}
