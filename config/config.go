package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"tokenmart/crypto"
)

type Config struct {
	RPCAddress        string   `toml:"RPCAddress"`
	DataDir           string   `toml:"DataDir"`
	NetworkName       string   `toml:"NetworkName"`
	Environment       string   `toml:"Environment"`
	MarketOwners      []string `toml:"MarketOwners"`
	OperatorAddress   string   `toml:"OperatorAddress"`
	CommissionPercent uint32   `toml:"CommissionPercent"`
	GenesisListings   string   `toml:"GenesisListings"`
	PausedModules     []string `toml:"PausedModules"`
	LogFile           string   `toml:"LogFile"`
	TelemetryEndpoint string   `toml:"TelemetryEndpoint"`
}

// Load loads the configuration from the given path, writing defaults on
// first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "tokenmart-local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tokenmart-data"
	}
	if cfg.MarketOwners == nil {
		cfg.MarketOwners = []string{}
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot be wired into a running
// marketplace.
func (c *Config) Validate() error {
	if c.CommissionPercent > 100 {
		return fmt.Errorf("config: commission percent %d out of range", c.CommissionPercent)
	}
	if c.CommissionPercent > 0 && strings.TrimSpace(c.OperatorAddress) == "" {
		return fmt.Errorf("config: operator address required when commission is enabled")
	}
	if strings.TrimSpace(c.OperatorAddress) != "" {
		if _, err := crypto.DecodeAddress(c.OperatorAddress); err != nil {
			return fmt.Errorf("config: invalid operator address: %w", err)
		}
	}
	for _, owner := range c.MarketOwners {
		if _, err := crypto.DecodeAddress(owner); err != nil {
			return fmt.Errorf("config: invalid market owner %q: %w", owner, err)
		}
	}
	return nil
}

// OwnerAddresses decodes the configured marketplace owners.
func (c *Config) OwnerAddresses() ([][20]byte, error) {
	owners := make([][20]byte, 0, len(c.MarketOwners))
	for _, raw := range c.MarketOwners {
		decoded, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, err
		}
		owners = append(owners, decoded.Fixed())
	}
	return owners, nil
}

// Operator decodes the platform operator address, reporting whether the
// commission variant is enabled.
func (c *Config) Operator() ([20]byte, bool, error) {
	var zero [20]byte
	if c.CommissionPercent == 0 || strings.TrimSpace(c.OperatorAddress) == "" {
		return zero, false, nil
	}
	decoded, err := crypto.DecodeAddress(c.OperatorAddress)
	if err != nil {
		return zero, false, err
	}
	return decoded.Fixed(), true, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:    ":8080",
		DataDir:       "./tokenmart-data",
		NetworkName:   "tokenmart-local",
		Environment:   "dev",
		MarketOwners:  []string{},
		PausedModules: []string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
