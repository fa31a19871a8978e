// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/platform"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// EnvPrefix prefixes every environment override, e.g. LAUNCHPAD_WORKERS.
const EnvPrefix = "LAUNCHPAD"

type Config struct {
	DebugLogging bool           `mapstructure:"debug_logging"`
	LogFile      string         `mapstructure:"log_file"`
	Workers      int            `mapstructure:"workers"`
	Retries      int            `mapstructure:"retries"`
	PostgresURL  string         `mapstructure:"postgres_url"`
	MetricsAddr  string         `mapstructure:"metrics_addr"`
	TasksFile    string         `mapstructure:"tasks_file"`
	WalletsFile  string         `mapstructure:"wallets_file"`
	Platform     PlatformConfig `mapstructure:"platform"`
}

// PlatformConfig holds deployment parameters. Amounts are decimal strings in
// whole tokens ("1000", "0.5").
type PlatformConfig struct {
	ChainID             uint64 `mapstructure:"chain_id"`
	AssetSymbol         string `mapstructure:"asset_symbol"`
	AssetSupply         string `mapstructure:"asset_supply"`
	LaunchFee           string `mapstructure:"launch_fee"`
	InitialSupply       string `mapstructure:"initial_supply"`
	AssetRate           uint64 `mapstructure:"asset_rate"`
	MaxTxPercent        uint32 `mapstructure:"max_tx_percent"`
	GraduationThreshold string `mapstructure:"graduation_threshold"`
	BuyTaxBps           uint32 `mapstructure:"buy_tax_bps"`
	SellTaxBps          uint32 `mapstructure:"sell_tax_bps"`
	PairFeeBps          uint32 `mapstructure:"pair_fee_bps"`
	TokenTaxBps         uint32 `mapstructure:"token_tax_bps"`
	// FundAmount is sent to every loaded wallet after deployment.
	FundAmount string `mapstructure:"fund_amount"`
}

const (
	DefaultWorkers = 4
	DefaultRetries = 3
)

var defaults = map[string]interface{}{
	"debug_logging":                 false,
	"log_file":                      "launchpad.log",
	"workers":                       DefaultWorkers,
	"retries":                       DefaultRetries,
	"postgres_url":                  "",
	"metrics_addr":                  "",
	"tasks_file":                    "configs/tasks.yaml",
	"wallets_file":                  "configs/wallets.csv",
	"platform.chain_id":             8453,
	"platform.asset_symbol":         "VIRTUAL",
	"platform.asset_supply":         "1000000000",
	"platform.launch_fee":           "100",
	"platform.initial_supply":       "1000000000",
	"platform.asset_rate":           10000,
	"platform.max_tx_percent":       100,
	"platform.graduation_threshold": "125000",
	"platform.buy_tax_bps":          100,
	"platform.sell_tax_bps":         100,
	"platform.pair_fee_bps":         0,
	"platform.token_tax_bps":        0,
	"platform.fund_amount":          "100000",
}

// LoadConfig reads path (JSON or YAML) over the defaults, then applies
// LAUNCHPAD_* environment overrides. An empty path uses defaults and env only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.PostgresURL != "" {
		if err := validateURL(cfg.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("invalid postgres_url: %w", err)
		}
	}
	p := cfg.Platform
	for name, bps := range map[string]uint32{
		"buy_tax_bps":   p.BuyTaxBps,
		"sell_tax_bps":  p.SellTaxBps,
		"pair_fee_bps":  p.PairFeeBps,
		"token_tax_bps": p.TokenTaxBps,
	} {
		if bps > types.BasisPoints {
			return fmt.Errorf("platform.%s %d exceeds %d", name, bps, types.BasisPoints)
		}
	}
	if _, err := cfg.BondingParams(); err != nil {
		return err
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// BondingParams converts the platform section into curve parameters.
func (c *Config) BondingParams() (bonding.Params, error) {
	p := c.Platform
	amounts := make(map[string]*big.Int, 3)
	for name, raw := range map[string]string{
		"launch_fee":           p.LaunchFee,
		"initial_supply":       p.InitialSupply,
		"graduation_threshold": p.GraduationThreshold,
	} {
		x, err := types.ParseUnits(raw)
		if err != nil {
			return bonding.Params{}, fmt.Errorf("invalid platform.%s: %w", name, err)
		}
		amounts[name] = x
	}
	params := bonding.Params{
		LaunchFee:           amounts["launch_fee"],
		InitialSupply:       amounts["initial_supply"],
		AssetRate:           p.AssetRate,
		MaxTxPercent:        p.MaxTxPercent,
		GraduationThreshold: amounts["graduation_threshold"],
		TokenTaxBps:         p.TokenTaxBps,
	}
	if err := params.Validate(); err != nil {
		return bonding.Params{}, fmt.Errorf("invalid platform section: %w", err)
	}
	return params, nil
}

// PlatformConfig builds a deployment description for admin and treasury.
func (c *Config) PlatformConfig(admin, treasury types.Address) (platform.Config, error) {
	params, err := c.BondingParams()
	if err != nil {
		return platform.Config{}, err
	}
	supply, err := types.ParseUnits(c.Platform.AssetSupply)
	if err != nil {
		return platform.Config{}, fmt.Errorf("invalid platform.asset_supply: %w", err)
	}
	return platform.Config{
		Admin:       admin,
		Treasury:    treasury,
		ChainID:     c.Platform.ChainID,
		AssetSymbol: c.Platform.AssetSymbol,
		AssetSupply: supply,
		PairFeeBps:  c.Platform.PairFeeBps,
		BuyTaxBps:   c.Platform.BuyTaxBps,
		SellTaxBps:  c.Platform.SellTaxBps,
		Bonding:     params,
	}, nil
}
