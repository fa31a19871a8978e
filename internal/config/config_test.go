package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/types"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, "VIRTUAL", cfg.Platform.AssetSymbol)

	params, err := cfg.BondingParams()
	require.NoError(t, err)
	assert.Equal(t, types.Tokens(100).String(), params.LaunchFee.String())
	assert.Equal(t, uint64(10_000), params.AssetRate)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"workers": 2,
		"postgres_url": "postgres://launchpad@localhost:5432/launchpad",
		"platform": {"launch_fee": "50", "buy_tax_bps": 250, "graduation_threshold": "42000"}
	}`)
	t.Setenv("LAUNCHPAD_WORKERS", "8")
	t.Setenv("LAUNCHPAD_PLATFORM_SELL_TAX_BPS", "300")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, uint32(250), cfg.Platform.BuyTaxBps)
	assert.Equal(t, uint32(300), cfg.Platform.SellTaxBps)

	admin, treasury := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	pc, err := cfg.PlatformConfig(admin, treasury)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens(50).String(), pc.Bonding.LaunchFee.String())
	assert.Equal(t, types.Tokens(42_000).String(), pc.Bonding.GraduationThreshold.String())
	assert.Equal(t, treasury, pc.Treasury)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "workers: 3\nplatform:\n  max_tx_percent: 5\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, uint32(5), cfg.Platform.MaxTxPercent)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero workers", `{"workers": 0}`},
		{"bad postgres scheme", `{"postgres_url": "mysql://x"}`},
		{"tax above 100%", `{"platform": {"buy_tax_bps": 10001}}`},
		{"bad amount", `{"platform": {"launch_fee": "ten"}}`},
		{"bad max tx", `{"platform": {"max_tx_percent": 101}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.json", tt.body))
			assert.Error(t, err)
		})
	}
}
