package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "levf.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "levf.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Token, reloaded.Token)
	require.Equal(t, cfg.Farming, reloaded.Farming)
}

func TestLoadOverridesDefaults(t *testing.T) {
	team := crypto.ModuleAddress("ops-team")
	path := writeConfig(t, `Database = "Bolt"
DataDir = "./state"

[accounts]
Team = "`+team.String()+`"
Insurance = "0x00000000000000000000000000000000000000aa"

[token]
Cap = "250000.5"
FeePercentage = 5

[treasury]
LPRewardPerEpoch = "1200"

[farming]
Leverage = 10

[farming.curve]
MaxAPR = 150

[pauses]
Farming = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendBolt, cfg.Database)
	require.Equal(t, "LFI", cfg.Token.Symbol)

	token, err := cfg.TokenConfig(crypto.ModuleAddress("treasury"))
	require.NoError(t, err)
	require.Equal(t, team, token.TeamAccount)
	require.Equal(t, uint64(5), token.FeePercentage)
	require.Equal(t, "250000500000000000000000", token.Cap.Dec())
	require.Equal(t, nativecommon.Ether(10_000), token.TeamPreMinted)
	require.Equal(t, []crypto.Address{crypto.ModuleAddress("treasury")}, token.Excluded)

	dist, err := cfg.DistributorConfig()
	require.NoError(t, err)
	require.Equal(t, nativecommon.Ether(1200), dist.LPRewardPerEpoch)
	require.Equal(t, nativecommon.Ether(1500), dist.TeamRewardPerEpoch)
	require.Equal(t, uint64(10), dist.TotalEpochs)

	treasury := crypto.ModuleAddress("treasury")
	fc, err := cfg.FarmingConfig(treasury)
	require.NoError(t, err)
	require.Equal(t, uint64(10), fc.Leverage)
	require.Equal(t, uint64(150), fc.Curve.MaxAPR)
	require.Equal(t, uint64(50), fc.Curve.Kink1.Utilisation)
	require.Equal(t, byte(0xaa), fc.InsuranceFund[19])
	require.Equal(t, treasury, fc.Treasury)

	pauses := cfg.PauseView()
	require.True(t, pauses.IsPaused(ModuleFarming))
	require.False(t, pauses.IsPaused(ModuleLFI))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `[token]
Supply = "1"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "token.Supply")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"backend":     `Database = "postgres"`,
		"amount":      "[token]\nCap = \"lots\"",
		"negative":    "[token]\nCap = \"-1\"",
		"precision":   "[token]\nCap = \"1.0000000000000000001\"",
		"fee":         "[token]\nFeePercentage = 101",
		"premint":     "[token]\nCap = \"10\"",
		"address":     "[accounts]\nTeam = \"levf1notanaddress\"",
		"epochs":      "[epochs]\nTotal = 0",
		"leverage":    "[farming]\nLeverage = 0",
		"exit fees":   "[farming]\nLiquidityPenaltyPercent = 60\nTaxRatePercent = 50",
		"curve kinks": "[farming.curve.Kink1]\nUtilisation = 96",
		"curve rates": "[farming.curve.Kink2]\nRate = 5",
		"excluded":    "[token]\nExcluded = [\"0xzz\"]",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

func TestParseTokenAmount(t *testing.T) {
	amount, err := ParseTokenAmount("")
	require.NoError(t, err)
	require.True(t, amount.IsZero())

	amount, err = ParseTokenAmount(" 0.000000000000000001 ")
	require.NoError(t, err)
	require.Equal(t, uint64(1), amount.Uint64())

	amount, err = ParseTokenAmount("6000")
	require.NoError(t, err)
	require.Equal(t, nativecommon.Ether(6000), amount)

	_, err = ParseTokenAmount("1e80")
	require.Error(t, err)
}

func TestValidateDefault(t *testing.T) {
	require.NoError(t, Validate(Default()))
	require.Error(t, Validate(nil))

	cfg := Default()
	cfg.Database = BackendMemory
	cfg.DataDir = ""
	require.NoError(t, Validate(cfg))
}
