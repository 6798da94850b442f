package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
	"levfinance/native/dsec"
	"levfinance/native/farming"
	"levfinance/native/lfi"
)

// Module labels used for the pause switches.
const (
	ModuleLFI      = "lfi"
	ModuleTreasury = "treasury"
	ModuleFarming  = "farming"
)

// ParseTokenAmount converts a whole-token decimal string into base units with
// lfi.Decimals of precision. Fractions finer than one base unit are rejected.
func ParseTokenAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	scaled := d.Shift(lfi.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, lfi.Decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", value)
	}
	return out, nil
}

func resolveAccount(value, fallback string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.ModuleAddress(fallback), nil
	}
	return crypto.DecodeAddress(value)
}

// TeamAccount resolves the team payout account. An empty setting maps to the
// deterministic "team" module address.
func (c *Config) TeamAccount() (crypto.Address, error) {
	addr, err := resolveAccount(c.Accounts.Team, "team")
	if err != nil {
		return crypto.Address{}, fmt.Errorf("accounts.Team: %w", err)
	}
	return addr, nil
}

// InsuranceAccount resolves the insurance fund account.
func (c *Config) InsuranceAccount() (crypto.Address, error) {
	addr, err := resolveAccount(c.Accounts.Insurance, "insurance")
	if err != nil {
		return crypto.Address{}, fmt.Errorf("accounts.Insurance: %w", err)
	}
	return addr, nil
}

// TokenConfig builds the reflective token parameters. Extra excluded accounts,
// typically module custody addresses, are appended to the configured list.
func (c *Config) TokenConfig(extraExcluded ...crypto.Address) (lfi.Config, error) {
	team, err := c.TeamAccount()
	if err != nil {
		return lfi.Config{}, err
	}
	tokenCap, err := ParseTokenAmount(c.Token.Cap)
	if err != nil {
		return lfi.Config{}, fmt.Errorf("token.Cap: %w", err)
	}
	preMint, err := ParseTokenAmount(c.Token.TeamPreMinted)
	if err != nil {
		return lfi.Config{}, fmt.Errorf("token.TeamPreMinted: %w", err)
	}
	excluded := make([]crypto.Address, 0, len(c.Token.Excluded)+len(extraExcluded))
	for i, raw := range c.Token.Excluded {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return lfi.Config{}, fmt.Errorf("token.Excluded[%d]: %w", i, err)
		}
		excluded = append(excluded, addr)
	}
	excluded = append(excluded, extraExcluded...)
	return lfi.Config{
		Name:          c.Token.Name,
		Symbol:        c.Token.Symbol,
		Cap:           tokenCap,
		FeePercentage: c.Token.FeePercentage,
		TeamPreMinted: preMint,
		TeamAccount:   team,
		Excluded:      excluded,
	}, nil
}

// DistributorConfig builds the dsec epoch schedule together with the treasury
// reward allocations.
func (c *Config) DistributorConfig() (dsec.Config, error) {
	lp, err := ParseTokenAmount(c.Treasury.LPRewardPerEpoch)
	if err != nil {
		return dsec.Config{}, fmt.Errorf("treasury.LPRewardPerEpoch: %w", err)
	}
	team, err := ParseTokenAmount(c.Treasury.TeamRewardPerEpoch)
	if err != nil {
		return dsec.Config{}, fmt.Errorf("treasury.TeamRewardPerEpoch: %w", err)
	}
	return dsec.Config{
		Epoch0Start:           c.Epochs.Epoch0Start,
		EpochDuration:         c.Epochs.DurationSeconds,
		IntervalBetweenEpochs: c.Epochs.IntervalSeconds,
		TotalEpochs:           c.Epochs.Total,
		LPRewardPerEpoch:      lp,
		TeamRewardPerEpoch:    team,
	}, nil
}

// FarmingConfig builds the farming pool risk parameters. Tax not routed to the
// insurance fund is paid to treasury.
func (c *Config) FarmingConfig(treasury crypto.Address) (farming.Config, error) {
	insurance, err := c.InsuranceAccount()
	if err != nil {
		return farming.Config{}, err
	}
	f := c.Farming
	return farming.Config{
		Leverage:                 f.Leverage,
		LiquidityPenaltyPercent:  f.LiquidityPenaltyPercent,
		TaxRatePercent:           f.TaxRatePercent,
		HealthThresholdPercent:   f.HealthThresholdPercent,
		TaxInsuranceSharePercent: f.TaxInsuranceSharePercent,
		Curve: farming.InterestCurve{
			Base:   f.Curve.Base,
			Kink1:  farming.CurvePoint{Utilisation: f.Curve.Kink1.Utilisation, RatePercent: f.Curve.Kink1.Rate},
			Kink2:  farming.CurvePoint{Utilisation: f.Curve.Kink2.Utilisation, RatePercent: f.Curve.Kink2.Rate},
			MaxAPR: f.Curve.MaxAPR,
		},
		InsuranceFund: insurance,
		Treasury:      treasury,
	}, nil
}

// PauseView exposes the [pauses] section to the engines.
func (c *Config) PauseView() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		ModuleLFI:      c.Pauses.LFI,
		ModuleTreasury: c.Pauses.Treasury,
		ModuleFarming:  c.Pauses.Farming,
	}
}

// Validate checks every section by building the component configurations
// and running their own validation.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	switch cfg.Database {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unsupported database backend %q", cfg.Database)
	}
	if cfg.Database != BackendMemory && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for %s backend", cfg.Database)
	}
	if strings.TrimSpace(cfg.Asset.Symbol) == "" {
		return fmt.Errorf("config: asset.Symbol required")
	}
	token, err := cfg.TokenConfig()
	if err != nil {
		return err
	}
	if err := token.Validate(); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	dist, err := cfg.DistributorConfig()
	if err != nil {
		return err
	}
	if err := dist.Validate(); err != nil {
		return fmt.Errorf("epochs: %w", err)
	}
	fc, err := cfg.FarmingConfig(crypto.ModuleAddress(ModuleTreasury))
	if err != nil {
		return err
	}
	if err := fc.Validate(); err != nil {
		return fmt.Errorf("farming: %w", err)
	}
	return nil
}
