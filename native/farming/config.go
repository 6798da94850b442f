package farming

import (
	"fmt"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// Config groups the risk parameters of the farming pool.
type Config struct {
	// Leverage is the maximum multiple of collateral a position may owe.
	Leverage uint64
	// LiquidityPenaltyPercent is charged on withdrawals from positions whose
	// borrow headroom is below HealthThresholdPercent.
	LiquidityPenaltyPercent uint64
	// TaxRatePercent is charged on the profit of a withdrawal.
	TaxRatePercent uint64
	// HealthThresholdPercent is the minimum remaining headroom, as a share of
	// the leverage bound, that exempts a withdrawal from the penalty.
	HealthThresholdPercent uint64
	// TaxInsuranceSharePercent is the part of the tax routed to the insurance
	// fund. The rest goes to the treasury.
	TaxInsuranceSharePercent uint64
	Curve                    InterestCurve
	InsuranceFund            crypto.Address
	Treasury                 crypto.Address
}

// DefaultConfig mirrors the launch parameters.
func DefaultConfig(insurance, treasury crypto.Address) Config {
	return Config{
		Leverage:                 20,
		LiquidityPenaltyPercent:  10,
		TaxRatePercent:           10,
		HealthThresholdPercent:   20,
		TaxInsuranceSharePercent: 50,
		Curve:                    DefaultInterestCurve(),
		InsuranceFund:            insurance,
		Treasury:                 treasury,
	}
}

// Validate ensures the configuration values fall within acceptable bounds.
func (c Config) Validate() error {
	if c.Leverage == 0 {
		return fmt.Errorf("%w: farming: leverage must be positive", nativecommon.ErrValidation)
	}
	if c.LiquidityPenaltyPercent+c.TaxRatePercent > nativecommon.PercentDenominator {
		return fmt.Errorf("%w: farming: penalty and tax exceed 100%%", nativecommon.ErrValidation)
	}
	if c.HealthThresholdPercent > nativecommon.PercentDenominator {
		return fmt.Errorf("%w: farming: health threshold exceeds 100%%", nativecommon.ErrValidation)
	}
	if c.TaxInsuranceSharePercent > nativecommon.PercentDenominator {
		return fmt.Errorf("%w: farming: tax insurance share exceeds 100%%", nativecommon.ErrValidation)
	}
	if c.InsuranceFund.IsZero() {
		return fmt.Errorf("%w: farming: insurance fund account required", nativecommon.ErrValidation)
	}
	if c.Treasury.IsZero() {
		return fmt.Errorf("%w: farming: treasury account required", nativecommon.ErrValidation)
	}
	return c.Curve.Validate()
}
