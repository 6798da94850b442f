package config

// Accounts names the externally owned accounts the protocol pays out to. Both
// bech32 levf and 0x hex forms are accepted.
type Accounts struct {
	Team      string `toml:"Team"`
	Insurance string `toml:"Insurance"`
}

// Asset describes the underlying stablecoin ledger.
type Asset struct {
	Name   string `toml:"Name"`
	Symbol string `toml:"Symbol"`
}

// Token holds the reflective token parameters. Amounts are whole-token decimal
// strings scaled by 10^18 on load.
type Token struct {
	Name          string   `toml:"Name"`
	Symbol        string   `toml:"Symbol"`
	Cap           string   `toml:"Cap"`
	FeePercentage uint64   `toml:"FeePercentage"`
	TeamPreMinted string   `toml:"TeamPreMinted"`
	Excluded      []string `toml:"Excluded"`
}

// Epochs fixes the dsec reward schedule.
type Epochs struct {
	Epoch0Start     uint64 `toml:"Epoch0Start"`
	DurationSeconds uint64 `toml:"DurationSeconds"`
	IntervalSeconds uint64 `toml:"IntervalSeconds"`
	Total           uint64 `toml:"Total"`
}

// Treasury carries the per-epoch reward allocations paid by the treasury.
type Treasury struct {
	LPRewardPerEpoch   string `toml:"LPRewardPerEpoch"`
	TeamRewardPerEpoch string `toml:"TeamRewardPerEpoch"`
}

// CurvePoint is one kink of the interest rate curve, in whole percentages.
type CurvePoint struct {
	Utilisation uint64 `toml:"Utilisation"`
	Rate        uint64 `toml:"Rate"`
}

// Curve is the piecewise linear borrow rate.
type Curve struct {
	Base   uint64     `toml:"Base"`
	Kink1  CurvePoint `toml:"Kink1"`
	Kink2  CurvePoint `toml:"Kink2"`
	MaxAPR uint64     `toml:"MaxAPR"`
}

// Farming holds the risk parameters of the leveraged farming pool.
type Farming struct {
	Leverage                 uint64 `toml:"Leverage"`
	LiquidityPenaltyPercent  uint64 `toml:"LiquidityPenaltyPercent"`
	TaxRatePercent           uint64 `toml:"TaxRatePercent"`
	HealthThresholdPercent   uint64 `toml:"HealthThresholdPercent"`
	TaxInsuranceSharePercent uint64 `toml:"TaxInsuranceSharePercent"`
	Curve                    Curve  `toml:"curve"`
}

// Pauses halts mutating entry points per module.
type Pauses struct {
	LFI      bool `toml:"LFI"`
	Treasury bool `toml:"Treasury"`
	Farming  bool `toml:"Farming"`
}
