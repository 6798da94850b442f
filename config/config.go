package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Database backends accepted by the Database setting.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type Config struct {
	DataDir  string   `toml:"DataDir"`
	Database string   `toml:"Database"`
	Accounts Accounts `toml:"accounts"`
	Asset    Asset    `toml:"asset"`
	Token    Token    `toml:"token"`
	Epochs   Epochs   `toml:"epochs"`
	Treasury Treasury `toml:"treasury"`
	Farming  Farming  `toml:"farming"`
	Pauses   Pauses   `toml:"pauses"`
}

// Default returns the launch parameters of the protocol.
func Default() *Config {
	return &Config{
		DataDir:  "./levf-data",
		Database: BackendLevelDB,
		Asset:    Asset{Name: "Dai Stablecoin", Symbol: "DAI"},
		Token: Token{
			Name:          "Levf Finance",
			Symbol:        "LFI",
			Cap:           "100000",
			FeePercentage: 10,
			TeamPreMinted: "10000",
			Excluded:      []string{},
		},
		Epochs: Epochs{
			Epoch0Start:     1641686400,
			DurationSeconds: 14 * 86400,
			IntervalSeconds: 86400,
			Total:           10,
		},
		Treasury: Treasury{
			LPRewardPerEpoch:   "6000",
			TeamRewardPerEpoch: "1500",
		},
		Farming: Farming{
			Leverage:                 20,
			LiquidityPenaltyPercent:  10,
			TaxRatePercent:           10,
			HealthThresholdPercent:   20,
			TaxInsuranceSharePercent: 50,
			Curve: Curve{
				Base:   0,
				Kink1:  CurvePoint{Utilisation: 50, Rate: 10},
				Kink2:  CurvePoint{Utilisation: 95, Rate: 25},
				MaxAPR: 100,
			},
		},
	}
}

// Load decodes the configuration at path over the defaults. A missing file is
// created with the default values. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Database = strings.ToLower(strings.TrimSpace(cfg.Database))
	if cfg.Token.Excluded == nil {
		cfg.Token.Excluded = []string{}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
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
