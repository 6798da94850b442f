package lfi

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// Decimals is the fixed display precision of the token.
const Decimals = 18

// Config captures the construction parameters of the reflective token. The
// values are copied by NewToken and cannot be changed afterwards.
type Config struct {
	Name          string
	Symbol        string
	Cap           *uint256.Int
	FeePercentage uint64
	TeamPreMinted *uint256.Int
	TeamAccount   crypto.Address
	// Excluded lists accounts exempt from reflection from genesis, typically
	// the treasury and farming pool module accounts.
	Excluded []crypto.Address
}

// DefaultConfig mirrors the original deployment parameters.
func DefaultConfig(team crypto.Address) Config {
	return Config{
		Name:          "Levf Finance",
		Symbol:        "LFI",
		Cap:           nativecommon.Ether(100_000),
		FeePercentage: 10,
		TeamPreMinted: nativecommon.Ether(10_000),
		TeamAccount:   team,
	}
}

// Validate ensures the configuration values fall within acceptable bounds.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: lfi: name required", nativecommon.ErrValidation)
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("%w: lfi: symbol required", nativecommon.ErrValidation)
	}
	if nativecommon.IsZero(c.Cap) {
		return fmt.Errorf("%w: lfi: cap must be positive", nativecommon.ErrValidation)
	}
	if c.FeePercentage > nativecommon.PercentDenominator {
		return fmt.Errorf("%w: lfi: fee percentage %d exceeds 100", nativecommon.ErrValidation, c.FeePercentage)
	}
	if c.TeamPreMinted != nil && c.TeamPreMinted.Gt(c.Cap) {
		return fmt.Errorf("%w: lfi: cap %s below team pre-mint %s", nativecommon.ErrValidation, c.Cap, c.TeamPreMinted)
	}
	if !nativecommon.IsZero(c.TeamPreMinted) && c.TeamAccount.IsZero() {
		return fmt.Errorf("%w: lfi: team account required for pre-mint", nativecommon.ErrValidation)
	}
	for _, addr := range c.Excluded {
		if addr.IsZero() {
			return fmt.Errorf("%w: lfi: zero address cannot be excluded", nativecommon.ErrValidation)
		}
	}
	return nil
}
