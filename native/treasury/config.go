package treasury

import (
	"fmt"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// Config identifies the privileged accounts of the treasury. Reward amounts
// are part of the epoch schedule held by the distributor.
type Config struct {
	TeamAccount crypto.Address
}

// Validate ensures the configuration values fall within acceptable bounds.
func (c Config) Validate() error {
	if c.TeamAccount.IsZero() {
		return fmt.Errorf("%w: treasury: team account required", nativecommon.ErrValidation)
	}
	return nil
}
