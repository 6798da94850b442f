package vault

import (
	"github.com/holiman/uint256"

	"levfinance/crypto"
)

// Adapter routes a single owner's idle liquidity into a Vault. Errors from the
// vault or the asset are returned unchanged.
type Adapter struct {
	vault *Vault
	owner crypto.Address
}

// NewAdapter binds owner to v.
func NewAdapter(v *Vault, owner crypto.Address) *Adapter {
	return &Adapter{vault: v, owner: owner}
}

// Deposit moves amount from the owner into the vault and returns the minted
// shares.
func (a *Adapter) Deposit(amount *uint256.Int) (*uint256.Int, error) {
	return a.vault.Deposit(a.owner, amount)
}

// Withdraw redeems shares back to the owner and returns the assets released.
func (a *Adapter) Withdraw(shares *uint256.Int) (*uint256.Int, error) {
	return a.vault.Redeem(a.owner, shares)
}

// PreviewWithdraw returns what Withdraw would currently release.
func (a *Adapter) PreviewWithdraw(shares *uint256.Int) (*uint256.Int, error) {
	return a.vault.PreviewRedeem(shares)
}

// Shares returns the shares held by the owner.
func (a *Adapter) Shares() *uint256.Int { return a.vault.SharesOf(a.owner) }
