package vault

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

var (
	errInvalidAmount      = fmt.Errorf("%w: vault: amount must be positive", nativecommon.ErrValidation)
	errZeroShares         = fmt.Errorf("%w: vault: deposit too small to mint shares", nativecommon.ErrValidation)
	errInsufficientShares = fmt.Errorf("%w: vault: insufficient shares", nativecommon.ErrValidation)
)

// Asset is the fungible token the vault custodies.
type Asset interface {
	Transfer(from, to crypto.Address, amount *uint256.Int) error
	BalanceOf(addr crypto.Address) *uint256.Int
}

// Vault is a share based yield vault. Assets sent to the vault address
// without minting shares (external yield) raise the value of every share.
type Vault struct {
	address     crypto.Address
	asset       Asset
	totalShares *uint256.Int
	shares      map[crypto.Address]*uint256.Int
}

// NewVault creates a vault that custodies asset at address.
func NewVault(address crypto.Address, asset Asset) *Vault {
	return &Vault{
		address:     address,
		asset:       asset,
		totalShares: new(uint256.Int),
		shares:      make(map[crypto.Address]*uint256.Int),
	}
}

// Address returns the custody account.
func (v *Vault) Address() crypto.Address { return v.address }

// TotalAssets returns the assets held by the vault, yield included.
func (v *Vault) TotalAssets() *uint256.Int { return nativecommon.Clone(v.asset.BalanceOf(v.address)) }

// TotalShares returns the outstanding shares.
func (v *Vault) TotalShares() *uint256.Int { return nativecommon.Clone(v.totalShares) }

// SharesOf returns the shares held by owner.
func (v *Vault) SharesOf(owner crypto.Address) *uint256.Int {
	return nativecommon.Clone(v.shares[owner])
}

// PreviewDeposit returns the shares amount would mint.
func (v *Vault) PreviewDeposit(amount *uint256.Int) (*uint256.Int, error) {
	assets := v.TotalAssets()
	if v.totalShares.IsZero() || assets.IsZero() {
		return nativecommon.Clone(amount), nil
	}
	return nativecommon.MulDiv(amount, v.totalShares, assets)
}

// PreviewRedeem returns the assets shares would release.
func (v *Vault) PreviewRedeem(shares *uint256.Int) (*uint256.Int, error) {
	if v.totalShares.IsZero() {
		return new(uint256.Int), nil
	}
	return nativecommon.MulDiv(shares, v.TotalAssets(), v.totalShares)
}

// Deposit moves amount from owner into the vault and mints shares.
func (v *Vault) Deposit(owner crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	if nativecommon.IsZero(amount) {
		return nil, errInvalidAmount
	}
	minted, err := v.PreviewDeposit(amount)
	if err != nil {
		return nil, fmt.Errorf("vault: deposit: %w", err)
	}
	if minted.IsZero() {
		return nil, errZeroShares
	}
	total, err := nativecommon.Add(v.totalShares, minted)
	if err != nil {
		return nil, fmt.Errorf("vault: deposit: %w", err)
	}
	if err := v.asset.Transfer(owner, v.address, amount); err != nil {
		return nil, fmt.Errorf("vault: deposit: %w", err)
	}
	v.totalShares = total
	v.shares[owner] = new(uint256.Int).Add(nativecommon.Clone(v.shares[owner]), minted)
	return minted, nil
}

// Redeem burns shares held by owner and pays out the matching assets.
func (v *Vault) Redeem(owner crypto.Address, shares *uint256.Int) (*uint256.Int, error) {
	if nativecommon.IsZero(shares) {
		return nil, errInvalidAmount
	}
	held := nativecommon.Clone(v.shares[owner])
	if held.Lt(shares) {
		return nil, errInsufficientShares
	}
	amount, err := v.PreviewRedeem(shares)
	if err != nil {
		return nil, fmt.Errorf("vault: redeem: %w", err)
	}
	if !amount.IsZero() {
		if err := v.asset.Transfer(v.address, owner, amount); err != nil {
			return nil, fmt.Errorf("vault: redeem: %w", err)
		}
	}
	v.totalShares = new(uint256.Int).Sub(v.totalShares, shares)
	held.Sub(held, shares)
	if held.IsZero() {
		delete(v.shares, owner)
	} else {
		v.shares[owner] = held
	}
	return amount, nil
}

// Holding is a persisted share balance.
type Holding struct {
	Owner  crypto.Address
	Shares *uint256.Int
}

// Snapshot exports the share register ordered by owner.
func (v *Vault) Snapshot() []Holding {
	out := make([]Holding, 0, len(v.shares))
	for owner, shares := range v.shares {
		out = append(out, Holding{Owner: owner, Shares: nativecommon.Clone(shares)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.Less(out[j].Owner) })
	return out
}

// Restore replaces the share register.
func (v *Vault) Restore(holdings []Holding) error {
	total := new(uint256.Int)
	shares := make(map[crypto.Address]*uint256.Int, len(holdings))
	for _, h := range holdings {
		if nativecommon.IsZero(h.Shares) {
			continue
		}
		next, err := nativecommon.Add(total, h.Shares)
		if err != nil {
			return fmt.Errorf("vault: restore: %w", err)
		}
		total = next
		shares[h.Owner] = nativecommon.Clone(h.Shares)
	}
	v.totalShares = total
	v.shares = shares
	return nil
}
