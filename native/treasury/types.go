package treasury

import (
	"github.com/holiman/uint256"

	"levfinance/crypto"
	"levfinance/native/dsec"
)

// Asset is the underlying token liquidity providers deposit.
type Asset interface {
	Transfer(from, to crypto.Address, amount *uint256.Int) error
	TransferFrom(from, to crypto.Address, amount *uint256.Int) error
	BalanceOf(addr crypto.Address) *uint256.Int
}

// ReceiptToken is the 1:1 claim on deposited liquidity.
type ReceiptToken interface {
	Mint(to crypto.Address, amount *uint256.Int) error
	Burn(from crypto.Address, amount *uint256.Int) error
	BalanceOf(addr crypto.Address) *uint256.Int
}

// RewardMinter pays claims in the governance token.
type RewardMinter interface {
	Mint(to crypto.Address, amount *uint256.Int) error
}

// Distributor tracks time weighted stake per epoch.
type Distributor interface {
	SetStake(addr crypto.Address, amount *uint256.Int, now uint64) error
	RewardShare(addr crypto.Address, epoch, now uint64) (*uint256.Int, error)
	Epoch(index uint64) (dsec.Epoch, error)
}

// ClaimRecord marks a settled (account, epoch) reward.
type ClaimRecord struct {
	Address crypto.Address
	Epoch   uint64
}

// LoanRecord is the principal a borrower pool still owes.
type LoanRecord struct {
	Borrower    crypto.Address
	Outstanding *uint256.Int
}
