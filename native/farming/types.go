package farming

import (
	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// Asset is the token farmers post as collateral and borrow.
type Asset interface {
	Transfer(from, to crypto.Address, amount *uint256.Int) error
	TransferFrom(from, to crypto.Address, amount *uint256.Int) error
	BalanceOf(addr crypto.Address) *uint256.Int
}

// ReceiptToken is the Btoken minted 1:1 against posted collateral.
type ReceiptToken interface {
	Mint(to crypto.Address, amount *uint256.Int) error
	Burn(from crypto.Address, amount *uint256.Int) error
}

// Lender supplies borrowed liquidity to the pool and takes repayments.
type Lender interface {
	Loan(borrower crypto.Address, amount *uint256.Int) error
	RepayLoan(borrower crypto.Address, principal, interest *uint256.Int) error
}

// YieldAdapter routes pool liquidity into an external yield source.
type YieldAdapter interface {
	Deposit(amount *uint256.Int) (*uint256.Int, error)
	Withdraw(shares *uint256.Int) (*uint256.Int, error)
	PreviewWithdraw(shares *uint256.Int) (*uint256.Int, error)
}

// PoolState captures the global accounting of the pool.
type PoolState struct {
	// TotalSupplied is the collateral posted by every position.
	TotalSupplied *uint256.Int
	// TotalBorrowed tracks outstanding debt including accrued interest.
	TotalBorrowed *uint256.Int
	// InterestIndex is the cumulative borrow index in ray.
	InterestIndex *uint256.Int
	// LastAccrual is the timestamp the index was last advanced to.
	LastAccrual uint64
}

// Clone returns a deep copy of the state.
func (s PoolState) Clone() PoolState {
	return PoolState{
		TotalSupplied: nativecommon.Clone(s.TotalSupplied),
		TotalBorrowed: nativecommon.Clone(s.TotalBorrowed),
		InterestIndex: nativecommon.Clone(s.InterestIndex),
		LastAccrual:   s.LastAccrual,
	}
}

// Loan is the debt leg of a position. A zero principal means the loan has
// been fully repaid.
type Loan struct {
	Principal   *uint256.Int
	IndexAtOpen *uint256.Int
}

// Position is a farmer's collateral, vault shares and debt.
type Position struct {
	Owner      crypto.Address
	Collateral *uint256.Int
	Shares     *uint256.Int
	Loan       Loan
}

// Clone returns a deep copy of the position.
func (p Position) Clone() Position {
	return Position{
		Owner:      p.Owner,
		Collateral: nativecommon.Clone(p.Collateral),
		Shares:     nativecommon.Clone(p.Shares),
		Loan: Loan{
			Principal:   nativecommon.Clone(p.Loan.Principal),
			IndexAtOpen: nativecommon.Clone(p.Loan.IndexAtOpen),
		},
	}
}

func (p Position) empty() bool {
	return nativecommon.IsZero(p.Collateral) && nativecommon.IsZero(p.Shares) && nativecommon.IsZero(p.Loan.Principal)
}

// WithdrawResult reports how a withdrawal was settled.
type WithdrawResult struct {
	Proceeds  *uint256.Int
	DebtPaid  *uint256.Int
	Penalty   *uint256.Int
	Tax       *uint256.Int
	Payout    *uint256.Int
	Remaining Position
}
