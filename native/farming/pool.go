package farming

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

const moduleName = "farming"

var (
	errNilCollaborator       = errors.New("farming: asset, lender and adapter are required")
	errZeroPoolAddress       = fmt.Errorf("%w: farming: pool address required", nativecommon.ErrValidation)
	errInvalidAmount         = fmt.Errorf("%w: farming: amount must be positive", nativecommon.ErrValidation)
	errZeroAccount           = fmt.Errorf("%w: farming: account is the zero address", nativecommon.ErrValidation)
	errRepayExceedsOwed      = fmt.Errorf("%w: farming: repayment exceeds amount owed", nativecommon.ErrValidation)
	errWithdrawExceedsSupply = fmt.Errorf("%w: farming: withdrawal exceeds collateral", nativecommon.ErrValidation)
	errPoolCapacity          = fmt.Errorf("%w: farming: borrow exceeds pool leverage capacity", nativecommon.ErrCapacity)
	errPositionLeverage      = fmt.Errorf("%w: farming: position exceeds leverage bound", nativecommon.ErrCapacity)
	errTimeReversed          = fmt.Errorf("%w: farming: timestamp precedes last accrual", nativecommon.ErrState)
	errUnderwater            = fmt.Errorf("%w: farming: withdrawal proceeds do not cover debt", nativecommon.ErrState)
)

// Pool is a leveraged farming pool. Farmers post collateral, borrow up to
// Leverage times that collateral from the lender and every unit of liquidity
// is routed into the yield adapter. Debt grows through a single interest
// index so no per-position work is needed on accrual.
type Pool struct {
	address   crypto.Address
	cfg       Config
	asset     Asset
	receipt   ReceiptToken
	lender    Lender
	adapter   YieldAdapter
	state     PoolState
	positions map[crypto.Address]*Position
	pauses    nativecommon.PauseView
	emitter   events.Emitter
}

// NewPool constructs a pool that custodies liquidity at address.
func NewPool(address crypto.Address, cfg Config, asset Asset, receipt ReceiptToken, lender Lender, adapter YieldAdapter) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if address.IsZero() {
		return nil, errZeroPoolAddress
	}
	if asset == nil || receipt == nil || lender == nil || adapter == nil {
		return nil, errNilCollaborator
	}
	return &Pool{
		address: address,
		cfg:     cfg,
		asset:   asset,
		receipt: receipt,
		lender:  lender,
		adapter: adapter,
		state: PoolState{
			TotalSupplied: new(uint256.Int),
			TotalBorrowed: new(uint256.Int),
			InterestIndex: nativecommon.Clone(ray),
		},
		positions: make(map[crypto.Address]*Position),
		emitter:   events.NoopEmitter{},
	}, nil
}

// SetPauses wires the pause view consulted before mutations.
func (p *Pool) SetPauses(pauses nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = pauses
}

// SetEmitter configures the event sink. A nil emitter discards events.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

// Address returns the pool custody account.
func (p *Pool) Address() crypto.Address { return p.address }

// Config returns the pool parameters.
func (p *Pool) Config() Config { return p.cfg }

// State returns a copy of the pool accounting.
func (p *Pool) State() PoolState { return p.state.Clone() }

// Utilisation returns borrowed/supplied in ray.
func (p *Pool) Utilisation() *uint256.Int {
	return utilisation(p.state.TotalBorrowed, p.state.TotalSupplied)
}

// BorrowRate returns the current annual borrow rate in ray.
func (p *Pool) BorrowRate() *uint256.Int {
	return p.cfg.Curve.Rate(p.Utilisation())
}

// Position returns the position held by owner.
func (p *Pool) Position(owner crypto.Address) (Position, bool) {
	pos, ok := p.positions[owner]
	if !ok {
		return Position{}, false
	}
	return pos.Clone(), true
}

// Positions returns every open position ordered by owner.
func (p *Pool) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.Less(out[j].Owner) })
	return out
}

// OwedOf values the owner's debt at the last accrued index.
func (p *Pool) OwedOf(owner crypto.Address) *uint256.Int {
	pos, ok := p.positions[owner]
	if !ok {
		return new(uint256.Int)
	}
	owed, err := owedAt(pos.Loan.Principal, pos.Loan.IndexAtOpen, p.state.InterestIndex)
	if err != nil {
		return new(uint256.Int)
	}
	return owed
}

// Accrue advances the interest index to now.
func (p *Pool) Accrue(now uint64) error {
	next, err := p.accrued(now)
	if err != nil {
		return err
	}
	changed := !next.InterestIndex.Eq(p.state.InterestIndex)
	p.state = next
	if changed {
		p.emit(newAccrueEvent(next))
	}
	return nil
}

// Supply posts collateral for farmer and routes it into the yield adapter.
func (p *Pool) Supply(farmer crypto.Address, amount *uint256.Int, now uint64) error {
	if err := p.precheck(farmer, amount); err != nil {
		return err
	}
	next, err := p.accrued(now)
	if err != nil {
		return err
	}
	pos := p.positionOrNew(farmer)
	collateral, err := nativecommon.Add(pos.Collateral, amount)
	if err != nil {
		return fmt.Errorf("farming: supply: %w", err)
	}
	supplied, err := nativecommon.Add(next.TotalSupplied, amount)
	if err != nil {
		return fmt.Errorf("farming: supply: %w", err)
	}
	if err := p.asset.TransferFrom(farmer, p.address, amount); err != nil {
		return fmt.Errorf("farming: supply collateral: %w", err)
	}
	shares, err := p.adapter.Deposit(amount)
	if err != nil {
		return fmt.Errorf("farming: supply adapter deposit: %w", err)
	}
	if err := p.receipt.Mint(farmer, amount); err != nil {
		return fmt.Errorf("farming: supply receipt: %w", err)
	}
	if pos.Shares, err = nativecommon.Add(pos.Shares, shares); err != nil {
		return fmt.Errorf("farming: supply: %w", err)
	}
	pos.Collateral = collateral
	next.TotalSupplied = supplied
	p.commit(next, pos)
	p.emit(newSupplyEvent(farmer, amount, shares))
	return nil
}

// Borrow draws amount from the lender against the farmer's collateral and
// routes it into the yield adapter. Both the pool wide and the per-position
// leverage bounds are checked before anything moves.
func (p *Pool) Borrow(farmer crypto.Address, amount *uint256.Int, now uint64) error {
	if err := p.precheck(farmer, amount); err != nil {
		return err
	}
	next, err := p.accrued(now)
	if err != nil {
		return err
	}
	leverage := uint256.NewInt(p.cfg.Leverage)
	poolCap, err := nativecommon.Mul(next.TotalSupplied, leverage)
	if err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}
	borrowed, err := nativecommon.Add(next.TotalBorrowed, amount)
	if err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}
	if borrowed.Gt(poolCap) {
		return fmt.Errorf("%w: %s requested, %s of %s in use", errPoolCapacity, amount, next.TotalBorrowed, poolCap)
	}

	pos := p.positionOrNew(farmer)
	owed, err := owedAt(pos.Loan.Principal, pos.Loan.IndexAtOpen, next.InterestIndex)
	if err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}
	if err := checkLeverage(owed, amount, pos.Collateral, leverage); err != nil {
		return err
	}
	indexAtOpen, err := blendIndex(pos.Loan.Principal, pos.Loan.IndexAtOpen, amount, next.InterestIndex)
	if err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}
	principal, err := nativecommon.Add(pos.Loan.Principal, amount)
	if err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}

	if err := p.lender.Loan(p.address, amount); err != nil {
		return fmt.Errorf("farming: borrow from lender: %w", err)
	}
	shares, err := p.adapter.Deposit(amount)
	if err != nil {
		return fmt.Errorf("farming: borrow adapter deposit: %w", err)
	}
	if pos.Shares, err = nativecommon.Add(pos.Shares, shares); err != nil {
		return fmt.Errorf("farming: borrow: %w", err)
	}
	pos.Loan = Loan{Principal: principal, IndexAtOpen: indexAtOpen}
	next.TotalBorrowed = borrowed
	p.commit(next, pos)
	p.emit(newBorrowEvent(farmer, amount, principal, indexAtOpen))
	return nil
}

// Repay settles part or all of the farmer's debt from their own balance.
// Accrued interest is paid before principal. It returns the debt still owed.
func (p *Pool) Repay(farmer crypto.Address, amount *uint256.Int, now uint64) (*uint256.Int, error) {
	if err := p.precheck(farmer, amount); err != nil {
		return nil, err
	}
	next, err := p.accrued(now)
	if err != nil {
		return nil, err
	}
	pos := p.positionOrNew(farmer)
	owed, err := owedAt(pos.Loan.Principal, pos.Loan.IndexAtOpen, next.InterestIndex)
	if err != nil {
		return nil, fmt.Errorf("farming: repay: %w", err)
	}
	if amount.Gt(owed) {
		return nil, fmt.Errorf("%w: %s offered, %s owed", errRepayExceedsOwed, amount, owed)
	}
	loan, principalPaid, interestPaid, err := settleDebt(pos.Loan, owed, amount, next.InterestIndex)
	if err != nil {
		return nil, fmt.Errorf("farming: repay: %w", err)
	}
	if err := p.asset.TransferFrom(farmer, p.address, amount); err != nil {
		return nil, fmt.Errorf("farming: repay collect: %w", err)
	}
	if err := p.lender.RepayLoan(p.address, principalPaid, interestPaid); err != nil {
		return nil, fmt.Errorf("farming: repay lender: %w", err)
	}
	pos.Loan = loan
	next.TotalBorrowed = subFloor(next.TotalBorrowed, amount)
	p.commit(next, pos)
	remaining := new(uint256.Int).Sub(owed, amount)
	p.emit(newRepayEvent(farmer, amount, principalPaid, interestPaid, remaining))
	return remaining, nil
}

// Withdraw releases amount of collateral. The matching share of the vault
// position is priced first and an exit that cannot cover its share of the
// debt is rejected before anything moves. The shares are then redeemed and
// the debt is repaid from the proceeds. Penalty and tax are deducted from
// what is left before the farmer is paid.
func (p *Pool) Withdraw(farmer crypto.Address, amount *uint256.Int, now uint64) (WithdrawResult, error) {
	if err := p.precheck(farmer, amount); err != nil {
		return WithdrawResult{}, err
	}
	next, err := p.accrued(now)
	if err != nil {
		return WithdrawResult{}, err
	}
	pos := p.positionOrNew(farmer)
	if amount.Gt(pos.Collateral) {
		return WithdrawResult{}, fmt.Errorf("%w: %s requested, %s posted", errWithdrawExceedsSupply, amount, pos.Collateral)
	}
	owed, err := owedAt(pos.Loan.Principal, pos.Loan.IndexAtOpen, next.InterestIndex)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
	}
	full := amount.Eq(pos.Collateral)
	shares, debt := nativecommon.Clone(pos.Shares), nativecommon.Clone(owed)
	if !full {
		if shares, err = nativecommon.MulDiv(pos.Shares, amount, pos.Collateral); err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
		}
		if debt, err = nativecommon.MulDivUp(owed, amount, pos.Collateral); err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
		}
		remainingCollateral := new(uint256.Int).Sub(pos.Collateral, amount)
		remainingDebt := new(uint256.Int).Sub(owed, debt)
		if err := checkLeverage(remainingDebt, new(uint256.Int), remainingCollateral, uint256.NewInt(p.cfg.Leverage)); err != nil {
			return WithdrawResult{}, err
		}
	}
	penalised, err := p.belowHealthThreshold(owed, pos.Collateral)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
	}
	loan, principalPaid, interestPaid, err := settleDebt(pos.Loan, owed, debt, next.InterestIndex)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
	}

	if !shares.IsZero() {
		quoted, err := p.adapter.PreviewWithdraw(shares)
		if err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw adapter preview: %w", err)
		}
		if quoted.Lt(debt) {
			return WithdrawResult{}, fmt.Errorf("%w: %s redeemable against %s owed", errUnderwater, quoted, debt)
		}
	} else if !debt.IsZero() {
		return WithdrawResult{}, fmt.Errorf("%w: nothing redeemable against %s owed", errUnderwater, debt)
	}

	if err := p.receipt.Burn(farmer, amount); err != nil {
		return WithdrawResult{}, fmt.Errorf("farming: withdraw receipt: %w", err)
	}
	proceeds := new(uint256.Int)
	if !shares.IsZero() {
		if proceeds, err = p.adapter.Withdraw(shares); err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw adapter redeem: %w", err)
		}
	}
	if proceeds.Lt(debt) {
		return WithdrawResult{}, fmt.Errorf("%w: %s redeemed against %s owed", errUnderwater, proceeds, debt)
	}
	if !debt.IsZero() {
		if err := p.lender.RepayLoan(p.address, principalPaid, interestPaid); err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw repay lender: %w", err)
		}
	}

	net := new(uint256.Int).Sub(proceeds, debt)
	fees, err := p.exitFees(net, amount, penalised)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("farming: withdraw: %w", err)
	}
	for _, leg := range []struct {
		to     crypto.Address
		amount *uint256.Int
	}{
		{p.cfg.InsuranceFund, fees.insurance},
		{p.cfg.Treasury, fees.treasury},
		{farmer, fees.payout},
	} {
		if leg.amount.IsZero() {
			continue
		}
		if err := p.asset.Transfer(p.address, leg.to, leg.amount); err != nil {
			return WithdrawResult{}, fmt.Errorf("farming: withdraw payout: %w", err)
		}
	}

	pos.Collateral = new(uint256.Int).Sub(pos.Collateral, amount)
	pos.Shares = new(uint256.Int).Sub(pos.Shares, shares)
	pos.Loan = loan
	next.TotalSupplied = new(uint256.Int).Sub(next.TotalSupplied, amount)
	next.TotalBorrowed = subFloor(next.TotalBorrowed, debt)
	p.commit(next, pos)

	result := WithdrawResult{
		Proceeds:  proceeds,
		DebtPaid:  debt,
		Penalty:   fees.penalty,
		Tax:       fees.tax,
		Payout:    fees.payout,
		Remaining: pos.Clone(),
	}
	p.emit(newWithdrawEvent(farmer, amount, result))
	return result, nil
}

type exitFees struct {
	penalty   *uint256.Int
	tax       *uint256.Int
	insurance *uint256.Int
	treasury  *uint256.Int
	payout    *uint256.Int
}

// exitFees splits the net proceeds of a withdrawal. Profit is whatever the
// farmer receives above the collateral withdrawn.
func (p *Pool) exitFees(net, collateral *uint256.Int, penalised bool) (exitFees, error) {
	penalty := new(uint256.Int)
	if penalised {
		var err error
		if penalty, err = nativecommon.Percent(net, p.cfg.LiquidityPenaltyPercent); err != nil {
			return exitFees{}, err
		}
	}
	profit := new(uint256.Int)
	if net.Gt(collateral) {
		profit.Sub(net, collateral)
	}
	tax, err := nativecommon.Percent(profit, p.cfg.TaxRatePercent)
	if err != nil {
		return exitFees{}, err
	}
	taxInsurance, err := nativecommon.Percent(tax, p.cfg.TaxInsuranceSharePercent)
	if err != nil {
		return exitFees{}, err
	}
	payout, err := nativecommon.Sub(net, penalty)
	if err != nil {
		return exitFees{}, err
	}
	if payout, err = nativecommon.Sub(payout, tax); err != nil {
		return exitFees{}, err
	}
	return exitFees{
		penalty:   penalty,
		tax:       tax,
		insurance: new(uint256.Int).Add(penalty, taxInsurance),
		treasury:  new(uint256.Int).Sub(tax, taxInsurance),
		payout:    payout,
	}, nil
}

// belowHealthThreshold reports whether the remaining borrow headroom of a
// position, 1 - owed/(collateral*leverage), is under the configured threshold.
func (p *Pool) belowHealthThreshold(owed, collateral *uint256.Int) (bool, error) {
	if nativecommon.IsZero(owed) || p.cfg.HealthThresholdPercent == 0 {
		return false, nil
	}
	limit, err := nativecommon.Mul(collateral, uint256.NewInt(p.cfg.Leverage))
	if err != nil {
		return false, err
	}
	if owed.Cmp(limit) >= 0 {
		return true, nil
	}
	headroom := new(uint256.Int).Sub(limit, owed)
	lhs, err := nativecommon.Mul(headroom, uint256.NewInt(nativecommon.PercentDenominator))
	if err != nil {
		return false, err
	}
	rhs, err := nativecommon.Mul(limit, uint256.NewInt(p.cfg.HealthThresholdPercent))
	if err != nil {
		return false, err
	}
	return lhs.Lt(rhs), nil
}

// accrued returns the pool state advanced to now without committing it.
func (p *Pool) accrued(now uint64) (PoolState, error) {
	next := p.state.Clone()
	if now < next.LastAccrual {
		return PoolState{}, fmt.Errorf("%w: %d < %d", errTimeReversed, now, next.LastAccrual)
	}
	dt := now - next.LastAccrual
	next.LastAccrual = now
	if dt == 0 {
		return next, nil
	}
	rate := p.cfg.Curve.Rate(utilisation(next.TotalBorrowed, next.TotalSupplied))
	if rate.IsZero() {
		return next, nil
	}
	scaled, err := nativecommon.Mul(rate, uint256.NewInt(dt))
	if err != nil {
		return PoolState{}, fmt.Errorf("farming: accrue: %w", err)
	}
	denominator := new(uint256.Int).Mul(ray, uint256.NewInt(secondsPerYear))
	growth, err := nativecommon.MulDiv(next.InterestIndex, scaled, denominator)
	if err != nil {
		return PoolState{}, fmt.Errorf("farming: accrue: %w", err)
	}
	if growth.IsZero() {
		growth.SetOne()
	}
	index, err := nativecommon.Add(next.InterestIndex, growth)
	if err != nil {
		return PoolState{}, fmt.Errorf("farming: accrue: %w", err)
	}
	if !next.TotalBorrowed.IsZero() {
		if next.TotalBorrowed, err = nativecommon.MulDiv(next.TotalBorrowed, index, next.InterestIndex); err != nil {
			return PoolState{}, fmt.Errorf("farming: accrue: %w", err)
		}
	}
	next.InterestIndex = index
	return next, nil
}

func (p *Pool) precheck(account crypto.Address, amount *uint256.Int) error {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if nativecommon.IsZero(amount) {
		return errInvalidAmount
	}
	if account.IsZero() {
		return errZeroAccount
	}
	return nil
}

func (p *Pool) positionOrNew(owner crypto.Address) Position {
	if pos, ok := p.positions[owner]; ok {
		return pos.Clone()
	}
	return Position{
		Owner:      owner,
		Collateral: new(uint256.Int),
		Shares:     new(uint256.Int),
		Loan:       Loan{Principal: new(uint256.Int), IndexAtOpen: new(uint256.Int)},
	}
}

func (p *Pool) commit(next PoolState, pos Position) {
	p.state = next
	if pos.empty() {
		delete(p.positions, pos.Owner)
		return
	}
	stored := pos.Clone()
	p.positions[pos.Owner] = &stored
}

// checkLeverage enforces owed+amount <= collateral*leverage.
func checkLeverage(owed, amount, collateral, leverage *uint256.Int) error {
	limit, err := nativecommon.Mul(collateral, leverage)
	if err != nil {
		return fmt.Errorf("farming: leverage: %w", err)
	}
	total, err := nativecommon.Add(owed, amount)
	if err != nil {
		return fmt.Errorf("farming: leverage: %w", err)
	}
	if total.Gt(limit) {
		return fmt.Errorf("%w: %s owed against limit %s", errPositionLeverage, total, limit)
	}
	return nil
}

// settleDebt applies a payment of amount to a loan worth owed at index,
// interest first. A loan with nothing left is returned zeroed.
func settleDebt(loan Loan, owed, amount, index *uint256.Int) (Loan, *uint256.Int, *uint256.Int, error) {
	principal := nativecommon.Clone(loan.Principal)
	interest := new(uint256.Int)
	if owed.Gt(principal) {
		interest.Sub(owed, principal)
	}
	if amount.Lt(interest) {
		remaining := new(uint256.Int).Sub(owed, amount)
		indexAtOpen, err := nativecommon.MulDiv(principal, index, remaining)
		if err != nil {
			return Loan{}, nil, nil, err
		}
		return Loan{Principal: principal, IndexAtOpen: indexAtOpen}, new(uint256.Int), nativecommon.Clone(amount), nil
	}
	principalPaid := new(uint256.Int).Sub(amount, interest)
	if principalPaid.Gt(principal) {
		principalPaid = principal
	}
	left := new(uint256.Int).Sub(principal, principalPaid)
	if left.IsZero() {
		return Loan{Principal: new(uint256.Int), IndexAtOpen: new(uint256.Int)}, principalPaid, interest, nil
	}
	return Loan{Principal: left, IndexAtOpen: nativecommon.Clone(index)}, principalPaid, interest, nil
}

// subFloor returns a-b clamped at zero. Rounding in per-position debt can
// leave the aggregate a few units behind the sum of repayments.
func subFloor(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

func (p *Pool) emit(evt events.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(evt)
}
